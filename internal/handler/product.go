package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/storefront/internal/auth"
	"github.com/sakif/storefront/internal/service"
)

// ProductHandler serves the catalog and the admin dashboard.
//
// SESSION RESOLUTION:
// Each mutating endpoint resolves the caller's session from the request
// cookie itself (h.session) and hands it to the service, where the role is
// checked. It deliberately does NOT rely on the route guard having run —
// the guard is path-based and these operations must stay safe even when
// reached through a path the guard ignores.
type ProductHandler struct {
	svc        *service.ProductService
	tokens     *auth.TokenService
	production bool
	logger     *slog.Logger
}

// NewProductHandler creates a ProductHandler.
func NewProductHandler(
	svc *service.ProductService,
	tokens *auth.TokenService,
	production bool,
	logger *slog.Logger,
) *ProductHandler {
	return &ProductHandler{
		svc:        svc,
		tokens:     tokens,
		production: production,
		logger:     logger,
	}
}

// session materializes the caller's session from the request cookie.
// Returns nil for anonymous requests and for any invalid token — the
// service treats both the same way.
func (h *ProductHandler) session(r *http.Request) *auth.Session {
	claims, err := h.tokens.FromRequest(r, h.production)
	if err != nil {
		return nil
	}
	return auth.MaterializeSession(claims)
}

// HandleList returns one page of the catalog.
//
// HTTP: GET /products?skip=0&take=10
// RESPONSE: {"products":[...],"count":42}
func (h *ProductHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	take, _ := strconv.Atoi(r.URL.Query().Get("take"))

	page, err := h.svc.List(r.Context(), skip, take)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// HandleGet returns a single product.
//
// HTTP: GET /products/{id}
func (h *ProductHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// HandleComments returns a product's reviews with author info.
//
// HTTP: GET /products/{id}/comments
func (h *ProductHandler) HandleComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.svc.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// HandlePostComment posts a review on a product.
//
// HTTP: POST /products/{id}/comments
// REQUEST BODY: {"content":"great","rating":5}
// Auth: any authenticated role (checked in the service, not here)
func (h *ProductHandler) HandlePostComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
		Rating  int    `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"bad_request","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	comment, err := h.svc.PostComment(r.Context(), h.session(r),
		chi.URLParam(r, "id"), body.Content, body.Rating)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

// HandleDashboard returns the admin's product overview.
//
// HTTP: GET /dashboard
//
// The route guard already restricts /dashboard to ADMIN sessions; this
// endpoint is read-only, so no second gate is needed here.
func (h *ProductHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), 0, service.MaxPageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// HandleCreate creates a product.
//
// HTTP: POST /dashboard/products
// REQUEST BODY: {"name":...,"description":...,"price":...,"images":[...],"stock":...}
// Auth: ADMIN (checked in the service)
func (h *ProductHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"bad_request","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	product, err := h.svc.Create(r.Context(), h.session(r), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

// HandleUpdate updates a product.
//
// HTTP: PUT /dashboard/products/{id}
// Auth: ADMIN (checked in the service)
func (h *ProductHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"bad_request","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	product, err := h.svc.Update(r.Context(), h.session(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// HandleDelete deletes a product.
//
// HTTP: DELETE /dashboard/products/{id}
// Auth: ADMIN (checked in the service)
func (h *ProductHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), h.session(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleHome is the storefront root. Anonymous visitors never reach it —
// the route guard bounces them to /products first.
func (h *ProductHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "storefront",
		"catalog": "/products",
	})
}
