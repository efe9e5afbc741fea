package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/storefront/internal/auth"
	"github.com/sakif/storefront/internal/service"
)

// AuthHandler manages login, signup, logout, the GitHub OAuth flow and the
// current-session endpoint.
//
// Cookie handling stays here — the service layer issues signed tokens but
// knows nothing about HTTP. The cookie name and the Secure flag both track
// the execution mode: production uses the __Secure- prefixed name over
// HTTPS, anything else the bare name.
type AuthHandler struct {
	svc        *service.AuthService
	tokens     *auth.TokenService
	github     *auth.GitHubProvider // nil when OAuth isn't configured
	production bool
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected;
// github may be nil if no OAuth app is configured.
func NewAuthHandler(
	svc *service.AuthService,
	tokens *auth.TokenService,
	github *auth.GitHubProvider,
	production bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:        svc,
		tokens:     tokens,
		github:     github,
		production: production,
		logger:     logger,
	}
}

// setSessionCookie stores the signed session token in an HttpOnly cookie.
// HttpOnly keeps it away from JavaScript; SameSite=Lax sends it on
// top-level navigations but not cross-site POSTs.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie(h.production),
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionLifetime.Seconds()),
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie(h.production),
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // delete immediately
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleLoginPage and HandleSignupPage are stubs for the storefront's
// sign-in routes. The route guard keys on these paths, so they must exist
// even though the real forms are rendered by the frontend.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "sign in with POST /login or GET /auth/github/login",
	})
}

func (h *AuthHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "create an account with POST /signup",
	})
}

// HandleLogin performs a credential sign-in.
//
// HTTP: POST /login (form-encoded: email, password)
//
// On success the session cookie is set and the browser is redirected to
// /products. On any authentication failure the client sees the same
// generic message — the handler adds nothing to what the service decided.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	token, err := h.svc.LoginWithCredentials(r.Context(),
		r.PostFormValue("email"),
		r.PostFormValue("password"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

// HandleSignup registers a credential account and signs the user in.
//
// HTTP: POST /signup (form-encoded: name, email, password)
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	token, err := h.svc.Signup(r.Context(),
		r.PostFormValue("name"),
		r.PostFormValue("email"),
		r.PostFormValue("password"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /logout
//
// POST, not GET: logout changes state, and GET would be prefetchable and
// CSRF-able. The token itself stays valid until expiry — statelessness cuts
// both ways — but without the cookie the browser can't present it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleMe returns the current materialized session.
//
// HTTP: GET /me
//
// This runs a full token-refresh cycle: the claims are rebuilt from the
// stored user record, re-signed and set back as the cookie, then the
// session view is returned. Edits made directly in storage (say, a role
// promotion) become visible here without a re-login.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.FromRequest(r, h.production)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid session required",
		})
		return
	}

	sess, refreshed, err := h.svc.RefreshSession(r.Context(), claims)
	if err != nil {
		h.logger.Error("session refresh failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, refreshed)
	writeJSON(w, http.StatusOK, sess)
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state nonce goes into a short-lived cookie; the callback
// verifies it to prove the flow started here and not on an attacker's page.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.Error(w, "OAuth is not configured", http.StatusNotImplemented)
		return
	}

	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Resolve the profile to a local account (find-or-create)
//  4. Issue the session cookie and redirect home
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.Error(w, "OAuth is not configured", http.StatusNotImplemented)
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("oauth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("oauth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// State cookies are single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("oauth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/login?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	token, err := h.svc.LoginWithProvider(r.Context(), service.ExternalIdentity{
		Email: ghUser.Email,
		Name:  ghUser.DisplayName(),
		Image: ghUser.AvatarURL,
	})
	if err != nil {
		// Most commonly: GitHub didn't share an email. The resolver can't
		// key an account without one.
		h.logger.Error("oauth callback: resolution failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
