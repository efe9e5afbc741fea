package auth

import (
	"net/http"
	"strings"

	"github.com/sakif/storefront/internal/model"
)

// Guard is the route-level access middleware.
//
// It runs once per request, before any handler, and decides allow/redirect
// from the request path and the session cookie alone:
//
//	path prefix        anonymous        role USER          role ADMIN
//	/dashboard...      → /login         → /dashboard       allow
//	/products...       → /login         allow              allow
//	exactly /          → /products      allow              allow
//	/login, /signup    allow            → /products        → /dashboard
//	anything else      allow            allow              allow
//
// A structurally invalid, expired or unsigned token is treated identically
// to "no session" — the guard never distinguishes the two.
//
// This check is deliberately coarse. Every mutating action re-derives the
// session and re-checks the role itself, because actions can be reached
// through paths this guard does not cover. Do not consolidate the two.
//
// TODO: a signed-in USER hitting /dashboard is redirected to /dashboard
// again — the redirect loop only terminates because the next request hits
// this same rule. Redirecting to /products instead is the likely intent;
// confirm before changing, the current behavior is what production runs.
func Guard(tokens *TokenService, production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			var token *Claims
			if c, err := tokens.FromRequest(r, production); err == nil {
				token = c
			}

			if strings.HasPrefix(path, "/dashboard") {
				if token == nil {
					http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
					return
				}
				if token.Role != model.RoleAdmin {
					http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
					return
				}
			}

			if strings.HasPrefix(path, "/products") {
				if token == nil {
					http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
					return
				}
			}

			if path == "/" {
				if token == nil {
					http.Redirect(w, r, "/products", http.StatusTemporaryRedirect)
					return
				}
			}

			if path == "/login" || path == "/signup" {
				if token != nil && token.Role == model.RoleAdmin {
					http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
					return
				}
				if token != nil && token.Role == model.RoleUser {
					http.Redirect(w, r, "/products", http.StatusTemporaryRedirect)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
