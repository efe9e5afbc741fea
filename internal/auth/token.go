// Package auth provides the session-token machinery for the storefront:
// signing and parsing of the JWT session cookie, the request-scoped session
// view, and the route guard middleware.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. User signs in with credentials (POST /login) or via GitHub OAuth
// 2. The service layer verifies the identity and builds fresh Claims from
//    the stored user record
// 3. The handler signs the Claims and stores them in an HttpOnly cookie
// 4. On subsequent requests, the route guard (and each mutating action,
//    independently) reads the cookie, validates the JWT and derives the
//    caller's role from it
//
// The token is a thin, always-current cache of the user record: it is
// rebuilt wholesale from storage on every refresh (see the service layer's
// RebuildClaims), never patched incrementally. Role or name edits made
// directly in the database therefore take effect on the next refresh.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/storefront/internal/model"
)

// Session cookie names.
//
// The name depends on the execution mode: hosted deployments sit behind
// HTTPS and use the __Secure- prefixed cookie (browsers then refuse to
// accept it over plain HTTP), local development uses the bare name.
// Both names are part of the deployed contract — clients and reverse
// proxies key on them — so they must not change.
const (
	SessionCookieName       = "authjs.session-token"
	SecureSessionCookieName = "__Secure-authjs.session-token"
)

// SessionCookie returns the cookie name for the given execution mode.
func SessionCookie(production bool) string {
	if production {
		return SecureSessionCookieName
	}
	return SessionCookieName
}

// SessionLifetime bounds how long a signed token stays valid.
// Expiry policy is deliberately coarse; the claims themselves are
// re-derived from storage far more often than this.
const SessionLifetime = 30 * 24 * time.Hour

const issuer = "storefront"

// Claims is the session token payload.
//
// The identity fields mirror the stored user record: id, name, email,
// picture (the image URL under its token-wire name) and role. They are
// replaced wholesale on every refresh — see service.AuthService.RebuildClaims.
type Claims struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Picture string     `json:"picture"`
	Role    model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session tokens.
//
// It holds the HMAC secret used for both operations. The same secret must
// be configured everywhere tokens are produced or checked.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: AUTH_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Sign stamps the registered claims (issuer, issued-at, expiry) onto c and
// returns the signed compact JWT.
//
// The registered claims are set here, at issuance time, rather than by the
// token builder — the builder deals only with identity fields, which keeps
// rebuild(token) idempotent for an unchanged user record.
func (s *TokenService) Sign(c Claims) (string, error) {
	now := time.Now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SessionLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Parse verifies a compact JWT and returns its Claims.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches (prevents tokens from other apps)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
func (s *TokenService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	return c, nil
}

// FromRequest reads the session cookie for the current execution mode and
// parses it. A missing cookie, an unsigned token or a structurally invalid
// one all come back as an error — callers treat every error identically
// to "no session".
func (s *TokenService) FromRequest(r *http.Request, production bool) (*Claims, error) {
	cookie, err := r.Cookie(SessionCookie(production))
	if err != nil {
		// http.ErrNoCookie — anonymous request, not a failure
		return nil, err
	}

	return s.Parse(cookie.Value)
}
