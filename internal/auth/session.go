package auth

import "github.com/sakif/storefront/internal/model"

// SessionUser is the flattened, application-facing view of the signed-in
// user. Note Image here vs Picture on Claims — the token wire format uses
// the OIDC-style "picture" field, the application uses "image".
type SessionUser struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Image string     `json:"image"`
	Role  model.Role `json:"role"`
}

// Session is the request-scoped view of the current authentication state.
//
// It supports both shapes consumers expect: the flattened fields under
// User, and the raw token claims under Token. When serialized, the whole
// token is embedded under the "user" key — some clients read the flattened
// fields, others read the token shape, and both see consistent values
// because the materializer overlays the same claims into each.
type Session struct {
	User  SessionUser `json:"-"`
	Token Claims      `json:"user"`
}

// MaterializeSession expands validated claims into a Session.
//
// This is a pure projection: same claims in, same session out, no storage
// access and no failure mode. Absent fields stay zero-valued — consumers
// must treat an empty Role as "no elevated access".
func MaterializeSession(c *Claims) *Session {
	if c == nil {
		return nil
	}
	return &Session{
		User: SessionUser{
			ID:    c.ID,
			Name:  c.Name,
			Email: c.Email,
			Image: c.Picture,
			Role:  c.Role,
		},
		Token: *c,
	}
}

// IsAdmin reports whether the session belongs to an ADMIN user.
// Safe to call on a nil session (anonymous request).
func (s *Session) IsAdmin() bool {
	return s != nil && s.User.Role == model.RoleAdmin
}

// Authenticated reports whether the session carries any role at all.
func (s *Session) Authenticated() bool {
	return s != nil && s.User.Role != ""
}
