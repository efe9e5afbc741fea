// Package service contains the business logic layer of the application.
//
// AuthService owns every authentication rule in the app:
//
//	AuthHandler (HTTP) → AuthService (rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT) / PasswordService (bcrypt)
//
// The pieces compose like this:
//   - Authorize        — verifies email/password credentials
//   - ResolveIdentity  — maps any externally verified identity to a local account
//   - RebuildClaims    — re-derives the session token from the stored record
//   - Signup / LoginWithCredentials / LoginWithProvider — the user-facing flows
//
// Handlers never see the password hash and never talk to the repository for
// auth decisions; everything funnels through here.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/auth"
	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/repository"
)

// invalidCredentials is the only message a failed login ever produces.
// Whether the email was unknown, the password wrong, or the account
// OAuth-only is internal information an attacker must not learn.
const invalidCredentials = "invalid credentials"

// ExternalIdentity is what an identity provider (credentials flow included)
// asserts about a user after ITS OWN verification succeeded. Email is the
// resolution key and is mandatory; name and image are copied onto newly
// created accounts.
type ExternalIdentity struct {
	Email string
	Name  string
	Image string
}

// Identity is the public projection of an authenticated user — exactly the
// fields that may leave the auth layer. No password hash, ever.
type Identity struct {
	ID    string
	Name  string
	Email string
	Image string
	Role  model.Role
}

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// Authorize verifies an email/password pair against the stored account.
//
// Read-only: no side effects on any outcome. Every failure — malformed
// input, unknown email, OAuth-only account (no stored hash), wrong
// password — comes back as the same generic unauthorized error.
//
// The missing-hash case is the one worth calling out: an account created
// through OAuth has no password, and a credential attempt against it must
// fail closed rather than match the empty hash.
func (s *AuthService) Authorize(ctx context.Context, email, password string) (*Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	// Exact-match lookup — the credential form is expected to carry the
	// email exactly as registered.
	user, err := s.users.FindByEmail(ctx, email, false)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up credentials: %w", err)
	}

	if user.PasswordHash == "" {
		// OAuth-only account. Fail closed.
		s.logger.Info("credential login attempted against passwordless account",
			slog.String("userID", user.ID),
		)
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	return &Identity{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Image: user.Image,
		Role:  user.Role,
	}, nil
}

// ResolveIdentity maps an externally verified identity to the canonical
// user record, creating one on first sign-in.
//
// Lookup is case-insensitive on email — providers disagree about casing.
// A created account gets EmailVerified set to now (the provider proved
// mailbox ownership) and NO password hash, so resolution never grants
// credential-login ability.
//
// The count-then-create sequence is not atomic against a concurrent first
// sign-in for the same email; the UNIQUE constraint is the backstop. When
// the create loses that race the other resolution won — re-read and return
// the winning record instead of failing.
func (s *AuthService) ResolveIdentity(ctx context.Context, ext ExternalIdentity) (*model.User, error) {
	if strings.TrimSpace(ext.Email) == "" {
		return nil, apperror.ValidationFailed("email", "external identity has no email")
	}

	count, err := s.users.CountByEmail(ctx, ext.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking membership for %s: %w", ext.Email, err)
	}

	if count == 0 {
		now := time.Now()
		user := &model.User{
			Email:         ext.Email,
			Name:          ext.Name,
			Image:         ext.Image,
			EmailVerified: &now,
			Role:          model.RoleUser,
		}
		err := s.users.Create(ctx, user)
		if err == nil {
			s.logger.Info("user created from external identity",
				slog.String("userID", user.ID),
				slog.String("email", user.Email),
			)
			return user, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/auth: creating user for %s: %w", ext.Email, err)
		}
		// Lost the find-or-create race — fall through to the re-read.
	}

	user, err := s.users.FindByEmail(ctx, ext.Email, true)
	if err != nil {
		return nil, fmt.Errorf("service/auth: resolving user for %s: %w", ext.Email, err)
	}
	return user, nil
}

// RebuildClaims is the session-token refresh step, run on every issuance.
//
// The token is a cache of the user record, not an independently evolving
// object: when the canonical record is found (keyed by the email carried
// in the current token) the claims are REPLACED WHOLESALE by a fresh
// projection — any stale field from the previous token is dropped, so role
// or name edits made in storage propagate on the next refresh.
//
// The only exception is a brand-new sign-in whose record isn't queryable
// yet: then the fresh identity's id is copied in and the token is
// otherwise returned unchanged.
func (s *AuthService) RebuildClaims(ctx context.Context, token auth.Claims, fresh *Identity) (auth.Claims, error) {
	user, err := s.users.FindByEmail(ctx, token.Email, false)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			if fresh != nil && fresh.ID != "" {
				token.ID = fresh.ID
			}
			return token, nil
		}
		return auth.Claims{}, fmt.Errorf("service/auth: refreshing token for %s: %w", token.Email, err)
	}

	return auth.Claims{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Picture: user.Image,
		Role:    user.Role,
	}, nil
}

// LoginWithCredentials runs the full credential sign-in: verify, resolve
// membership, rebuild claims from storage, sign. Returns the signed session
// token for the handler to set as a cookie.
func (s *AuthService) LoginWithCredentials(ctx context.Context, email, password string) (string, error) {
	identity, err := s.Authorize(ctx, email, password)
	if err != nil {
		return "", err
	}

	if _, err := s.ResolveIdentity(ctx, ExternalIdentity{
		Email: identity.Email,
		Name:  identity.Name,
		Image: identity.Image,
	}); err != nil {
		return "", err
	}

	claims, err := s.RebuildClaims(ctx, auth.Claims{Email: identity.Email}, identity)
	if err != nil {
		return "", err
	}

	signed, err := s.tokens.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("service/auth: signing session for %s: %w", identity.ID, err)
	}

	s.logger.Info("user authenticated via credentials", slog.String("userID", identity.ID))
	return signed, nil
}

// LoginWithProvider completes an OAuth sign-in after the provider has
// verified the identity: resolve (find-or-create) the account, then issue
// a session token for it.
func (s *AuthService) LoginWithProvider(ctx context.Context, ext ExternalIdentity) (string, error) {
	user, err := s.ResolveIdentity(ctx, ext)
	if err != nil {
		return "", err
	}

	claims, err := s.RebuildClaims(ctx, auth.Claims{Email: user.Email}, &Identity{ID: user.ID})
	if err != nil {
		return "", err
	}

	signed, err := s.tokens.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("service/auth: signing session for %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via provider", slog.String("userID", user.ID))
	return signed, nil
}

// Signup registers a new credential account and signs the user straight in.
//
// "Email already in use" is a recoverable, user-facing condition; anything
// else propagates to the handler boundary unchanged.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return "", apperror.ValidationFailed("password", "password is required")
	}

	if _, err := s.users.FindByEmail(ctx, email, false); err == nil {
		return "", &apperror.AppError{Err: apperror.ErrConflict, Message: "email already in use"}
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return "", fmt.Errorf("service/auth: checking existing email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return "", err
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return "", &apperror.AppError{Err: apperror.ErrConflict, Message: "email already in use"}
		}
		return "", fmt.Errorf("service/auth: creating account: %w", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))

	// Automatically sign in the freshly registered user.
	return s.LoginWithCredentials(ctx, email, password)
}

// RefreshSession rebuilds the claims from storage, re-signs them and
// materializes the request-scoped session. Used wherever the current
// session is served back to the client (GET /me), so that storage edits
// surface without waiting for the cookie to expire.
func (s *AuthService) RefreshSession(ctx context.Context, claims *auth.Claims) (*auth.Session, string, error) {
	rebuilt, err := s.RebuildClaims(ctx, *claims, nil)
	if err != nil {
		return nil, "", err
	}

	signed, err := s.tokens.Sign(rebuilt)
	if err != nil {
		return nil, "", fmt.Errorf("service/auth: re-signing session: %w", err)
	}

	return auth.MaterializeSession(&rebuilt), signed, nil
}
