package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/repository"
)

// UserDB is the SQLite-backed identity store.
type UserDB struct {
	conn *sql.DB
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// Create inserts a new user. The ID and timestamps are assigned here; the
// caller only fills the identity fields.
//
// A duplicate email surfaces as apperror.ErrConflict — the identity
// resolver relies on that to detect a lost find-or-create race and re-read
// the winning row instead of failing the sign-in.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, image, password_hash, role, email_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.Image,
		user.PasswordHash,
		string(user.Role),
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT id, name, email, image, password_hash, role, email_verified, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row, id)
}

// FindByEmail retrieves a user by email.
//
// caseInsensitive=false does an exact match (credential login), while
// caseInsensitive=true folds case (identity resolution — OAuth providers
// are not consistent about email casing). The email column carries the
// NOCASE collation, so the exact-match branch must force BINARY comparison
// explicitly.
func (u *UserDB) FindByEmail(ctx context.Context, email string, caseInsensitive bool) (*model.User, error) {
	query := `SELECT id, name, email, image, password_hash, role, email_verified, created_at, updated_at
	          FROM users WHERE email = ? COLLATE BINARY`
	if caseInsensitive {
		query = `SELECT id, name, email, image, password_hash, role, email_verified, created_at, updated_at
		         FROM users WHERE email = ? COLLATE NOCASE`
	}

	row := u.conn.QueryRowContext(ctx, query, email)
	return scanUser(row, email)
}

// CountByEmail returns the number of users with the given email,
// case-insensitively. With the UNIQUE constraint in place this is 0 or 1;
// the resolver only cares about existence.
func (u *UserDB) CountByEmail(ctx context.Context, email string) (int, error) {
	var count int
	err := u.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ? COLLATE NOCASE`, email,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting users by email: %w", err)
	}
	return count, nil
}

// scanUser reads one user row. The email_verified column is nullable, so
// it scans through sql.NullTime before landing on the model's pointer.
func scanUser(row *sql.Row, key string) (*model.User, error) {
	var (
		u        model.User
		role     string
		verified sql.NullTime
	)

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Image,
		&u.PasswordHash,
		&role,
		&verified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: scanning user %s: %w", key, err)
	}

	u.Role = model.Role(role)
	if verified.Valid {
		t := verified.Time
		u.EmailVerified = &t
	}

	return &u, nil
}
