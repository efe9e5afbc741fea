// Package repository declares the storage interfaces consumed by the service
// layer. Concrete implementations live in subpackages (sqlite). Services
// depend on these interfaces only, so the backing store can be swapped (or
// faked in tests) without touching business logic.
package repository

import (
	"context"

	"github.com/sakif/storefront/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository is the identity store.
//
// FindByEmail with caseInsensitive=true is how external identities are
// resolved — an OAuth provider may report "User@Example.com" for an account
// stored as "user@example.com". Credential login uses the exact form.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string, caseInsensitive bool) (*model.User, error)
	CountByEmail(ctx context.Context, email string) (int, error)
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id string) (*model.Product, error)
	List(ctx context.Context, opts ListOptions) ([]model.Product, error)
	Count(ctx context.Context) (int, error)
	CountByID(ctx context.Context, id string) (int, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id string) error
}

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	ListByProduct(ctx context.Context, productID string) ([]model.CommentWithUser, error)
}
