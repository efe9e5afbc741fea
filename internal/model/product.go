package model

import "time"

// Product is a storefront catalog entry.
//
// UserID records which admin account created (or last updated) the product.
// Only ADMIN users may own products — the service layer enforces this before
// any write reaches the repository.
//
// Images is a list of URLs. SQLite has no array type, so the repository
// stores it as a JSON-encoded TEXT column.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Images      []string  `json:"images"`
	Stock       int       `json:"stock"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Comment is a user review attached to a product.
type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Rating    int       `json:"rating"` // 1–5 stars
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentWithUser bundles a comment with its author's public profile,
// matching what the product page renders next to each review.
type CommentWithUser struct {
	Comment
	User PublicUser `json:"user"`
}
