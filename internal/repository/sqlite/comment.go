package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/repository"
)

// CommentDB is the SQLite-backed review store.
type CommentDB struct {
	conn *sql.DB
}

// compile-time check that *CommentDB implements repository.CommentRepository
var _ repository.CommentRepository = (*CommentDB)(nil)

// Create inserts a new comment. ID and creation time are assigned here.
func (c *CommentDB) Create(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	comment.CreatedAt = time.Now()

	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO comments (id, content, rating, product_id, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		comment.ID,
		comment.Content,
		comment.Rating,
		comment.ProductID,
		comment.UserID,
		comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment: %w", err)
	}

	return nil
}

// ListByProduct returns a product's comments, oldest first, each joined
// with the author's public profile fields — the product page renders the
// reviewer's name and avatar next to every review.
func (c *CommentDB) ListByProduct(ctx context.Context, productID string) ([]model.CommentWithUser, error) {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT c.id, c.content, c.rating, c.product_id, c.user_id, c.created_at,
		        u.id, u.name, u.image
		 FROM comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.product_id = ?
		 ORDER BY c.created_at ASC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for product %s: %w", productID, err)
	}
	defer rows.Close()

	comments := []model.CommentWithUser{}
	for rows.Next() {
		var cw model.CommentWithUser
		if err := rows.Scan(
			&cw.ID,
			&cw.Content,
			&cw.Rating,
			&cw.ProductID,
			&cw.UserID,
			&cw.CreatedAt,
			&cw.User.ID,
			&cw.User.Name,
			&cw.User.Image,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, cw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}

	return comments, nil
}
