package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/auth"
	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/repository"
)

// Validation constants.
const (
	MaxProductNameLength = 100
	MaxCommentLength     = 2000
	DefaultPageSize      = 10
	MaxPageSize          = 100
)

const notAuthorized = "you're not authorized"

// ProductService handles the catalog business logic, including the
// per-operation authorization gate.
//
// EVERY mutating method takes the caller's session and re-checks the role
// requirement itself — product mutations need ADMIN, posting a comment
// needs any authenticated role. The route guard performs a similar check
// per path, but these actions are reachable through paths the guard does
// not intercept, so the check here is NOT inherited and must not be
// removed. It always runs before any repository write, so a rejected call
// is side-effect-free.
type ProductService struct {
	products repository.ProductRepository
	comments repository.CommentRepository
	logger   *slog.Logger
}

// NewProductService creates a ProductService.
func NewProductService(
	products repository.ProductRepository,
	comments repository.CommentRepository,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		products: products,
		comments: comments,
		logger:   logger,
	}
}

// ProductInput carries the mutable product fields from a create/update form.
type ProductInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Images      []string `json:"images"`
	Stock       int      `json:"stock"`
}

// ProductPage is a page of the catalog plus the total count, which the
// storefront needs to render pagination.
type ProductPage struct {
	Products []model.Product `json:"products"`
	Count    int             `json:"count"`
}

// List returns one page of products (newest first) and the total count.
func (s *ProductService) List(ctx context.Context, skip, take int) (*ProductPage, error) {
	if take <= 0 {
		take = DefaultPageSize
	}
	if take > MaxPageSize {
		take = MaxPageSize
	}
	if skip < 0 {
		skip = 0
	}

	products, err := s.products.List(ctx, repository.ListOptions{Limit: take, Offset: skip})
	if err != nil {
		s.logger.Error("failed to list products", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing products: %w", err)
	}

	count, err := s.products.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count products", slog.String("error", err.Error()))
		return nil, fmt.Errorf("counting products: %w", err)
	}

	return &ProductPage{Products: products, Count: count}, nil
}

// Get retrieves a single product.
func (s *ProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "product ID is required")
	}
	return s.products.GetByID(ctx, id)
}

// Comments returns a product's reviews with each author's public profile.
func (s *ProductService) Comments(ctx context.Context, productID string) ([]model.CommentWithUser, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, apperror.ValidationFailed("productId", "product ID is required")
	}
	comments, err := s.comments.ListByProduct(ctx, productID)
	if err != nil {
		s.logger.Error("failed to list comments",
			slog.String("productID", productID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}

// Create validates and saves a new product. ADMIN only.
//
// The created product's owner (UserID) is the calling admin — ownership is
// derived from the session, never from client input.
func (s *ProductService) Create(ctx context.Context, sess *auth.Session, in ProductInput) (*model.Product, error) {
	if !sess.IsAdmin() {
		return nil, apperror.Forbidden(notAuthorized)
	}

	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	product := &model.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Images:      in.Images,
		Stock:       in.Stock,
		UserID:      sess.User.ID,
	}

	if err := s.products.Create(ctx, product); err != nil {
		s.logger.Error("failed to create product",
			slog.String("name", product.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating product: %w", err)
	}

	s.logger.Info("product created",
		slog.String("id", product.ID),
		slog.String("userID", sess.User.ID),
	)

	return product, nil
}

// Update replaces an existing product's fields. ADMIN only.
//
// The existence check runs before the write — updating a product whose id
// no longer exists is an explicit not-found, not a silent no-op.
func (s *ProductService) Update(ctx context.Context, sess *auth.Session, id string, in ProductInput) (*model.Product, error) {
	if !sess.IsAdmin() {
		return nil, apperror.Forbidden(notAuthorized)
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "product ID is required")
	}
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	exists, err := s.products.CountByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("checking product %s: %w", id, err)
	}
	if exists == 0 {
		return nil, apperror.NotFound("product", id)
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Name = strings.TrimSpace(in.Name)
	product.Description = strings.TrimSpace(in.Description)
	product.Price = in.Price
	product.Images = in.Images
	product.Stock = in.Stock
	product.UserID = sess.User.ID

	if err := s.products.Update(ctx, product); err != nil {
		s.logger.Error("failed to update product",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating product: %w", err)
	}

	s.logger.Info("product updated",
		slog.String("id", product.ID),
		slog.String("userID", sess.User.ID),
	)

	return product, nil
}

// Delete removes a product. ADMIN only; explicit not-found check first.
func (s *ProductService) Delete(ctx context.Context, sess *auth.Session, id string) error {
	if !sess.IsAdmin() {
		return apperror.Forbidden(notAuthorized)
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "product ID is required")
	}

	exists, err := s.products.CountByID(ctx, id)
	if err != nil {
		return fmt.Errorf("checking product %s: %w", id, err)
	}
	if exists == 0 {
		return apperror.NotFound("product", id)
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("product deleted",
		slog.String("id", id),
		slog.String("userID", sess.User.ID),
	)
	return nil
}

// PostComment saves a review. Any authenticated role may post; an absent
// role means an anonymous or malformed session and is rejected before any
// write.
func (s *ProductService) PostComment(ctx context.Context, sess *auth.Session, productID, content string, rating int) (*model.Comment, error) {
	if !sess.Authenticated() {
		return nil, apperror.Forbidden(notAuthorized)
	}

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, apperror.ValidationFailed("productId", "product ID is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "comment content is required")
	}
	if len(content) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}
	if rating < 1 || rating > 5 {
		return nil, apperror.ValidationFailed("rating", "rating must be between 1 and 5")
	}

	comment := &model.Comment{
		Content:   content,
		Rating:    rating,
		ProductID: productID,
		UserID:    sess.User.ID,
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		s.logger.Error("failed to create comment",
			slog.String("productID", productID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	s.logger.Info("comment posted",
		slog.String("id", comment.ID),
		slog.String("productID", productID),
		slog.String("userID", sess.User.ID),
	)

	return comment, nil
}

func validateProductInput(in ProductInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperror.ValidationFailed("name", "product name is required")
	}
	if len(name) > MaxProductNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("product name must be %d characters or less", MaxProductNameLength))
	}
	if in.Price < 0 {
		return apperror.ValidationFailed("price", "price must not be negative")
	}
	if in.Stock < 0 {
		return apperror.ValidationFailed("stock", "stock must not be negative")
	}
	return nil
}
