package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/auth"
	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/repository"
)

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// Both mocks count writes so the gate tests can assert the strongest form
// of the authorization rule: a rejected call leaves storage byte-for-byte
// untouched, not merely errors out.

type mockProductRepo struct {
	products map[string]*model.Product
	order    []string // insertion order, newest last
	nextID   int
	writes   int
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[string]*model.Product)}
}

func (m *mockProductRepo) Create(_ context.Context, product *model.Product) error {
	m.nextID++
	product.ID = fmt.Sprintf("prod-%d", m.nextID)
	stored := *product
	m.products[product.ID] = &stored
	m.order = append(m.order, product.ID)
	m.writes++
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*model.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, apperror.NotFound("product", id)
	}
	result := *product
	return &result, nil
}

func (m *mockProductRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Product, error) {
	// Newest first, like the real store.
	result := make([]model.Product, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		result = append(result, *m.products[m.order[i]])
	}

	if opts.Offset >= len(result) {
		return []model.Product{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *mockProductRepo) Count(_ context.Context) (int, error) {
	return len(m.products), nil
}

func (m *mockProductRepo) CountByID(_ context.Context, id string) (int, error) {
	if _, ok := m.products[id]; ok {
		return 1, nil
	}
	return 0, nil
}

func (m *mockProductRepo) Update(_ context.Context, product *model.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return apperror.NotFound("product", product.ID)
	}
	stored := *product
	m.products[product.ID] = &stored
	m.writes++
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.products[id]; !ok {
		return apperror.NotFound("product", id)
	}
	delete(m.products, id)
	m.writes++
	return nil
}

type mockCommentRepo struct {
	comments []model.Comment
	nextID   int
	writes   int
}

func (m *mockCommentRepo) Create(_ context.Context, comment *model.Comment) error {
	m.nextID++
	comment.ID = fmt.Sprintf("comment-%d", m.nextID)
	m.comments = append(m.comments, *comment)
	m.writes++
	return nil
}

func (m *mockCommentRepo) ListByProduct(_ context.Context, productID string) ([]model.CommentWithUser, error) {
	result := []model.CommentWithUser{}
	for _, c := range m.comments {
		if c.ProductID == productID {
			result = append(result, model.CommentWithUser{Comment: c})
		}
	}
	return result, nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func newTestProductService(t *testing.T) (*ProductService, *mockProductRepo, *mockCommentRepo) {
	t.Helper()
	products := newMockProductRepo()
	comments := &mockCommentRepo{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewProductService(products, comments, logger), products, comments
}

func adminSession() *auth.Session {
	return &auth.Session{User: auth.SessionUser{ID: "admin-1", Role: model.RoleAdmin}}
}

func userSession() *auth.Session {
	return &auth.Session{User: auth.SessionUser{ID: "user-1", Role: model.RoleUser}}
}

func validInput() ProductInput {
	return ProductInput{
		Name:        "Mechanical Keyboard",
		Description: "Clicky",
		Price:       129.99,
		Images:      []string{"https://example.com/kb.png"},
		Stock:       12,
	}
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestProductCreate_AdminSuccess(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	product, err := svc.Create(context.Background(), adminSession(), validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if product.ID == "" {
		t.Error("expected product to have an ID")
	}
	if product.Name != "Mechanical Keyboard" {
		t.Errorf("Name = %q, want %q", product.Name, "Mechanical Keyboard")
	}
	// Ownership comes from the session, never from the input.
	if product.UserID != "admin-1" {
		t.Errorf("UserID = %q, want the calling admin %q", product.UserID, "admin-1")
	}
}

func TestProductCreate_GateRejectsNonAdmins(t *testing.T) {
	svc, products, _ := newTestProductService(t)

	cases := []struct {
		name string
		sess *auth.Session
	}{
		{"anonymous", nil},
		{"regular user", userSession()},
		{"role-less session", &auth.Session{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.sess, validInput())
			if !errors.Is(err, apperror.ErrForbidden) {
				t.Errorf("error = %v, want ErrForbidden", err)
			}
		})
	}

	if products.writes != 0 {
		t.Errorf("rejected creates performed %d writes, want 0", products.writes)
	}
}

func TestProductCreate_Validation(t *testing.T) {
	svc, products, _ := newTestProductService(t)

	cases := []struct {
		name   string
		mutate func(*ProductInput)
	}{
		{"empty name", func(in *ProductInput) { in.Name = "" }},
		{"whitespace name", func(in *ProductInput) { in.Name = "   " }},
		{"name too long", func(in *ProductInput) { in.Name = strings.Repeat("a", MaxProductNameLength+1) }},
		{"negative price", func(in *ProductInput) { in.Price = -1 }},
		{"negative stock", func(in *ProductInput) { in.Stock = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)

			_, err := svc.Create(context.Background(), adminSession(), in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}

	if products.writes != 0 {
		t.Errorf("invalid creates performed %d writes, want 0", products.writes)
	}
}

func TestProductCreate_TrimsWhitespace(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	in := validInput()
	in.Name = "  spaced  "
	in.Description = "  desc  "

	product, err := svc.Create(context.Background(), adminSession(), in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if product.Name != "spaced" {
		t.Errorf("Name = %q, want trimmed %q", product.Name, "spaced")
	}
	if product.Description != "desc" {
		t.Errorf("Description = %q, want trimmed %q", product.Description, "desc")
	}
}

// =========================================================================
// LIST / GET TESTS
// =========================================================================

func TestProductList_Empty(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	page, err := svc.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page.Products) != 0 {
		t.Errorf("List() returned %d products, want 0", len(page.Products))
	}
	if page.Count != 0 {
		t.Errorf("Count = %d, want 0", page.Count)
	}
}

func TestProductList_CountCoversWholeCatalog(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	for i := 0; i < 15; i++ {
		in := validInput()
		in.Name = fmt.Sprintf("product %d", i)
		if _, err := svc.Create(context.Background(), adminSession(), in); err != nil {
			t.Fatalf("setup: Create() error = %v", err)
		}
	}

	page, err := svc.List(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page.Products) != 10 {
		t.Errorf("page size = %d, want 10", len(page.Products))
	}
	// Count is the catalog total, not the page size — the storefront
	// renders pagination from it.
	if page.Count != 15 {
		t.Errorf("Count = %d, want 15", page.Count)
	}
}

func TestProductList_ClampsBadValues(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	if _, err := svc.List(context.Background(), -5, -10); err != nil {
		t.Fatalf("List() should handle negative values gracefully, got error = %v", err)
	}
	if _, err := svc.List(context.Background(), 0, MaxPageSize*10); err != nil {
		t.Fatalf("List() should clamp oversized takes, got error = %v", err)
	}
}

func TestProductGet_NotFound(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	_, err := svc.Get(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestProductGet_EmptyID(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	_, err := svc.Get(context.Background(), "  ")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestProductUpdate_AdminSuccess(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	created, _ := svc.Create(context.Background(), adminSession(), validInput())

	in := validInput()
	in.Name = "Renamed"
	in.Price = 99.5

	updated, err := svc.Update(context.Background(), adminSession(), created.ID, in)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("Name = %q, want %q", updated.Name, "Renamed")
	}
	if updated.Price != 99.5 {
		t.Errorf("Price = %v, want 99.5", updated.Price)
	}
}

func TestProductUpdate_GateRejectsNonAdmins(t *testing.T) {
	svc, products, _ := newTestProductService(t)

	created, _ := svc.Create(context.Background(), adminSession(), validInput())
	writesAfterSetup := products.writes

	for _, sess := range []*auth.Session{nil, userSession()} {
		_, err := svc.Update(context.Background(), sess, created.ID, validInput())
		if !errors.Is(err, apperror.ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	}

	if products.writes != writesAfterSetup {
		t.Errorf("rejected updates performed %d writes, want 0", products.writes-writesAfterSetup)
	}
}

func TestProductUpdate_NotFound(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	_, err := svc.Update(context.Background(), adminSession(), "nonexistent", validInput())
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// The gate outranks the existence check: a non-admin probing an unknown id
// gets forbidden, not not-found.
func TestProductUpdate_GatePrecedesNotFound(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	_, err := svc.Update(context.Background(), userSession(), "nonexistent", validInput())
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestProductDelete_AdminSuccess(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	created, _ := svc.Create(context.Background(), adminSession(), validInput())

	if err := svc.Delete(context.Background(), adminSession(), created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := svc.Get(context.Background(), created.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("after delete: error = %v, want ErrNotFound", err)
	}
}

func TestProductDelete_GateRejectsNonAdmins(t *testing.T) {
	svc, products, _ := newTestProductService(t)

	created, _ := svc.Create(context.Background(), adminSession(), validInput())
	writesAfterSetup := products.writes

	for _, sess := range []*auth.Session{nil, userSession()} {
		err := svc.Delete(context.Background(), sess, created.ID)
		if !errors.Is(err, apperror.ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	}

	if products.writes != writesAfterSetup {
		t.Error("rejected deletes must leave storage untouched")
	}
	if _, err := svc.Get(context.Background(), created.ID); err != nil {
		t.Errorf("product should still exist after rejected deletes: %v", err)
	}
}

func TestProductDelete_NotFound(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	err := svc.Delete(context.Background(), adminSession(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// COMMENT TESTS
// =========================================================================

func TestPostComment_AnyAuthenticatedRole(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	for _, sess := range []*auth.Session{userSession(), adminSession()} {
		comment, err := svc.PostComment(context.Background(), sess, "prod-1", "solid product", 5)
		if err != nil {
			t.Fatalf("PostComment() as %s error = %v", sess.User.Role, err)
		}
		if comment.UserID != sess.User.ID {
			t.Errorf("UserID = %q, want the caller %q", comment.UserID, sess.User.ID)
		}
	}
}

func TestPostComment_RejectsAnonymous(t *testing.T) {
	svc, _, comments := newTestProductService(t)

	for _, sess := range []*auth.Session{nil, {}} {
		_, err := svc.PostComment(context.Background(), sess, "prod-1", "drive-by", 3)
		if !errors.Is(err, apperror.ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	}

	if comments.writes != 0 {
		t.Errorf("rejected comments performed %d writes, want 0", comments.writes)
	}
}

func TestPostComment_Validation(t *testing.T) {
	svc, _, comments := newTestProductService(t)

	cases := []struct {
		name    string
		content string
		rating  int
	}{
		{"empty content", "", 3},
		{"whitespace content", "   ", 3},
		{"content too long", strings.Repeat("a", MaxCommentLength+1), 3},
		{"rating zero", "fine", 0},
		{"rating six", "fine", 6},
		{"rating negative", "fine", -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PostComment(context.Background(), userSession(), "prod-1", tc.content, tc.rating)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}

	if comments.writes != 0 {
		t.Errorf("invalid comments performed %d writes, want 0", comments.writes)
	}
}

func TestPostComment_RatingBounds(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	for rating := 1; rating <= 5; rating++ {
		if _, err := svc.PostComment(context.Background(), userSession(), "prod-1", "ok", rating); err != nil {
			t.Errorf("rating %d should be accepted: %v", rating, err)
		}
	}
}

func TestComments_EmptyProduct(t *testing.T) {
	svc, _, _ := newTestProductService(t)

	comments, err := svc.Comments(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("Comments() error = %v", err)
	}
	if len(comments) != 0 {
		t.Errorf("Comments() returned %d items, want 0", len(comments))
	}
}
