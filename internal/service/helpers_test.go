package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/consistency"
	"github.com/listenupapp/catalog-server/internal/dto"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/search"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/storetest"
	"github.com/listenupapp/catalog-server/internal/validation"
)

type fixture struct {
	catalog    *storetest.Faulty
	engine     *consistency.Engine
	index      *search.Index
	books      *BookService
	reviews    *ReviewService
	authors    *AuthorService
	categories *CategoryService
	users      *UserService
	auth       *AuthService
	reconcile  *ReconcileService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, policy consistency.RatingPolicy) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := testLogger()

	db, err := store.New(filepath.Join(dir, "db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	index, err := search.Open(filepath.Join(dir, "search"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	tokens, err := auth.NewTokenService(make([]byte, auth.KeySize), 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	catalog := storetest.NewFaulty(db)
	engine := consistency.New(catalog, logger, consistency.Options{RatingPolicy: policy, RecentReviewsCap: 3})
	resolver := dto.NewResolver(catalog, logger, false)
	v := validation.New()

	users := NewUserService(catalog, resolver, v, logger)
	return &fixture{
		catalog:    catalog,
		engine:     engine,
		index:      index,
		books:      NewBookService(catalog, engine, resolver, v, index, logger),
		reviews:    NewReviewService(catalog, engine, resolver, v, logger),
		authors:    NewAuthorService(catalog, resolver, v, logger),
		categories: NewCategoryService(catalog, resolver, v, logger),
		users:      users,
		auth:       NewAuthService(users, tokens, v, logger),
		reconcile:  NewReconcileService(catalog, engine, logger),
	}
}

func (f *fixture) author(t *testing.T, name string) *dto.AuthorView {
	t.Helper()
	a, err := f.authors.CreateAuthor(context.Background(), CreateAuthorRequest{Name: name, BirthDate: "1920-01-02"})
	require.NoError(t, err)
	return a
}

func (f *fixture) category(t *testing.T, name string) *dto.CategoryView {
	t.Helper()
	c, err := f.categories.CreateCategory(context.Background(), CreateCategoryRequest{Name: name})
	require.NoError(t, err)
	return c
}

func (f *fixture) user(t *testing.T, username string) string {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), CreateUserRequest{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "correct horse battery",
		FirstName: "First",
		LastName:  "Last",
	})
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) book(t *testing.T, title, authorID string, categoryIDs ...string) *dto.BookView {
	t.Helper()
	res, err := f.books.CreateBook(context.Background(), CreateBookRequest{
		Title:       title,
		AuthorID:    authorID,
		CategoryIDs: categoryIDs,
	})
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	return res.Book
}

func (f *fixture) review(t *testing.T, bookID, userID string, rating float64) *dto.ReviewView {
	t.Helper()
	res, err := f.reviews.CreateReview(context.Background(), bookID, userID, CreateReviewRequest{Rating: rating, Title: "Review"})
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	return res.Review
}

func (f *fixture) authorCount(t *testing.T, id string) int {
	t.Helper()
	a, err := f.catalog.Authors().Get(context.Background(), id)
	require.NoError(t, err)
	return a.BookCount
}

func (f *fixture) categoryCount(t *testing.T, id string) int {
	t.Helper()
	c, err := f.catalog.Categories().Get(context.Background(), id)
	require.NoError(t, err)
	return c.BookCount
}

func (f *fixture) averageRating(t *testing.T, id string) float64 {
	t.Helper()
	b, err := f.catalog.Books().Get(context.Background(), id)
	require.NoError(t, err)
	return b.AverageRating
}

func assertCode(t *testing.T, err error, code domainerrors.Code) *domainerrors.Error {
	t.Helper()
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code)
	return de
}

func ptr[T any](v T) *T { return &v }
