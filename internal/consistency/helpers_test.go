package consistency

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/storetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCatalog(t *testing.T) *storetest.Faulty {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "catalog"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return storetest.NewFaulty(s)
}

func seedAuthor(t *testing.T, c store.Catalog, id, name string) {
	t.Helper()
	require.NoError(t, c.Authors().Create(context.Background(), &domain.Author{Record: domain.Record{ID: id}, Name: name}))
}

func seedCategory(t *testing.T, c store.Catalog, id, name string) {
	t.Helper()
	require.NoError(t, c.Categories().Create(context.Background(), &domain.Category{Record: domain.Record{ID: id}, Name: name}))
}

func seedUser(t *testing.T, c store.Catalog, id, username string) {
	t.Helper()
	require.NoError(t, c.Users().Create(context.Background(), &domain.User{
		Record:    domain.Record{ID: id},
		Username:  username,
		Email:     username + "@example.com",
		FirstName: "First " + username,
	}))
}

func seedBook(t *testing.T, c store.Catalog, id, authorID string, categoryIDs ...string) *domain.Book {
	t.Helper()
	b := &domain.Book{Record: domain.Record{ID: id}, Title: "Title " + id, AuthorID: authorID, CategoryIDs: categoryIDs}
	require.NoError(t, c.Books().Create(context.Background(), b))
	return b
}

func seedReview(t *testing.T, c store.Catalog, id, bookID, userID string, rating float64) *domain.Review {
	t.Helper()
	r := &domain.Review{Record: domain.Record{ID: id}, BookID: bookID, UserID: userID, Rating: rating}
	require.NoError(t, c.Reviews().Create(context.Background(), r))
	return r
}

func authorCount(t *testing.T, c store.Catalog, id string) int {
	t.Helper()
	a, err := c.Authors().Get(context.Background(), id)
	require.NoError(t, err)
	return a.BookCount
}

func categoryCount(t *testing.T, c store.Catalog, id string) int {
	t.Helper()
	cat, err := c.Categories().Get(context.Background(), id)
	require.NoError(t, err)
	return cat.BookCount
}
