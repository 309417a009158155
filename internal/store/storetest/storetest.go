// Package storetest holds the conformance suite every store.Catalog backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
)

// Opener returns a fresh, empty catalog. The suite closes it.
type Opener func(t *testing.T) store.Catalog

// Run exercises the full store.Collection contract against the catalog returned by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, c store.Catalog)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"GetMissing", testGetMissing},
		{"CreateDuplicateID", testCreateDuplicateID},
		{"UniqueConstraints", testUniqueConstraints},
		{"UpdateReturnsChange", testUpdateReturnsChange},
		{"UpdateAbortsOnError", testUpdateAbortsOnError},
		{"UpdateUniqueViolation", testUpdateUniqueViolation},
		{"IncrementFloorsAtZero", testIncrementFloorsAtZero},
		{"IncrementConcurrent", testIncrementConcurrent},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"FindBy", testFindBy},
		{"FindByMember", testFindByMember},
		{"FieldMismatch", testFieldMismatch},
		{"GetMany", testGetMany},
		{"List", testList},
		{"SnapshotsRoundTrip", testSnapshotsRoundTrip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := open(t)
			t.Cleanup(func() { _ = c.Close() })
			tt.fn(t, c)
		})
	}
}

func newBook(id, authorID string, categoryIDs ...string) *domain.Book {
	return &domain.Book{
		Record:      domain.Record{ID: id},
		Title:       "Title " + id,
		AuthorID:    authorID,
		CategoryIDs: categoryIDs,
	}
}

func testCreateAndGet(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	author := &domain.Author{Record: domain.Record{ID: "author-1"}, Name: "Frank Herbert", BirthDate: "1920-10-08"}
	require.NoError(t, c.Authors().Create(ctx, author))
	assert.False(t, author.CreatedAt.IsZero(), "Create should stamp timestamps")

	got, err := c.Authors().Get(ctx, "author-1")
	require.NoError(t, err)
	assert.Equal(t, "Frank Herbert", got.Name)
	assert.Equal(t, "1920-10-08", got.BirthDate)
	assert.Equal(t, 0, got.BookCount)
	assert.WithinDuration(t, author.CreatedAt, got.CreatedAt, time.Millisecond)
}

func testGetMissing(t *testing.T, c store.Catalog) {
	_, err := c.Books().Get(context.Background(), "book-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testCreateDuplicateID(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	require.NoError(t, c.Authors().Create(ctx, &domain.Author{Record: domain.Record{ID: "author-1"}, Name: "A"}))
	err := c.Authors().Create(ctx, &domain.Author{Record: domain.Record{ID: "author-1"}, Name: "B"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testUniqueConstraints(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	t.Run("isbn normalized", func(t *testing.T) {
		b1 := newBook("book-1", "author-1")
		b1.ISBN = "978-0-441-17271-9"
		require.NoError(t, c.Books().Create(ctx, b1))

		b2 := newBook("book-2", "author-1")
		b2.ISBN = "9780441172719"
		err := c.Books().Create(ctx, b2)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
		constraint, ok := store.Constraint(err)
		require.True(t, ok)
		assert.Equal(t, store.ConstraintISBN, constraint)
	})

	t.Run("empty isbn not unique", func(t *testing.T) {
		require.NoError(t, c.Books().Create(ctx, newBook("book-3", "author-1")))
		require.NoError(t, c.Books().Create(ctx, newBook("book-4", "author-1")))
	})

	t.Run("category name ignores case", func(t *testing.T) {
		require.NoError(t, c.Categories().Create(ctx, &domain.Category{Record: domain.Record{ID: "cat-1"}, Name: "Science Fiction"}))
		err := c.Categories().Create(ctx, &domain.Category{Record: domain.Record{ID: "cat-2"}, Name: "science fiction"})
		constraint, ok := store.Constraint(err)
		require.True(t, ok)
		assert.Equal(t, store.ConstraintCategoryName, constraint)
	})

	t.Run("one review per book and user", func(t *testing.T) {
		require.NoError(t, c.Reviews().Create(ctx, &domain.Review{Record: domain.Record{ID: "review-1"}, BookID: "book-1", UserID: "user-1", Rating: 4}))
		err := c.Reviews().Create(ctx, &domain.Review{Record: domain.Record{ID: "review-2"}, BookID: "book-1", UserID: "user-1", Rating: 2})
		constraint, ok := store.Constraint(err)
		require.True(t, ok)
		assert.Equal(t, store.ConstraintBookUser, constraint)

		// Same user, different book is fine.
		require.NoError(t, c.Reviews().Create(ctx, &domain.Review{Record: domain.Record{ID: "review-3"}, BookID: "book-2", UserID: "user-1", Rating: 2}))
	})

	t.Run("username and email", func(t *testing.T) {
		require.NoError(t, c.Users().Create(ctx, &domain.User{Record: domain.Record{ID: "user-1"}, Username: "Paul", Email: "paul@arrakis.test"}))

		err := c.Users().Create(ctx, &domain.User{Record: domain.Record{ID: "user-2"}, Username: "PAUL", Email: "other@arrakis.test"})
		constraint, _ := store.Constraint(err)
		assert.Equal(t, store.ConstraintUsername, constraint)

		err = c.Users().Create(ctx, &domain.User{Record: domain.Record{ID: "user-3"}, Username: "chani", Email: "Paul@Arrakis.test"})
		constraint, _ = store.Constraint(err)
		assert.Equal(t, store.ConstraintEmail, constraint)
	})
}

func testUpdateReturnsChange(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	book := newBook("book-1", "author-1", "cat-1", "cat-2")
	require.NoError(t, c.Books().Create(ctx, book))

	change, err := c.Books().Update(ctx, "book-1", func(b *domain.Book) error {
		b.AuthorID = "author-2"
		b.CategoryIDs = []string{"cat-2"}
		b.ID = "book-hijack"
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "author-1", change.Before.AuthorID)
	assert.Equal(t, []string{"cat-1", "cat-2"}, change.Before.CategoryIDs)
	assert.Equal(t, "author-2", change.After.AuthorID)
	assert.Equal(t, "book-1", change.After.ID, "Update must not change the record id")
	assert.False(t, change.After.UpdatedAt.Before(change.Before.UpdatedAt))

	stored, err := c.Books().Get(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "author-2", stored.AuthorID)
	assert.Equal(t, []string{"cat-2"}, stored.CategoryIDs)

	_, err = c.Books().Update(ctx, "book-missing", func(*domain.Book) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdateAbortsOnError(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	require.NoError(t, c.Authors().Create(ctx, &domain.Author{Record: domain.Record{ID: "author-1"}, Name: "Before"}))

	boom := fmt.Errorf("boom")
	_, err := c.Authors().Update(ctx, "author-1", func(a *domain.Author) error {
		a.Name = "After"
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := c.Authors().Get(ctx, "author-1")
	require.NoError(t, err)
	assert.Equal(t, "Before", got.Name)
}

func testUpdateUniqueViolation(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	require.NoError(t, c.Categories().Create(ctx, &domain.Category{Record: domain.Record{ID: "cat-1"}, Name: "Fantasy"}))
	require.NoError(t, c.Categories().Create(ctx, &domain.Category{Record: domain.Record{ID: "cat-2"}, Name: "Horror"}))

	_, err := c.Categories().Update(ctx, "cat-2", func(cat *domain.Category) error {
		cat.Name = "FANTASY"
		return nil
	})
	constraint, ok := store.Constraint(err)
	require.True(t, ok)
	assert.Equal(t, store.ConstraintCategoryName, constraint)

	// Renaming to a different case of its own name is allowed.
	_, err = c.Categories().Update(ctx, "cat-1", func(cat *domain.Category) error {
		cat.Name = "fantasy"
		return nil
	})
	require.NoError(t, err)

	found, err := c.Categories().FindBy(ctx, store.FieldName, "FANTASY")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "cat-1", found[0].ID)
}

func testIncrementFloorsAtZero(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	require.NoError(t, c.Categories().Create(ctx, &domain.Category{Record: domain.Record{ID: "cat-1"}, Name: "Fantasy"}))

	n, err := c.Categories().Increment(ctx, "cat-1", store.CounterBookCount, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Categories().Increment(ctx, "cat-1", store.CounterBookCount, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = c.Categories().Increment(ctx, "cat-1", store.CounterBookCount, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "counters never go negative")

	_, err = c.Categories().Increment(ctx, "cat-1", store.CounterReviewCount, 1)
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = c.Categories().Increment(ctx, "cat-missing", store.CounterBookCount, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testIncrementConcurrent(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	require.NoError(t, c.Users().Create(ctx, &domain.User{Record: domain.Record{ID: "user-1"}, Username: "paul", Email: "paul@arrakis.test"}))

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Users().Increment(ctx, "user-1", store.CounterReviewCount, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	u, err := c.Users().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, workers, u.ReviewCount)
}

func testDeleteIdempotent(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	b := newBook("book-1", "author-1", "cat-1")
	b.ISBN = "9780441172719"
	require.NoError(t, c.Books().Create(ctx, b))

	require.NoError(t, c.Books().Delete(ctx, "book-1"))
	require.NoError(t, c.Books().Delete(ctx, "book-1"))

	_, err := c.Books().Get(ctx, "book-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := c.Books().Count(ctx, store.FieldCategoryIDs, "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "delete removes set membership")

	// The ISBN is free again.
	again := newBook("book-2", "author-1")
	again.ISBN = "978-0441172719"
	require.NoError(t, c.Books().Create(ctx, again))
}

func testFindBy(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	require.NoError(t, c.Books().Create(ctx, newBook("book-1", "author-1")))
	require.NoError(t, c.Books().Create(ctx, newBook("book-2", "author-1")))
	require.NoError(t, c.Books().Create(ctx, newBook("book-3", "author-2")))

	books, err := c.Books().FindBy(ctx, store.FieldAuthorID, "author-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"book-1", "book-2"}, bookIDs(books))

	n, err := c.Books().Count(ctx, store.FieldAuthorID, "author-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Moving a book updates the index.
	_, err = c.Books().Update(ctx, "book-2", func(b *domain.Book) error {
		b.AuthorID = "author-2"
		return nil
	})
	require.NoError(t, err)

	n, err = c.Books().Count(ctx, store.FieldAuthorID, "author-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = c.Books().Count(ctx, store.FieldAuthorID, "author-2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	none, err := c.Books().FindBy(ctx, store.FieldAuthorID, "author-none")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testFindByMember(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	require.NoError(t, c.Books().Create(ctx, newBook("book-1", "author-1", "cat-1", "cat-2")))
	require.NoError(t, c.Books().Create(ctx, newBook("book-2", "author-1", "cat-2")))

	books, err := c.Books().FindByMember(ctx, store.FieldCategoryIDs, "cat-2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"book-1", "book-2"}, bookIDs(books))

	_, err = c.Books().Update(ctx, "book-1", func(b *domain.Book) error {
		b.CategoryIDs = []string{"cat-1"}
		return nil
	})
	require.NoError(t, err)

	n, err := c.Books().Count(ctx, store.FieldCategoryIDs, "cat-2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = c.Books().Count(ctx, store.FieldCategoryIDs, "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testFieldMismatch(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	_, err := c.Books().FindBy(ctx, store.FieldCategoryIDs, "cat-1")
	assert.ErrorIs(t, err, store.ErrInvalidInput, "set field used as scalar")

	_, err = c.Books().FindByMember(ctx, store.FieldAuthorID, "author-1")
	assert.ErrorIs(t, err, store.ErrInvalidInput, "scalar field used as set")

	_, err = c.Authors().FindBy(ctx, store.FieldBookID, "book-1")
	assert.ErrorIs(t, err, store.ErrInvalidInput, "unknown field")

	_, err = c.Reviews().Count(ctx, store.FieldEmail, "x")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func testGetMany(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	require.NoError(t, c.Categories().Create(ctx, &domain.Category{Record: domain.Record{ID: "cat-1"}, Name: "Fantasy"}))
	require.NoError(t, c.Categories().Create(ctx, &domain.Category{Record: domain.Record{ID: "cat-2"}, Name: "Horror"}))

	found, err := c.Categories().GetMany(ctx, []string{"cat-1", "cat-missing", "cat-2", "cat-1"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "Fantasy", found["cat-1"].Name)
	assert.NotContains(t, found, "cat-missing")

	empty, err := c.Categories().GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testList(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, c.Authors().Create(ctx, &domain.Author{
			Record: domain.Record{ID: fmt.Sprintf("author-%d", i)},
			Name:   fmt.Sprintf("Author %d", i),
		}))
	}

	var ids []string
	for a, err := range c.Authors().List(ctx) {
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	assert.Len(t, ids, 5)

	// Stopping early is allowed.
	seen := 0
	for range c.Authors().List(ctx) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func testSnapshotsRoundTrip(t *testing.T, c store.Catalog) {
	ctx := context.Background()

	book := newBook("book-1", "author-1", "cat-1")
	book.Author = &domain.AuthorSnapshot{ID: "author-1", Name: "Frank Herbert"}
	book.Categories = []domain.CategorySnapshot{{ID: "cat-1", Name: "Science Fiction"}}
	book.SetRatingAggregate(7, 2)
	require.NoError(t, c.Books().Create(ctx, book))

	gotBook, err := c.Books().Get(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, book.Author, gotBook.Author)
	assert.Equal(t, book.Categories, gotBook.Categories)
	assert.InDelta(t, 3.5, gotBook.AverageRating, 0.001)
	assert.Equal(t, 2, gotBook.RatingCount)

	review := &domain.Review{
		Record: domain.Record{ID: "review-1"},
		BookID: "book-1",
		UserID: "user-1",
		User:   &domain.UserSnapshot{ID: "user-1", Username: "paul", FirstName: "Paul"},
		Rating: 4.5,
	}
	require.NoError(t, c.Reviews().Create(ctx, review))
	gotReview, err := c.Reviews().Get(ctx, "review-1")
	require.NoError(t, err)
	assert.Equal(t, review.User, gotReview.User)

	noSnapshot := &domain.Review{Record: domain.Record{ID: "review-2"}, BookID: "book-2", UserID: "user-1", Rating: 1}
	require.NoError(t, c.Reviews().Create(ctx, noSnapshot))
	gotReview, err = c.Reviews().Get(ctx, "review-2")
	require.NoError(t, err)
	assert.Nil(t, gotReview.User)

	user := &domain.User{Record: domain.Record{ID: "user-1"}, Username: "paul", Email: "paul@arrakis.test"}
	user.PushRecentReview(review.Summary(book.Ref()), 20)
	require.NoError(t, c.Users().Create(ctx, user))
	gotUser, err := c.Users().Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, gotUser.RecentReviews, 1)
	assert.Equal(t, "review-1", gotUser.RecentReviews[0].ID)
	assert.Equal(t, domain.BookRef{ID: "book-1", Title: "Title book-1"}, gotUser.RecentReviews[0].Book)
}

func bookIDs(books []*domain.Book) []string {
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	return ids
}
