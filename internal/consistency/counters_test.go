package consistency

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/storetest"
)

func TestCounters_BookCreated(t *testing.T) {
	c := newTestCatalog(t)
	seedAuthor(t, c, "author-1", "Ursula K. Le Guin")
	seedCategory(t, c, "cat-1", "Fantasy")
	seedCategory(t, c, "cat-2", "Classics")

	book := seedBook(t, c, "book-1", "author-1", "cat-1", "cat-2", "cat-1")
	out := NewOutcome(testLogger())
	NewCounters(c, testLogger()).BookCreated(context.Background(), book, out)

	assert.Equal(t, StageDone, out.Finish())
	assert.Equal(t, 1, authorCount(t, c, "author-1"))
	assert.Equal(t, 1, categoryCount(t, c, "cat-1"))
	assert.Equal(t, 1, categoryCount(t, c, "cat-2"))
}

func TestCounters_BookChangedMovesCounts(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	seedAuthor(t, c, "author-1", "A")
	seedAuthor(t, c, "author-2", "B")
	seedCategory(t, c, "cat-1", "One")
	seedCategory(t, c, "cat-2", "Two")
	seedCategory(t, c, "cat-3", "Three")

	counters := NewCounters(c, testLogger())
	book := seedBook(t, c, "book-1", "author-1", "cat-1", "cat-2")
	counters.BookCreated(ctx, book, nil)

	change, err := c.Books().Update(ctx, "book-1", func(b *domain.Book) error {
		b.AuthorID = "author-2"
		b.CategoryIDs = []string{"cat-2", "cat-3"}
		return nil
	})
	require.NoError(t, err)

	out := NewOutcome(testLogger())
	counters.BookChanged(ctx, change.Before, change.After, out)

	assert.Equal(t, StageDone, out.Finish())
	assert.Equal(t, 0, authorCount(t, c, "author-1"))
	assert.Equal(t, 1, authorCount(t, c, "author-2"))
	assert.Equal(t, 0, categoryCount(t, c, "cat-1"))
	assert.Equal(t, 1, categoryCount(t, c, "cat-2"))
	assert.Equal(t, 1, categoryCount(t, c, "cat-3"))
}

func TestCounters_DetachLastCategoryOnRetry(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	seedAuthor(t, c, "author-1", "A")
	seedCategory(t, c, "cat-1", "One")

	counters := NewCounters(c, testLogger())
	book := seedBook(t, c, "book-1", "author-1", "cat-1")
	counters.BookCreated(ctx, book, nil)
	require.Equal(t, 1, categoryCount(t, c, "cat-1"))

	detach := func(b *domain.Book) error {
		b.CategoryIDs = []string{}
		return nil
	}

	// The same request delivered twice.
	for range 2 {
		change, err := c.Books().Update(ctx, "book-1", detach)
		require.NoError(t, err)
		counters.BookChanged(ctx, change.Before, change.After, nil)
	}

	assert.Equal(t, 0, categoryCount(t, c, "cat-1"))
}

func TestCounters_DetachConcurrentDuplicates(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	seedAuthor(t, c, "author-1", "A")
	seedCategory(t, c, "cat-1", "One")
	seedCategory(t, c, "cat-2", "Two")

	counters := NewCounters(c, testLogger())
	// A second book keeps cat-1 above zero so a double decrement would show.
	counters.BookCreated(ctx, seedBook(t, c, "book-1", "author-1", "cat-1", "cat-2"), nil)
	counters.BookCreated(ctx, seedBook(t, c, "book-2", "author-1", "cat-1"), nil)
	require.Equal(t, 2, categoryCount(t, c, "cat-1"))

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			change, err := c.Books().Update(ctx, "book-1", func(b *domain.Book) error {
				b.CategoryIDs = []string{"cat-2"}
				return nil
			})
			if assert.NoError(t, err) {
				counters.BookChanged(ctx, change.Before, change.After, nil)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, categoryCount(t, c, "cat-1"))
	assert.Equal(t, 1, categoryCount(t, c, "cat-2"))
}

func TestCounters_FloorAtZero(t *testing.T) {
	c := newTestCatalog(t)
	seedCategory(t, c, "cat-1", "One")

	counters := NewCounters(c, testLogger())
	require.NoError(t, counters.ApplyDelta(context.Background(), domain.KindCategory, "cat-1", store.CounterBookCount, -3))
	assert.Equal(t, 0, categoryCount(t, c, "cat-1"))
}

func TestCounters_ApplyDeltaUnknownKind(t *testing.T) {
	counters := NewCounters(newTestCatalog(t), testLogger())
	err := counters.ApplyDelta(context.Background(), domain.KindBook, "book-1", store.CounterBookCount, 1)
	assert.Error(t, err)
}

func TestCounters_FailureBecomesWarning(t *testing.T) {
	c := newTestCatalog(t)
	seedAuthor(t, c, "author-1", "A")
	seedCategory(t, c, "cat-1", "One")
	c.Fail(domain.KindAuthor, storetest.OpIncrement, "author-1", errors.New("timeout"))

	book := seedBook(t, c, "book-1", "author-1", "cat-1")
	out := NewOutcome(testLogger())
	NewCounters(c, testLogger()).BookCreated(context.Background(), book, out)

	assert.Equal(t, StageDoneWithWarning, out.Finish())
	warnings := out.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, domainerrors.CodePropagation, warnings[0].Code)
	assert.Equal(t, StepCounters, warnings[0].Stage)
	assert.Equal(t, domain.KindAuthor, warnings[0].Kind)
	assert.Equal(t, "author-1", warnings[0].ID)

	// The category half of the fan-out still landed.
	assert.Equal(t, 1, categoryCount(t, c, "cat-1"))
	assert.Equal(t, 0, authorCount(t, c, "author-1"))
}

func TestCounters_ReviewCreated(t *testing.T) {
	c := newTestCatalog(t)
	seedUser(t, c, "user-1", "reader")

	NewCounters(c, testLogger()).ReviewCreated(context.Background(), &domain.Review{UserID: "user-1"}, nil)

	u, err := c.Users().Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.ReviewCount)
}

func TestCounters_Reconcile(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	seedAuthor(t, c, "author-1", "A")
	seedCategory(t, c, "cat-1", "One")
	seedUser(t, c, "user-1", "reader")
	seedBook(t, c, "book-1", "author-1", "cat-1")
	seedBook(t, c, "book-2", "author-1")
	seedReview(t, c, "review-1", "book-1", "user-1", 4)

	// Drift: counts were never propagated, and the category is inflated.
	_, err := c.Categories().Increment(ctx, "cat-1", store.CounterBookCount, 5)
	require.NoError(t, err)

	counters := NewCounters(c, testLogger())

	n, err := counters.Reconcile(ctx, domain.KindAuthor, "author-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, authorCount(t, c, "author-1"))

	n, err = counters.Reconcile(ctx, domain.KindCategory, "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, categoryCount(t, c, "cat-1"))

	n, err = counters.Reconcile(ctx, domain.KindUser, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = counters.Reconcile(ctx, domain.KindAuthor, "author-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
