package consistency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store/storetest"
)

func bookRating(t *testing.T, c *storetest.Faulty, id string) float64 {
	t.Helper()
	b, err := c.Books().Get(context.Background(), id)
	require.NoError(t, err)
	return b.AverageRating
}

func TestRatings_Policies(t *testing.T) {
	for _, policy := range []RatingPolicy{RatingFull, RatingIncremental} {
		t.Run(string(policy), func(t *testing.T) {
			c := newTestCatalog(t)
			ctx := context.Background()
			seedAuthor(t, c, "author-1", "A")
			seedUser(t, c, "user-1", "one")
			seedUser(t, c, "user-2", "two")
			seedBook(t, c, "book-1", "author-1")

			ratings := NewRatings(c, testLogger(), policy)
			require.Equal(t, policy, ratings.Policy())

			r1 := seedReview(t, c, "review-1", "book-1", "user-1", 4)
			ratings.ReviewAdded(ctx, r1, nil)
			assert.Equal(t, 4.0, bookRating(t, c, "book-1"))

			r2 := seedReview(t, c, "review-2", "book-1", "user-2", 2)
			ratings.ReviewAdded(ctx, r2, nil)
			assert.Equal(t, 3.0, bookRating(t, c, "book-1"))

			change, err := c.Reviews().Update(ctx, "review-1", func(r *domain.Review) error {
				r.Rating = 5
				return nil
			})
			require.NoError(t, err)

			out := NewOutcome(testLogger())
			ratings.ReviewRatingChanged(ctx, change.Before, change.After, out)
			assert.Equal(t, StageDone, out.Finish())
			assert.Equal(t, 3.5, bookRating(t, c, "book-1"))

			b, err := c.Books().Get(ctx, "book-1")
			require.NoError(t, err)
			assert.Equal(t, 2, b.RatingCount)
			assert.Equal(t, 7.0, b.RatingTotal)
		})
	}
}

func TestRatings_UnknownPolicyFallsBackToFull(t *testing.T) {
	r := NewRatings(newTestCatalog(t), testLogger(), "sometimes")
	assert.Equal(t, RatingFull, r.Policy())
}

func TestRatings_RecomputeRounds(t *testing.T) {
	c := newTestCatalog(t)
	seedAuthor(t, c, "author-1", "A")
	seedBook(t, c, "book-1", "author-1")
	for i, u := range []string{"user-1", "user-2", "user-3"} {
		seedUser(t, c, u, u)
		seedReview(t, c, "review-"+u, "book-1", u, []float64{4, 4, 3}[i])
	}

	avg, err := NewRatings(c, testLogger(), RatingFull).Recompute(context.Background(), "book-1")
	require.NoError(t, err)
	assert.Equal(t, 3.7, avg)
}

func TestRatings_RecomputeWithoutReviews(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	seedAuthor(t, c, "author-1", "A")
	seedBook(t, c, "book-1", "author-1")
	_, err := c.Books().Update(ctx, "book-1", func(b *domain.Book) error {
		b.SetRatingAggregate(9, 2)
		return nil
	})
	require.NoError(t, err)

	avg, err := NewRatings(c, testLogger(), RatingFull).Recompute(ctx, "book-1")
	require.NoError(t, err)
	assert.Zero(t, avg)
	assert.Zero(t, bookRating(t, c, "book-1"))
}

func TestRatings_UnchangedRatingSkips(t *testing.T) {
	c := newTestCatalog(t)
	ratings := NewRatings(c, testLogger(), RatingIncremental)

	r := &domain.Review{BookID: "book-1", Rating: 3}
	ratings.ReviewRatingChanged(context.Background(), r, r, nil)
	assert.Zero(t, c.Calls(domain.KindBook, storetest.OpUpdate))
}

func TestRatings_FailureBecomesWarning(t *testing.T) {
	c := newTestCatalog(t)
	seedAuthor(t, c, "author-1", "A")
	seedUser(t, c, "user-1", "one")
	seedBook(t, c, "book-1", "author-1")
	r := seedReview(t, c, "review-1", "book-1", "user-1", 4)
	c.Fail(domain.KindBook, storetest.OpUpdate, "book-1", errors.New("busy"))

	out := NewOutcome(testLogger())
	NewRatings(c, testLogger(), RatingFull).ReviewAdded(context.Background(), r, out)

	assert.Equal(t, StageDoneWithWarning, out.Finish())
	require.Len(t, out.Warnings(), 1)
	assert.Equal(t, StepAggregates, out.Warnings()[0].Stage)
	assert.Equal(t, "book-1", out.Warnings()[0].ID)
}
