package consistency

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
)

// RatingPolicy selects how Book.AverageRating follows review changes.
type RatingPolicy string

const (
	// RatingFull rescans all reviews of the book on every change.
	RatingFull RatingPolicy = "full"
	// RatingIncremental adjusts the stored sum and count by the change.
	RatingIncremental RatingPolicy = "incremental"
)

// Valid reports whether p is a known policy.
func (p RatingPolicy) Valid() bool {
	return p == RatingFull || p == RatingIncremental
}

// Ratings maintains Book.AverageRating and the sum and count behind it.
type Ratings struct {
	catalog store.Catalog
	logger  *slog.Logger
	policy  RatingPolicy
}

// NewRatings creates a rating aggregator. An unknown policy falls back to RatingFull.
func NewRatings(catalog store.Catalog, logger *slog.Logger, policy RatingPolicy) *Ratings {
	if !policy.Valid() {
		policy = RatingFull
	}
	return &Ratings{catalog: catalog, logger: logger, policy: policy}
}

// Policy returns the active policy.
func (r *Ratings) Policy() RatingPolicy { return r.policy }

// Recompute sets the book's average to the mean of all its reviews' ratings,
// rounded to one decimal, or 0 with no reviews. Concurrent recomputes are
// last-writer-wins; each one reads the reviews committed at that time.
func (r *Ratings) Recompute(ctx context.Context, bookID string) (float64, error) {
	reviews, err := r.catalog.Reviews().FindBy(ctx, store.FieldBookID, bookID)
	if err != nil {
		return 0, fmt.Errorf("load reviews of book %s: %w", bookID, err)
	}

	var total float64
	for _, rv := range reviews {
		total += rv.Rating
	}

	change, err := r.catalog.Books().Update(ctx, bookID, func(b *domain.Book) error {
		b.SetRatingAggregate(total, len(reviews))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store rating of book %s: %w", bookID, err)
	}
	return change.After.AverageRating, nil
}

// Apply adjusts the stored sum and count atomically and derives the average from them.
func (r *Ratings) Apply(ctx context.Context, bookID string, deltaTotal float64, deltaCount int) (float64, error) {
	change, err := r.catalog.Books().Update(ctx, bookID, func(b *domain.Book) error {
		b.SetRatingAggregate(b.RatingTotal+deltaTotal, b.RatingCount+deltaCount)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("adjust rating of book %s: %w", bookID, err)
	}
	return change.After.AverageRating, nil
}

// ReviewAdded folds a new review's rating into its book.
func (r *Ratings) ReviewAdded(ctx context.Context, review *domain.Review, out *Outcome) {
	var err error
	if r.policy == RatingIncremental {
		_, err = r.Apply(ctx, review.BookID, review.Rating, 1)
	} else {
		_, err = r.Recompute(ctx, review.BookID)
	}
	if err != nil {
		out.Warn(ctx, StepAggregates, domain.KindBook, review.BookID, err)
	}
}

// ReviewRatingChanged folds a changed rating into the review's book.
func (r *Ratings) ReviewRatingChanged(ctx context.Context, before, after *domain.Review, out *Outcome) {
	if before.Rating == after.Rating {
		return
	}
	var err error
	if r.policy == RatingIncremental {
		_, err = r.Apply(ctx, after.BookID, after.Rating-before.Rating, 0)
	} else {
		_, err = r.Recompute(ctx, after.BookID)
	}
	if err != nil {
		out.Warn(ctx, StepAggregates, domain.KindBook, after.BookID, err)
	}
}
