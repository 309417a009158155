package consistency

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
)

// maxCounterFanout caps concurrent counter writes for one mutation.
const maxCounterFanout = 4

// Counters maintains Author.BookCount, Category.BookCount and User.ReviewCount.
type Counters struct {
	catalog store.Catalog
	logger  *slog.Logger
}

// NewCounters creates a counter propagator.
func NewCounters(catalog store.Catalog, logger *slog.Logger) *Counters {
	return &Counters{catalog: catalog, logger: logger}
}

// ApplyDelta adds delta to counter on the record kind/id. The store floors the result at zero.
func (c *Counters) ApplyDelta(ctx context.Context, kind domain.Kind, id string, counter store.Counter, delta int) error {
	var err error
	switch kind {
	case domain.KindAuthor:
		_, err = c.catalog.Authors().Increment(ctx, id, counter, delta)
	case domain.KindCategory:
		_, err = c.catalog.Categories().Increment(ctx, id, counter, delta)
	case domain.KindUser:
		_, err = c.catalog.Users().Increment(ctx, id, counter, delta)
	default:
		return fmt.Errorf("%s has no counters", kind)
	}
	if err != nil {
		return fmt.Errorf("apply %+d to %s %s.%s: %w", delta, kind, id, counter, err)
	}
	return nil
}

type delta struct {
	kind domain.Kind
	id   string
	n    int
}

// BookCreated credits the new book to its author and each of its categories.
func (c *Counters) BookCreated(ctx context.Context, book *domain.Book, out *Outcome) {
	deltas := []delta{{domain.KindAuthor, book.AuthorID, +1}}
	for _, categoryID := range domain.DedupeIDs(book.CategoryIDs) {
		deltas = append(deltas, delta{domain.KindCategory, categoryID, +1})
	}
	c.apply(ctx, deltas, out)
}

// BookChanged moves counts between authors and categories according to the
// difference between the two states of one committed update. Diffing the
// states captured by that update means a retried or duplicated request that
// changes nothing also moves nothing.
func (c *Counters) BookChanged(ctx context.Context, before, after *domain.Book, out *Outcome) {
	var deltas []delta
	if before.AuthorID != after.AuthorID {
		if before.AuthorID != "" {
			deltas = append(deltas, delta{domain.KindAuthor, before.AuthorID, -1})
		}
		if after.AuthorID != "" {
			deltas = append(deltas, delta{domain.KindAuthor, after.AuthorID, +1})
		}
	}

	added, removed := domain.DiffIDs(domain.DedupeIDs(before.CategoryIDs), domain.DedupeIDs(after.CategoryIDs))
	for _, id := range added {
		deltas = append(deltas, delta{domain.KindCategory, id, +1})
	}
	for _, id := range removed {
		deltas = append(deltas, delta{domain.KindCategory, id, -1})
	}
	c.apply(ctx, deltas, out)
}

// ReviewCreated credits the new review to its author.
func (c *Counters) ReviewCreated(ctx context.Context, review *domain.Review, out *Outcome) {
	c.apply(ctx, []delta{{domain.KindUser, review.UserID, +1}}, out)
}

func (c *Counters) apply(ctx context.Context, deltas []delta, out *Outcome) {
	var g errgroup.Group
	g.SetLimit(maxCounterFanout)
	for _, d := range deltas {
		g.Go(func() error {
			counter := store.CounterBookCount
			if d.kind == domain.KindUser {
				counter = store.CounterReviewCount
			}
			if err := c.ApplyDelta(ctx, d.kind, d.id, counter, d.n); err != nil {
				out.Warn(ctx, StepCounters, d.kind, d.id, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Reconcile recounts the derived counter of kind/id from live data, stores it
// and returns it.
func (c *Counters) Reconcile(ctx context.Context, kind domain.Kind, id string) (int, error) {
	var (
		n   int
		err error
	)
	switch kind {
	case domain.KindAuthor:
		if n, err = c.catalog.Books().Count(ctx, store.FieldAuthorID, id); err != nil {
			return 0, err
		}
		_, err = c.catalog.Authors().Update(ctx, id, func(a *domain.Author) error {
			a.BookCount = n
			return nil
		})
	case domain.KindCategory:
		if n, err = c.catalog.Books().Count(ctx, store.FieldCategoryIDs, id); err != nil {
			return 0, err
		}
		_, err = c.catalog.Categories().Update(ctx, id, func(cat *domain.Category) error {
			cat.BookCount = n
			return nil
		})
	case domain.KindUser:
		if n, err = c.catalog.Reviews().Count(ctx, store.FieldUserID, id); err != nil {
			return 0, err
		}
		_, err = c.catalog.Users().Update(ctx, id, func(u *domain.User) error {
			u.ReviewCount = n
			return nil
		})
	default:
		return 0, fmt.Errorf("%s has no counters", kind)
	}
	if err != nil {
		return 0, err
	}

	if c.logger != nil {
		c.logger.DebugContext(ctx, "counter reconciled", "kind", kind, "id", id, "value", n)
	}
	return n, nil
}
