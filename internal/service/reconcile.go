package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/catalog-server/internal/consistency"
	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
)

// errSkip aborts a reconcile write whose record changed since it was read.
var errSkip = errors.New("record changed during reconcile")

// KindReport counts what one reconcile pass did.
type KindReport struct {
	Checked   int `json:"checked"`
	Corrected int `json:"corrected"`
	Failed    int `json:"failed"`
}

// ReconcileReport is the result of a reconcile run.
type ReconcileReport struct {
	Authors       KindReport    `json:"authors"`
	Categories    KindReport    `json:"categories"`
	Users         KindReport    `json:"users"`
	RecentReviews KindReport    `json:"recent_reviews"`
	Books         KindReport    `json:"books"`
	Reviews       KindReport    `json:"reviews"`
	Duration      time.Duration `json:"duration,format:units"`
}

// ReconcileService recomputes every derived value from live data: counters,
// rating aggregates, embedded snapshots and recent review lists. It repairs drift left behind by
// secondary writes that failed.
type ReconcileService struct {
	catalog store.Catalog
	engine  *consistency.Engine
	logger  *slog.Logger
}

// NewReconcileService creates a reconcile service.
func NewReconcileService(catalog store.Catalog, engine *consistency.Engine, logger *slog.Logger) *ReconcileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileService{catalog: catalog, engine: engine, logger: logger}
}

// ReconcileAll runs one pass per kind concurrently. A pass stops only when
// its kind cannot be listed; individual record failures are counted.
func (s *ReconcileService) ReconcileAll(ctx context.Context) (*ReconcileReport, error) {
	start := time.Now()
	report := &ReconcileReport{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.counterPass(gctx, domain.KindAuthor, &report.Authors) })
	g.Go(func() error { return s.counterPass(gctx, domain.KindCategory, &report.Categories) })
	g.Go(func() error { return s.counterPass(gctx, domain.KindUser, &report.Users) })
	g.Go(func() error { return s.recentReviewPass(gctx, &report.RecentReviews) })
	g.Go(func() error { return s.bookPass(gctx, &report.Books) })
	g.Go(func() error { return s.reviewPass(gctx, &report.Reviews) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	s.logger.InfoContext(ctx, "reconcile finished",
		"duration", report.Duration,
		"authors_corrected", report.Authors.Corrected,
		"categories_corrected", report.Categories.Corrected,
		"users_corrected", report.Users.Corrected,
		"recent_reviews_corrected", report.RecentReviews.Corrected,
		"books_corrected", report.Books.Corrected,
		"reviews_corrected", report.Reviews.Corrected,
	)
	return report, nil
}

// counterPass recounts the derived counter of every record of kind.
func (s *ReconcileService) counterPass(ctx context.Context, kind domain.Kind, r *KindReport) error {
	current, err := s.counters(ctx, kind)
	if err != nil {
		return fmt.Errorf("list %s: %w", kind, err)
	}
	for id, stored := range current {
		r.Checked++
		n, err := s.engine.Counters.Reconcile(ctx, kind, id)
		if err != nil {
			r.Failed++
			s.logger.WarnContext(ctx, "counter reconcile failed", "kind", kind, "id", id, "error", err)
			continue
		}
		if n != stored {
			r.Corrected++
			s.logger.InfoContext(ctx, "counter corrected", "kind", kind, "id", id, "was", stored, "now", n)
		}
	}
	return nil
}

// counters returns the stored counter of every record of kind by id.
func (s *ReconcileService) counters(ctx context.Context, kind domain.Kind) (map[string]int, error) {
	out := make(map[string]int)
	switch kind {
	case domain.KindAuthor:
		for a, err := range s.catalog.Authors().List(ctx) {
			if err != nil {
				return nil, err
			}
			out[a.ID] = a.BookCount
		}
	case domain.KindCategory:
		for c, err := range s.catalog.Categories().List(ctx) {
			if err != nil {
				return nil, err
			}
			out[c.ID] = c.BookCount
		}
	case domain.KindUser:
		for u, err := range s.catalog.Users().List(ctx) {
			if err != nil {
				return nil, err
			}
			out[u.ID] = u.ReviewCount
		}
	default:
		return nil, fmt.Errorf("%s has no counters", kind)
	}
	return out, nil
}

// recentReviewPass rebuilds every user's recent review list from their reviews.
func (s *ReconcileService) recentReviewPass(ctx context.Context, r *KindReport) error {
	users, err := collect(s.catalog.Users().List(ctx))
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		r.Checked++
		changed, err := s.engine.Snapshots.RebuildRecentReviews(ctx, u.ID)
		if err != nil {
			r.Failed++
			s.logger.WarnContext(ctx, "recent reviews reconcile failed", "user_id", u.ID, "error", err)
			continue
		}
		if changed {
			r.Corrected++
		}
	}
	return nil
}

// bookPass recomputes each book's rating and refreshes its author and
// category snapshots.
func (s *ReconcileService) bookPass(ctx context.Context, r *KindReport) error {
	books, err := collect(s.catalog.Books().List(ctx))
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	for _, b := range books {
		r.Checked++
		corrected := false

		avg, err := s.engine.Ratings.Recompute(ctx, b.ID)
		if err != nil {
			r.Failed++
			s.logger.WarnContext(ctx, "rating reconcile failed", "book_id", b.ID, "error", err)
			continue
		}
		if avg != b.AverageRating {
			corrected = true
		}

		refreshed, err := s.refreshBookSnapshots(ctx, b)
		if err != nil {
			r.Failed++
			s.logger.WarnContext(ctx, "snapshot reconcile failed", "book_id", b.ID, "error", err)
			continue
		}
		if corrected || refreshed {
			r.Corrected++
		}
	}
	return nil
}

func (s *ReconcileService) refreshBookSnapshots(ctx context.Context, b *domain.Book) (bool, error) {
	out := consistency.NewOutcome(nil)
	staged := &domain.Book{AuthorID: b.AuthorID, CategoryIDs: domain.DedupeIDs(b.CategoryIDs)}
	s.engine.Snapshots.EmbedAuthor(ctx, staged, out)
	s.engine.Snapshots.EmbedCategories(ctx, staged, out)
	if w := out.Warnings(); len(w) > 0 {
		// Never replace a snapshot with a placeholder.
		return false, fmt.Errorf("%s %s: %s", w[0].Kind, w[0].ID, w[0].Message)
	}

	if sameAuthor(b.Author, staged.Author) && slices.Equal(b.Categories, staged.Categories) {
		return false, nil
	}

	_, err := s.catalog.Books().Update(ctx, b.ID, func(cur *domain.Book) error {
		if cur.AuthorID != staged.AuthorID || !slices.Equal(domain.DedupeIDs(cur.CategoryIDs), staged.CategoryIDs) {
			return errSkip
		}
		cur.Author = staged.Author
		cur.Categories = staged.Categories
		return nil
	})
	if errors.Is(err, errSkip) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// reviewPass refreshes the user snapshot embedded in every review.
func (s *ReconcileService) reviewPass(ctx context.Context, r *KindReport) error {
	reviews, err := collect(s.catalog.Reviews().List(ctx))
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}
	for _, rv := range reviews {
		r.Checked++
		if rv.UserID == "" && rv.User != nil {
			rv.UserID = rv.User.ID
		}

		out := consistency.NewOutcome(nil)
		staged := &domain.Review{UserID: rv.UserID}
		s.engine.Snapshots.EmbedUser(ctx, staged, out)
		if len(out.Warnings()) > 0 {
			r.Failed++
			continue
		}
		if rv.User != nil && *rv.User == *staged.User {
			continue
		}

		_, err := s.catalog.Reviews().Update(ctx, rv.ID, func(cur *domain.Review) error {
			if cur.UserID == "" {
				cur.UserID = staged.UserID
			}
			if cur.UserID != staged.UserID {
				return errSkip
			}
			cur.User = staged.User
			return nil
		})
		switch {
		case errors.Is(err, errSkip):
		case err != nil:
			r.Failed++
			s.logger.WarnContext(ctx, "snapshot reconcile failed", "review_id", rv.ID, "error", err)
		default:
			r.Corrected++
		}
	}
	return nil
}

func sameAuthor(a, b *domain.AuthorSnapshot) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
