package consistency

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
)

// DefaultRecentReviewsCap is the default length limit of User.RecentReviews.
const DefaultRecentReviewsCap = 20

// errUnchanged aborts an Update whose mutator found nothing to change.
var errUnchanged = errors.New("unchanged")

// Snapshots fills and refreshes the display copies embedded in books, reviews and users.
type Snapshots struct {
	catalog   store.Catalog
	logger    *slog.Logger
	recentCap int
}

// NewSnapshots creates a snapshot embedder. A non-positive cap uses DefaultRecentReviewsCap.
func NewSnapshots(catalog store.Catalog, logger *slog.Logger, recentCap int) *Snapshots {
	if recentCap <= 0 {
		recentCap = DefaultRecentReviewsCap
	}
	return &Snapshots{catalog: catalog, logger: logger, recentCap: recentCap}
}

// RecentCap returns the configured recent review list length.
func (s *Snapshots) RecentCap() int { return s.recentCap }

// EmbedAuthor copies the author's id and name into book.Author. When the
// author cannot be read the copy gets the "Unknown Author" placeholder.
func (s *Snapshots) EmbedAuthor(ctx context.Context, book *domain.Book, out *Outcome) {
	author, err := s.catalog.Authors().Get(ctx, book.AuthorID)
	if err != nil {
		book.Author = &domain.AuthorSnapshot{ID: book.AuthorID, Name: domain.UnknownAuthor}
		out.Warn(ctx, StepSnapshots, domain.KindAuthor, book.AuthorID, err)
		return
	}
	book.Author = author.Snapshot()
}

// EmbedCategories rebuilds book.Categories in CategoryIDs order. Categories
// that cannot be read get the "Unknown Category" placeholder.
func (s *Snapshots) EmbedCategories(ctx context.Context, book *domain.Book, out *Outcome) {
	ids := domain.DedupeIDs(book.CategoryIDs)
	found, err := s.catalog.Categories().GetMany(ctx, ids)
	if err != nil {
		found = nil
	}

	snapshots := make([]domain.CategorySnapshot, 0, len(ids))
	for _, id := range ids {
		if cat, ok := found[id]; ok {
			snapshots = append(snapshots, cat.Snapshot())
			continue
		}
		snapshots = append(snapshots, domain.CategorySnapshot{ID: id, Name: domain.UnknownCategory})
		cause := err
		if cause == nil {
			cause = store.ErrNotFound
		}
		out.Warn(ctx, StepSnapshots, domain.KindCategory, id, cause)
	}
	book.Categories = snapshots
}

// EmbedUser copies the reviewer's display fields into review.User. When the
// user cannot be read the copy gets the "Unknown user" placeholder.
func (s *Snapshots) EmbedUser(ctx context.Context, review *domain.Review, out *Outcome) {
	user, err := s.catalog.Users().Get(ctx, review.UserID)
	if err != nil {
		review.User = &domain.UserSnapshot{ID: review.UserID, Username: domain.UnknownUser}
		out.Warn(ctx, StepSnapshots, domain.KindUser, review.UserID, err)
		return
	}
	review.User = user.Snapshot()
}

// PushRecentReview puts entry at the head of the user's recent review list.
// An existing entry for the same review is replaced, so retries never duplicate,
// and the list is cut to the configured cap.
func (s *Snapshots) PushRecentReview(ctx context.Context, userID string, entry domain.RecentReview, out *Outcome) {
	_, err := s.catalog.Users().Update(ctx, userID, func(u *domain.User) error {
		u.PushRecentReview(entry, s.recentCap)
		return nil
	})
	if err != nil {
		out.Warn(ctx, StepSnapshots, domain.KindUser, userID, err)
	}
}

// RefreshRecentReview rewrites the rating shown for reviewID in the user's
// recent review list. Reviews that have aged out of the list are left alone.
func (s *Snapshots) RefreshRecentReview(ctx context.Context, userID, reviewID string, rating float64, out *Outcome) {
	_, err := s.catalog.Users().Update(ctx, userID, func(u *domain.User) error {
		if !u.UpdateRecentRating(reviewID, rating) {
			return errUnchanged
		}
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		out.Warn(ctx, StepSnapshots, domain.KindUser, userID, err)
	}
}

// RebuildRecentReviews replaces the user's recent review list with their
// newest reviews, restoring entries lost to a failed push. Entries pushed
// after the rebuild started are kept. It reports whether the list changed.
func (s *Snapshots) RebuildRecentReviews(ctx context.Context, userID string) (bool, error) {
	started := time.Now()
	reviews, err := s.catalog.Reviews().FindBy(ctx, store.FieldUserID, userID)
	if err != nil {
		return false, err
	}
	slices.SortStableFunc(reviews, func(a, b *domain.Review) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(reviews) > s.recentCap {
		reviews = reviews[:s.recentCap]
	}

	var books map[string]*domain.Book
	if len(reviews) > 0 {
		bookIDs := make([]string, 0, len(reviews))
		for _, r := range reviews {
			bookIDs = append(bookIDs, r.BookID)
		}
		if books, err = s.catalog.Books().GetMany(ctx, domain.DedupeIDs(bookIDs)); err != nil {
			return false, err
		}
	}

	rebuilt := make([]domain.RecentReview, 0, len(reviews))
	for _, r := range reviews {
		ref := domain.BookRef{ID: r.BookID}
		if b, ok := books[r.BookID]; ok {
			ref = b.Ref()
		}
		rebuilt = append(rebuilt, r.Summary(ref))
	}

	_, err = s.catalog.Users().Update(ctx, userID, func(u *domain.User) error {
		list := rebuilt
		for _, rr := range slices.Backward(u.RecentReviews) {
			if rr.CreatedAt.After(started) {
				list = pushRecent(list, rr, s.recentCap)
			}
		}
		if slices.EqualFunc(u.RecentReviews, list, sameRecent) {
			return errUnchanged
		}
		u.RecentReviews = list
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func pushRecent(list []domain.RecentReview, entry domain.RecentReview, limit int) []domain.RecentReview {
	u := domain.User{RecentReviews: list}
	u.PushRecentReview(entry, limit)
	return u.RecentReviews
}

func sameRecent(a, b domain.RecentReview) bool {
	return a.ID == b.ID && a.Book == b.Book && a.Rating == b.Rating && a.CreatedAt.Equal(b.CreatedAt)
}
