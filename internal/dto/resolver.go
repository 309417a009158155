package dto

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
)

// TopBooksLimit is how many books a category read lists.
const TopBooksLimit = 5

// Resolver turns stored records into views, filling any embedded snapshot that
// is missing or partial from the live referenced record.
//
// Design notes:
//   - Batch fetching: one GetMany per referenced kind, not per record
//   - Graceful degradation: lookup failures yield placeholders, never errors
//   - Response-local: the stored record is only rewritten when persistRepairs is set
type Resolver struct {
	catalog        store.Catalog
	logger         *slog.Logger
	persistRepairs bool
}

// NewResolver creates a resolver. With persistRepairs, snapshots filled from
// live data are written back best-effort.
func NewResolver(catalog store.Catalog, logger *slog.Logger, persistRepairs bool) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{catalog: catalog, logger: logger, persistRepairs: persistRepairs}
}

// ResolveBook builds the view of one book.
func (r *Resolver) ResolveBook(ctx context.Context, book *domain.Book) *BookView {
	return r.ResolveBooks(ctx, []*domain.Book{book})[0]
}

// ResolveBooks builds views for a page of books with one lookup per referenced kind.
func (r *Resolver) ResolveBooks(ctx context.Context, books []*domain.Book) []*BookView {
	if len(books) == 0 {
		return []*BookView{}
	}

	// Collect what needs a live lookup across all books.
	var authorIDs, categoryIDs []string
	for _, b := range books {
		if !b.Author.Current(b.AuthorID) && b.AuthorID != "" {
			authorIDs = append(authorIDs, b.AuthorID)
		}
		have := storedCategories(b)
		for _, id := range b.CategoryIDs {
			if _, ok := have[id]; !ok {
				categoryIDs = append(categoryIDs, id)
			}
		}
	}
	authors := fetch(ctx, r, domain.KindAuthor, r.catalog.Authors(), authorIDs)
	categories := fetch(ctx, r, domain.KindCategory, r.catalog.Categories(), categoryIDs)

	views := make([]*BookView, len(books))
	for i, b := range books {
		view := newBookView(b)
		var (
			repairedAuthor     *domain.AuthorSnapshot
			repairedCategories bool
		)

		if !b.Author.Current(b.AuthorID) {
			if a, ok := authors[b.AuthorID]; ok {
				repairedAuthor = a.Snapshot()
				view.Author = *repairedAuthor
			} else {
				view.Author = domain.AuthorSnapshot{ID: b.AuthorID, Name: domain.UnknownAuthor}
			}
		}

		have := storedCategories(b)
		view.Categories = make([]domain.CategorySnapshot, 0, len(view.CategoryIDs))
		for _, id := range view.CategoryIDs {
			if snap, ok := have[id]; ok {
				view.Categories = append(view.Categories, snap)
				continue
			}
			if c, ok := categories[id]; ok {
				view.Categories = append(view.Categories, c.Snapshot())
				repairedCategories = true
				continue
			}
			view.Categories = append(view.Categories, domain.CategorySnapshot{ID: id, Name: domain.UnknownCategory})
		}

		if r.persistRepairs && (repairedAuthor != nil || repairedCategories) {
			r.persistBook(ctx, b.ID, repairedAuthor, categories)
		}
		views[i] = view
	}
	return views
}

// storedCategories indexes the book's live category snapshots by id.
// Placeholders and snapshots of categories the book no longer lists are skipped.
func storedCategories(b *domain.Book) map[string]domain.CategorySnapshot {
	have := make(map[string]domain.CategorySnapshot, len(b.Categories))
	for _, snap := range b.Categories {
		if snap.Complete() && slices.Contains(b.CategoryIDs, snap.ID) {
			have[snap.ID] = snap
		}
	}
	return have
}

// persistBook writes repaired snapshots back. Only live data is written, never
// placeholders, and only into blocks that are still incomplete.
func (r *Resolver) persistBook(ctx context.Context, id string, author *domain.AuthorSnapshot, categories map[string]*domain.Category) {
	_, err := r.catalog.Books().Update(ctx, id, func(b *domain.Book) error {
		if author != nil && !b.Author.Current(b.AuthorID) && b.AuthorID == author.ID {
			b.Author = author
		}
		have := storedCategories(b)
		snaps := make([]domain.CategorySnapshot, 0, len(b.CategoryIDs))
		for _, cid := range domain.DedupeIDs(b.CategoryIDs) {
			if snap, ok := have[cid]; ok {
				snaps = append(snaps, snap)
			} else if c, ok := categories[cid]; ok {
				snaps = append(snaps, c.Snapshot())
			}
		}
		b.Categories = snaps
		return nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "failed to persist repaired snapshots", "book_id", id, "error", err)
		return
	}
	r.logger.DebugContext(ctx, "persisted repaired snapshots", "book_id", id)
}

// ResolveReview builds the view of one review.
func (r *Resolver) ResolveReview(ctx context.Context, review *domain.Review) *ReviewView {
	return r.ResolveReviews(ctx, []*domain.Review{review})[0]
}

// ResolveReviews builds views for a list of reviews. A reviewer that cannot
// be read is shown as "Unknown user".
func (r *Resolver) ResolveReviews(ctx context.Context, reviews []*domain.Review) []*ReviewView {
	if len(reviews) == 0 {
		return []*ReviewView{}
	}

	var userIDs []string
	for _, rv := range reviews {
		if !rv.User.Current(reviewOwner(rv)) {
			userIDs = append(userIDs, reviewOwner(rv))
		}
	}
	users := fetch(ctx, r, domain.KindUser, r.catalog.Users(), userIDs)

	views := make([]*ReviewView, len(reviews))
	for i, rv := range reviews {
		view := newReviewView(rv)
		if !rv.User.Current(view.UserID) {
			if u, ok := users[view.UserID]; ok {
				snap := u.Snapshot()
				view.User = *snap
				if r.persistRepairs {
					r.persistReview(ctx, rv.ID, snap)
				}
			} else {
				view.User = domain.UserSnapshot{ID: view.UserID, Username: domain.UnknownUser}
			}
		}
		views[i] = view
	}
	return views
}

func (r *Resolver) persistReview(ctx context.Context, id string, snap *domain.UserSnapshot) {
	_, err := r.catalog.Reviews().Update(ctx, id, func(rv *domain.Review) error {
		if !rv.User.Current(reviewOwner(rv)) && reviewOwner(rv) == snap.ID {
			rv.User = snap
			if rv.UserID == "" {
				rv.UserID = snap.ID
			}
		}
		return nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "failed to persist repaired snapshot", "review_id", id, "error", err)
	}
}

// ResolveUser builds the view of a user. Recent review entries that lost their
// book title get it from the live book.
func (r *Resolver) ResolveUser(ctx context.Context, user *domain.User) *UserView {
	view := NewUserView(user)

	var bookIDs []string
	for _, rr := range view.RecentReviews {
		if rr.Book.Title == "" && rr.Book.ID != "" {
			bookIDs = append(bookIDs, rr.Book.ID)
		}
	}
	books := fetch(ctx, r, domain.KindBook, r.catalog.Books(), bookIDs)
	for i := range view.RecentReviews {
		entry := &view.RecentReviews[i]
		if entry.Book.Title != "" {
			continue
		}
		if b, ok := books[entry.Book.ID]; ok {
			entry.Book = b.Ref()
		}
	}
	return view
}

// ResolveCategory builds the view of a category with its best rated books.
func (r *Resolver) ResolveCategory(ctx context.Context, category *domain.Category) *CategoryView {
	view := NewCategoryView(category)

	books, err := r.catalog.Books().FindByMember(ctx, store.FieldCategoryIDs, category.ID)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to load category books", "category_id", category.ID, "error", err)
		return view
	}

	slices.SortStableFunc(books, func(a, b *domain.Book) int {
		if c := cmp.Compare(b.AverageRating, a.AverageRating); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	if len(books) > TopBooksLimit {
		books = books[:TopBooksLimit]
	}

	resolved := r.ResolveBooks(ctx, books)
	view.TopBooks = make([]BookSummary, 0, len(resolved))
	for _, b := range resolved {
		view.TopBooks = append(view.TopBooks, BookSummary{
			ID:            b.ID,
			Title:         b.Title,
			Author:        b.Author,
			AverageRating: b.AverageRating,
		})
	}
	return view
}

// ResolveAuthor builds the view of an author with every book by them,
// oldest publication first.
func (r *Resolver) ResolveAuthor(ctx context.Context, author *domain.Author) *AuthorView {
	view := NewAuthorView(author)

	books, err := r.catalog.Books().FindBy(ctx, store.FieldAuthorID, author.ID)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to load author books", "author_id", author.ID, "error", err)
		return view
	}

	slices.SortStableFunc(books, func(a, b *domain.Book) int {
		if c := cmp.Compare(a.PublicationDate, b.PublicationDate); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	view.Books = make([]AuthorBook, 0, len(books))
	for _, b := range books {
		view.Books = append(view.Books, AuthorBook{
			ID:              b.ID,
			Title:           b.Title,
			ISBN:            b.ISBN,
			PublicationDate: b.PublicationDate,
			AverageRating:   b.AverageRating,
		})
	}
	return view
}

// fetch batch-loads ids from col. Failures are logged and yield an empty map,
// so callers fall back to placeholders.
func fetch[T any](ctx context.Context, r *Resolver, kind domain.Kind, col store.Collection[T], ids []string) map[string]*T {
	ids = domain.DedupeIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	found, err := col.GetMany(ctx, ids)
	if err != nil {
		r.logger.WarnContext(ctx, "snapshot lookup failed", "kind", kind, "ids", ids, "error", err)
		return nil
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			r.logger.WarnContext(ctx, "referenced record not found", "kind", kind, "id", id)
		}
	}
	return found
}
