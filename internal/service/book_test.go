package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/consistency"
	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/search"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/storetest"
)

func TestCreateBook(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	scifi := f.category(t, "Science Fiction")
	classic := f.category(t, "Classics")

	res, err := f.books.CreateBook(ctx, CreateBookRequest{
		Title:           "  Dune ",
		ISBN:            "978-0-441-17271-9",
		PublicationDate: "1965-08-01",
		Description:     "<p>Desert <strong>planet</strong></p>",
		Language:        "English",
		AuthorID:        author.ID,
		CategoryIDs:     []string{scifi.ID, classic.ID, scifi.ID},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	book := res.Book
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "9780441172719", book.ISBN)
	assert.Equal(t, "en", book.Language)
	assert.Equal(t, "Desert **planet**", book.Description)
	assert.Equal(t, domain.AuthorSnapshot{ID: author.ID, Name: "Frank Herbert"}, book.Author)
	assert.Equal(t, []string{scifi.ID, classic.ID}, book.CategoryIDs)
	assert.Equal(t, []domain.CategorySnapshot{
		{ID: scifi.ID, Name: "Science Fiction"},
		{ID: classic.ID, Name: "Classics"},
	}, book.Categories)

	assert.Equal(t, 1, f.authorCount(t, author.ID))
	assert.Equal(t, 1, f.categoryCount(t, scifi.ID))
	assert.Equal(t, 1, f.categoryCount(t, classic.ID))
}

func TestCreateBook_InvalidReferences(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	scifi := f.category(t, "Science Fiction")

	_, err := f.books.CreateBook(ctx, CreateBookRequest{
		Title:       "Dune",
		AuthorID:    author.ID,
		CategoryIDs: []string{scifi.ID, "cat-missing"},
	})
	de := assertCode(t, err, domainerrors.CodeInvalidReference)
	details, ok := de.Details.(domainerrors.ReferenceErrors)
	require.True(t, ok)
	assert.Equal(t, []string{"Category with ID cat-missing does not exist"}, details["category_ids"])

	// Nothing was written.
	assert.Equal(t, 0, f.authorCount(t, author.ID))
	assert.Equal(t, 0, f.categoryCount(t, scifi.ID))
	page, err := f.books.ListBooks(ctx, ListBooksParams{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestCreateBook_MissingAuthorAndCategory(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)

	_, err := f.books.CreateBook(context.Background(), CreateBookRequest{
		Title:       "Dune",
		AuthorID:    "author-missing",
		CategoryIDs: []string{"cat-missing"},
	})
	de := assertCode(t, err, domainerrors.CodeInvalidReference)
	details := de.Details.(domainerrors.ReferenceErrors)
	assert.Equal(t, []string{"author_id", "category_ids"}, details.Fields())
}

func TestCreateBook_Validation(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	author := f.author(t, "Frank Herbert")

	_, err := f.books.CreateBook(context.Background(), CreateBookRequest{
		Title:           "Dune",
		ISBN:            "12345",
		PublicationDate: "1965-13-01",
		AuthorID:        author.ID,
	})
	de := assertCode(t, err, domainerrors.CodeValidation)
	details, ok := de.Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "isbn")
	assert.Contains(t, details, "publication_date")
}

func TestCreateBook_DuplicateISBN(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")

	_, err := f.books.CreateBook(ctx, CreateBookRequest{Title: "Dune", ISBN: "9780441172719", AuthorID: author.ID})
	require.NoError(t, err)

	_, err = f.books.CreateBook(ctx, CreateBookRequest{Title: "Dune again", ISBN: "978-0441172719", AuthorID: author.ID})
	de := assertCode(t, err, domainerrors.CodeDuplicate)
	assert.Equal(t, map[string]string{"constraint": store.ConstraintISBN}, de.Details)
	assert.Equal(t, 1, f.authorCount(t, author.ID))
}

func TestCreateBook_CounterFailureIsWarning(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	f.catalog.Fail(domain.KindAuthor, storetest.OpIncrement, "", errors.New("disk full"))

	res, err := f.books.CreateBook(ctx, CreateBookRequest{Title: "Dune", AuthorID: author.ID})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, domainerrors.CodePropagation, w.Code)
	assert.Equal(t, consistency.StepCounters, w.Stage)
	assert.Equal(t, domain.KindAuthor, w.Kind)
	assert.Equal(t, author.ID, w.ID)

	// The primary write stands.
	_, err = f.books.GetBook(ctx, res.Book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.authorCount(t, author.ID))

	f.catalog.Heal()
	report, err := f.reconcile.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Authors.Corrected)
	assert.Equal(t, 1, f.authorCount(t, author.ID))
}

func TestCreateBook_SnapshotFailureUsesPlaceholder(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	f.catalog.Fail(domain.KindAuthor, storetest.OpGet, author.ID, errors.New("timeout"))

	res, err := f.books.CreateBook(ctx, CreateBookRequest{Title: "Dune", AuthorID: author.ID})
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, consistency.StepSnapshots, res.Warnings[0].Stage)
	// The stored copy holds the placeholder; the response is repaired from a batch read.
	assert.Equal(t, "Frank Herbert", res.Book.Author.Name)
	stored, err := f.catalog.Books().Get(ctx, res.Book.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownAuthor, stored.Author.Name)

	// Reconcile replaces the placeholder once the author is readable.
	f.catalog.Heal()
	_, err = f.reconcile.ReconcileAll(ctx)
	require.NoError(t, err)
	view, err := f.books.GetBook(ctx, res.Book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Frank Herbert", view.Author.Name)
}

func TestGetBook_RepairsPlaceholderAfterRecovery(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Ursula Le Guin")
	fantasy := f.category(t, "Fantasy")
	f.catalog.Fail(domain.KindAuthor, storetest.OpGet, author.ID, errors.New("timeout"))
	f.catalog.Fail(domain.KindCategory, storetest.OpGetMany, "", errors.New("timeout"))

	res, err := f.books.CreateBook(ctx, CreateBookRequest{Title: "The Dispossessed", AuthorID: author.ID, CategoryIDs: []string{fantasy.ID}})
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)

	stored, err := f.catalog.Books().Get(ctx, res.Book.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownAuthor, stored.Author.Name)

	// The next read shows live data without a reconcile run.
	f.catalog.Heal()
	view, err := f.books.GetBook(ctx, res.Book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ursula Le Guin", view.Author.Name)
	assert.Equal(t, []domain.CategorySnapshot{{ID: fantasy.ID, Name: "Fantasy"}}, view.Categories)
}

type failingIndex struct {
	BookIndex
}

func (failingIndex) IndexBook(*search.BookDocument) error { return errors.New("index closed") }

func TestCreateBook_SearchFailureIsWarning(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	f.books.index = failingIndex{BookIndex: f.index}
	author := f.author(t, "Frank Herbert")

	res, err := f.books.CreateBook(context.Background(), CreateBookRequest{Title: "Dune", AuthorID: author.ID})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, consistency.StepSearch, res.Warnings[0].Stage)
	assert.Equal(t, res.Book.ID, res.Warnings[0].ID)
	assert.Equal(t, 1, f.authorCount(t, author.ID))
}

func TestUpdateBook_MovesCounters(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	herbert := f.author(t, "Frank Herbert")
	leguin := f.author(t, "Ursula K. Le Guin")
	scifi := f.category(t, "Science Fiction")
	fantasy := f.category(t, "Fantasy")
	book := f.book(t, "Dune", herbert.ID, scifi.ID)

	res, err := f.books.UpdateBook(ctx, book.ID, UpdateBookRequest{
		AuthorID:    ptr(leguin.ID),
		CategoryIDs: ptr([]string{fantasy.ID}),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "Ursula K. Le Guin", res.Book.Author.Name)
	assert.Equal(t, []domain.CategorySnapshot{{ID: fantasy.ID, Name: "Fantasy"}}, res.Book.Categories)

	assert.Equal(t, 0, f.authorCount(t, herbert.ID))
	assert.Equal(t, 1, f.authorCount(t, leguin.ID))
	assert.Equal(t, 0, f.categoryCount(t, scifi.ID))
	assert.Equal(t, 1, f.categoryCount(t, fantasy.ID))
}

func TestUpdateBook_DetachLastCategoryIsIdempotent(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	scifi := f.category(t, "Science Fiction")
	book := f.book(t, "Dune", author.ID, scifi.ID)
	f.book(t, "Children of Dune", author.ID, scifi.ID)
	require.Equal(t, 2, f.categoryCount(t, scifi.ID))

	detach := UpdateBookRequest{CategoryIDs: ptr([]string{})}
	_, err := f.books.UpdateBook(ctx, book.ID, detach)
	require.NoError(t, err)
	assert.Equal(t, 1, f.categoryCount(t, scifi.ID))

	// A retried request finds nothing to move.
	_, err = f.books.UpdateBook(ctx, book.ID, UpdateBookRequest{CategoryIDs: ptr([]string{})})
	require.NoError(t, err)
	assert.Equal(t, 1, f.categoryCount(t, scifi.ID))
}

func TestUpdateBook_ConcurrentDuplicateDetach(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	scifi := f.category(t, "Science Fiction")
	book := f.book(t, "Dune", author.ID, scifi.ID)
	f.book(t, "Dune Messiah", author.ID, scifi.ID)

	var wg sync.WaitGroup
	for range 6 {
		wg.Go(func() {
			_, err := f.books.UpdateBook(ctx, book.ID, UpdateBookRequest{CategoryIDs: ptr([]string{})})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, 1, f.categoryCount(t, scifi.ID))
}

func TestUpdateBook_Errors(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	book := f.book(t, "Dune", author.ID)

	_, err := f.books.UpdateBook(ctx, book.ID, UpdateBookRequest{})
	de := assertCode(t, err, domainerrors.CodeValidation)
	assert.Equal(t, "No fields to update", de.Message)

	_, err = f.books.UpdateBook(ctx, "book-missing", UpdateBookRequest{Title: ptr("X")})
	assertCode(t, err, domainerrors.CodeNotFound)

	_, err = f.books.UpdateBook(ctx, book.ID, UpdateBookRequest{AuthorID: ptr("author-missing")})
	assertCode(t, err, domainerrors.CodeInvalidReference)
	assert.Equal(t, 1, f.authorCount(t, author.ID))
}

func TestUpdateBook_TitleKeepsCounters(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	scifi := f.category(t, "Science Fiction")
	book := f.book(t, "Dune", author.ID, scifi.ID)

	res, err := f.books.UpdateBook(ctx, book.ID, UpdateBookRequest{Title: ptr("Dune (Deluxe)")})
	require.NoError(t, err)
	assert.Equal(t, "Dune (Deluxe)", res.Book.Title)
	assert.Equal(t, "Frank Herbert", res.Book.Author.Name)
	assert.Equal(t, 1, f.authorCount(t, author.ID))
	assert.Equal(t, 1, f.categoryCount(t, scifi.ID))
}

func TestListBooks(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	herbert := f.author(t, "Frank Herbert")
	leguin := f.author(t, "Ursula K. Le Guin")
	scifi := f.category(t, "Science Fiction")
	f.book(t, "Dune", herbert.ID, scifi.ID)
	f.book(t, "Dune Messiah", herbert.ID)
	f.book(t, "The Dispossessed", leguin.ID, scifi.ID)

	all, err := f.books.ListBooks(ctx, ListBooksParams{PageParams: store.PageParams{Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Len(t, all.Items, 2)

	byAuthor, err := f.books.ListBooks(ctx, ListBooksParams{AuthorID: herbert.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, byAuthor.Total)

	byCategory, err := f.books.ListBooks(ctx, ListBooksParams{CategoryID: scifi.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, byCategory.Total)

	both, err := f.books.ListBooks(ctx, ListBooksParams{AuthorID: herbert.ID, CategoryID: scifi.ID})
	require.NoError(t, err)
	require.Equal(t, 1, both.Total)
	assert.Equal(t, "Dune", both.Items[0].Title)
}

func TestSearchBooks(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	herbert := f.author(t, "Frank Herbert")
	leguin := f.author(t, "Ursula K. Le Guin")
	f.book(t, "Dune", herbert.ID)
	f.book(t, "The Left Hand of Darkness", leguin.ID)

	res, err := f.books.SearchBooks(ctx, SearchBooksParams{Query: "darkness"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "The Left Hand of Darkness", res.Items[0].Title)

	res, err = f.books.SearchBooks(ctx, SearchBooksParams{Query: "herbert"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Dune", res.Items[0].Title)
}

func TestSearchBooks_WithoutIndex(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	f.books.index = nil
	ctx := context.Background()
	herbert := f.author(t, "Frank Herbert")
	f.book(t, "Dune", herbert.ID)
	f.book(t, "Dune Messiah", herbert.ID)
	f.book(t, "Solaris", herbert.ID)

	res, err := f.books.SearchBooks(ctx, SearchBooksParams{Query: "DUNE"})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Dune", res.Items[0].Title)
	assert.Equal(t, "Dune Messiah", res.Items[1].Title)
}

func TestReindex(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	f.book(t, "Dune", author.ID)
	f.book(t, "Dune Messiah", author.ID)

	require.NoError(t, f.index.Rebuild())
	n, err := f.books.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := f.index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}
