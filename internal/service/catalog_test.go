package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/consistency"
	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store"
)

func TestAuthorService(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()

	author, err := f.authors.CreateAuthor(ctx, CreateAuthorRequest{
		Name:      "  Mary   Shelley ",
		Biography: "<p>Wrote <em>Frankenstein</em>.</p>",
		BirthDate: "1797-08-30",
		DeathDate: "1851-02-01",
		Country:   "United Kingdom",
	})
	require.NoError(t, err)
	assert.Equal(t, "Mary Shelley", author.Name)
	assert.Equal(t, 0, author.BookCount)

	f.book(t, "The Last Man", author.ID)
	f.book(t, "Frankenstein", author.ID)
	_, err = f.books.UpdateBook(ctx, f.book(t, "Mathilda", author.ID).ID, UpdateBookRequest{PublicationDate: ptr("1959-01-01")})
	require.NoError(t, err)

	got, err := f.authors.GetAuthor(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.BookCount)
	require.Len(t, got.Books, 3)
	assert.Equal(t, "Frankenstein", got.Books[0].Title)
	assert.Equal(t, "Mathilda", got.Books[2].Title)

	updated, err := f.authors.UpdateAuthor(ctx, author.ID, UpdateAuthorRequest{Country: ptr("England")})
	require.NoError(t, err)
	assert.Equal(t, "England", updated.Country)
	assert.Equal(t, 3, updated.BookCount)

	_, err = f.authors.UpdateAuthor(ctx, author.ID, UpdateAuthorRequest{DeathDate: ptr("1700-01-01")})
	assertCode(t, err, domainerrors.CodeValidation)

	_, err = f.authors.UpdateAuthor(ctx, author.ID, UpdateAuthorRequest{})
	assertCode(t, err, domainerrors.CodeValidation)

	_, err = f.authors.GetAuthor(ctx, "author-missing")
	assertCode(t, err, domainerrors.CodeNotFound)
}

func TestAuthorService_List(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	f.author(t, "Zadie Smith")
	f.author(t, "alan moore")
	f.author(t, "Mary Shelley")

	page, err := f.authors.ListAuthors(context.Background(), store.PageParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "alan moore", page.Items[0].Name)
	assert.Equal(t, "Mary Shelley", page.Items[1].Name)
}

func TestCategoryService_UniqueName(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	f.category(t, "Science Fiction")
	fantasy := f.category(t, "Fantasy")

	_, err := f.categories.CreateCategory(ctx, CreateCategoryRequest{Name: "science  FICTION"})
	de := assertCode(t, err, domainerrors.CodeDuplicate)
	assert.Equal(t, "A category with this name already exists", de.Message)

	_, err = f.categories.UpdateCategory(ctx, fantasy.ID, UpdateCategoryRequest{Name: ptr("Science Fiction")})
	assertCode(t, err, domainerrors.CodeDuplicate)

	renamed, err := f.categories.UpdateCategory(ctx, fantasy.ID, UpdateCategoryRequest{Name: ptr("FANTASY")})
	require.NoError(t, err)
	assert.Equal(t, "FANTASY", renamed.Name)
}

func TestCategoryService_TopBooks(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	scifi := f.category(t, "Science Fiction")
	alice := f.user(t, "alice")

	ratings := map[string]float64{"A": 1, "B": 5, "C": 3, "D": 4, "E": 2, "F": 4.5}
	for _, title := range []string{"A", "B", "C", "D", "E", "F"} {
		book := f.book(t, title, author.ID, scifi.ID)
		f.review(t, book.ID, alice, ratings[title])
	}

	view, err := f.categories.GetCategory(ctx, scifi.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, view.BookCount)
	require.Len(t, view.TopBooks, 5)

	var titles []string
	for _, b := range view.TopBooks {
		titles = append(titles, b.Title)
		assert.Equal(t, "Frank Herbert", b.Author.Name)
	}
	assert.Equal(t, []string{"B", "F", "D", "C", "E"}, titles)
}

func TestUserService(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	_, err := f.users.CreateUser(ctx, CreateUserRequest{Username: "ALICE", Email: "other@example.com", Password: "long enough"})
	de := assertCode(t, err, domainerrors.CodeDuplicate)
	assert.Equal(t, map[string]string{"constraint": store.ConstraintUsername}, de.Details)

	_, err = f.users.CreateUser(ctx, CreateUserRequest{Username: "carol", Email: "Alice@Example.com", Password: "long enough"})
	de = assertCode(t, err, domainerrors.CodeDuplicate)
	assert.Equal(t, map[string]string{"constraint": store.ConstraintEmail}, de.Details)

	_, err = f.users.UpdateUser(ctx, alice, bob, UpdateUserRequest{FirstName: ptr("Mallory")})
	assertCode(t, err, domainerrors.CodeForbidden)

	view, err := f.users.UpdateUser(ctx, alice, alice, UpdateUserRequest{FirstName: ptr("Alice")})
	require.NoError(t, err)
	assert.Equal(t, "Alice", view.FirstName)

	stored, err := f.catalog.Users().Get(ctx, alice)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.NotContains(t, stored.PasswordHash, "correct horse")

	page, err := f.users.ListUsers(ctx, store.PageParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestUserService_RenameKeepsReviewSnapshot(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	book := f.book(t, "Dune", author.ID)
	alice := f.user(t, "alice")
	review := f.review(t, book.ID, alice, 4)

	_, err := f.users.UpdateUser(ctx, alice, alice, UpdateUserRequest{Username: ptr("alice2")})
	require.NoError(t, err)

	view, err := f.reviews.GetReview(ctx, book.ID, review.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.User.Username)

	report, err := f.reconcile.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reviews.Corrected)

	view, err = f.reviews.GetReview(ctx, book.ID, review.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice2", view.User.Username)
}

func TestReconcileAll_CleanCatalog(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	scifi := f.category(t, "Science Fiction")
	book := f.book(t, "Dune", author.ID, scifi.ID)
	f.review(t, book.ID, f.user(t, "alice"), 4)

	report, err := f.reconcile.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindReport{Checked: 1}, report.Authors)
	assert.Equal(t, KindReport{Checked: 1}, report.Categories)
	assert.Equal(t, KindReport{Checked: 1}, report.Users)
	assert.Equal(t, KindReport{Checked: 1}, report.RecentReviews)
	assert.Equal(t, KindReport{Checked: 1}, report.Books)
	assert.Equal(t, KindReport{Checked: 1}, report.Reviews)
}

func TestReconcileAll_RepairsDrift(t *testing.T) {
	f := newFixture(t, consistency.RatingFull)
	ctx := context.Background()
	author := f.author(t, "Frank Herbert")
	scifi := f.category(t, "Science Fiction")
	book := f.book(t, "Dune", author.ID, scifi.ID)
	alice := f.user(t, "alice")
	f.review(t, book.ID, alice, 4)

	_, err := f.catalog.Categories().Update(ctx, scifi.ID, func(c *domain.Category) error {
		c.BookCount = 7
		return nil
	})
	require.NoError(t, err)
	_, err = f.catalog.Users().Update(ctx, alice, func(u *domain.User) error {
		u.ReviewCount = 0
		return nil
	})
	require.NoError(t, err)

	report, err := f.reconcile.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Categories.Corrected)
	assert.Equal(t, 1, report.Users.Corrected)
	assert.Equal(t, 1, f.categoryCount(t, scifi.ID))

	user, err := f.users.GetUser(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, user.ReviewCount)
}
