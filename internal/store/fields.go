package store

import "fmt"

// Field names a queryable record attribute.
type Field string

// Queryable fields.
const (
	FieldAuthorID    Field = "author_id"    // book
	FieldCategoryIDs Field = "category_ids" // book, set
	FieldISBN        Field = "isbn"         // book, unique
	FieldBookID      Field = "book_id"      // review
	FieldUserID      Field = "user_id"      // review
	FieldName        Field = "name"         // category, unique
	FieldUsername    Field = "username"     // user, unique
	FieldEmail       Field = "email"        // user, unique
)

// Counter names a derived integer attribute that is only changed by deltas.
type Counter string

// Derived counters.
const (
	CounterBookCount   Counter = "book_count"   // author, category
	CounterReviewCount Counter = "review_count" // user
)

// Unique constraint names reported in ConstraintError.
const (
	ConstraintISBN         = "book.isbn"
	ConstraintCategoryName = "category.name"
	ConstraintBookUser     = "review.book_user"
	ConstraintUsername     = "user.username"
	ConstraintEmail        = "user.email"
)

// InvalidField reports a field that the collection does not support for the query.
func InvalidField(kind string, field Field) error {
	return ErrInvalidInput.WithCause(fmt.Errorf("%s has no queryable field %q", kind, field))
}

// InvalidCounter reports a counter that the collection does not carry.
func InvalidCounter(kind string, counter Counter) error {
	return ErrInvalidInput.WithCause(fmt.Errorf("%s has no counter %q", kind, counter))
}
