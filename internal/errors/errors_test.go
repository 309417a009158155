package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFoundf("%s with ID %s not found", "Book", "book-1")

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrDuplicate))

	wrapped := fmt.Errorf("get book: %w", err)
	assert.True(t, Is(wrapped, ErrNotFound))
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeDuplicate, http.StatusConflict},
		{CodeInvalidReference, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeForbidden, http.StatusForbidden},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodePropagation, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestInvalidReference_CollectsAllFields(t *testing.T) {
	refs := ReferenceErrors{}
	refs.Add("category_ids", "Category with ID c2 does not exist")
	refs.Add("author_id", "Author with ID a1 does not exist")
	refs.Add("category_ids", "Category with ID c3 does not exist")

	err := InvalidReference(refs)

	require.True(t, Is(err, ErrInvalidReference))
	details, ok := err.Details.(ReferenceErrors)
	require.True(t, ok)
	assert.Len(t, details["category_ids"], 2)
	assert.Equal(t, []string{"author_id", "category_ids"}, details.Fields())
}

func TestDuplicate_CarriesConstraint(t *testing.T) {
	err := Duplicate("review.book_user", "User has already reviewed this book")

	assert.Equal(t, map[string]string{"constraint": "review.book_user"}, err.Details)
	assert.Equal(t, http.StatusConflict, err.HTTPStatus())
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := New("disk full")
	err := Wrap(cause, CodeInternal, "save book")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "save book: disk full", err.Error())
}
