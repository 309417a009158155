package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/validation"
)

type bookRequest struct {
	Title           string   `json:"title" validate:"required,max=500"`
	ISBN            string   `json:"isbn" validate:"omitempty,isbn"`
	PublicationDate string   `json:"publication_date" validate:"omitempty,isodate"`
	Language        string   `json:"language" validate:"omitempty,language"`
	CategoryIDs     []string `json:"category_ids" validate:"max=3,dive,required"`
	Rating          float64  `json:"rating" validate:"gte=0,lte=5"`
}

func validBook() bookRequest {
	return bookRequest{
		Title:           "Dune",
		ISBN:            "978-0-441-17271-9",
		PublicationDate: "1965-08-01",
		Language:        "English",
		CategoryIDs:     []string{"cat-1"},
		Rating:          4.5,
	}
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Validate(validBook()))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name    string
		mutate  func(*bookRequest)
		field   string
		message string
	}{
		{"missing title", func(r *bookRequest) { r.Title = "" }, "title", "is required"},
		{"bad isbn", func(r *bookRequest) { r.ISBN = "12345" }, "isbn", "must be a valid ISBN-10 or ISBN-13"},
		{"bad date", func(r *bookRequest) { r.PublicationDate = "08/01/1965" }, "publication_date", "must be a date in YYYY-MM-DD format"},
		{"impossible date", func(r *bookRequest) { r.PublicationDate = "1965-02-30" }, "publication_date", "must be a date in YYYY-MM-DD format"},
		{"unknown language", func(r *bookRequest) { r.Language = "Klingonese" }, "language", "must be a recognized language"},
		{"rating too high", func(r *bookRequest) { r.Rating = 5.5 }, "rating", "must be less than or equal to 5"},
		{"too many categories", func(r *bookRequest) { r.CategoryIDs = []string{"a", "b", "c", "d"} }, "category_ids", "must not contain more than 3 items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validBook()
			tt.mutate(&req)

			err := v.Validate(req)
			require.Error(t, err)

			var derr *domainerrors.Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, domainerrors.CodeValidation, derr.Code)
			assert.Equal(t, http.StatusBadRequest, derr.Code.HTTPStatus())

			details, ok := derr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.message, details[tt.field])
		})
	}
}

func TestValidISBN(t *testing.T) {
	assert.True(t, validation.ValidISBN("0-8044-2957-X"))
	assert.True(t, validation.ValidISBN("9780441172719"))
	assert.False(t, validation.ValidISBN("08044X2957"))
	assert.False(t, validation.ValidISBN("978044117271"))
	assert.False(t, validation.ValidISBN(""))
}
