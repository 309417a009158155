package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/catalog-server/internal/dto"
	"github.com/listenupapp/catalog-server/internal/service"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns books newest first, optionally filtered by author or category",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Create book",
		Description:   "Creates a book. The author and every category must exist.",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/search",
		Summary:     "Search books",
		Description: "Full-text search over title, author, categories and description",
		Tags:        []string{"Books"},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Description: "Updates book fields. Changing the author or categories moves the book counts.",
		Tags:        []string{"Books"},
	}, s.handleUpdateBook)
}

// === DTOs ===

// CreateBookRequest is the request body for creating a book.
type CreateBookRequest struct {
	Title           string   `json:"title" doc:"Book title"`
	ISBN            string   `json:"isbn,omitempty" doc:"ISBN-10 or ISBN-13, hyphens allowed"`
	PublicationDate string   `json:"publication_date,omitempty" doc:"Publication date (YYYY-MM-DD)"`
	Description     string   `json:"description,omitempty" doc:"Description, HTML is converted to markdown"`
	PageCount       int      `json:"page_count,omitempty" doc:"Number of pages"`
	Language        string   `json:"language,omitempty" doc:"ISO 639-1 language code"`
	AuthorID        string   `json:"author_id" doc:"Author ID"`
	CategoryIDs     []string `json:"category_ids,omitempty" doc:"Category IDs"`
}

// CreateBookInput wraps the create book request for Huma.
type CreateBookInput struct {
	Body CreateBookRequest
}

// BookOutput wraps a book view for Huma.
type BookOutput struct {
	Body *dto.BookView
}

// WrittenBookOutput wraps a written book and its warnings for Huma.
type WrittenBookOutput struct {
	Body Written[*dto.BookView]
}

// GetBookInput contains parameters for getting a book.
type GetBookInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// UpdateBookInput wraps the update book request for Huma.
type UpdateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body service.UpdateBookRequest
}

// ListBooksInput contains parameters for listing books.
type ListBooksInput struct {
	AuthorID   string `query:"author_id" doc:"Only books by this author"`
	CategoryID string `query:"category_id" doc:"Only books in this category"`
	PageInput
}

// SearchBooksInput contains parameters for searching books.
type SearchBooksInput struct {
	Query      string `query:"q" doc:"Search text"`
	CategoryID string `query:"category_id" doc:"Only books in this category"`
	Language   string `query:"language" doc:"Only books in this language"`
	MinYear    int    `query:"min_year" doc:"Earliest publication year"`
	MaxYear    int    `query:"max_year" doc:"Latest publication year"`
	PageInput
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*PageOutput[*dto.BookView], error) {
	page, err := s.services.Books.ListBooks(ctx, service.ListBooksParams{
		AuthorID:   input.AuthorID,
		CategoryID: input.CategoryID,
		PageParams: input.params(),
	})
	if err != nil {
		return nil, err
	}
	return &PageOutput[*dto.BookView]{Body: page}, nil
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*PageOutput[*dto.BookView], error) {
	page, err := s.services.Books.SearchBooks(ctx, service.SearchBooksParams{
		Query:      input.Query,
		CategoryID: input.CategoryID,
		Language:   input.Language,
		MinYear:    input.MinYear,
		MaxYear:    input.MaxYear,
		PageParams: input.params(),
	})
	if err != nil {
		return nil, err
	}
	return &PageOutput[*dto.BookView]{Body: page}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*WrittenBookOutput, error) {
	res, err := s.services.Books.CreateBook(ctx, service.CreateBookRequest{
		Title:           input.Body.Title,
		ISBN:            input.Body.ISBN,
		PublicationDate: input.Body.PublicationDate,
		Description:     input.Body.Description,
		PageCount:       input.Body.PageCount,
		Language:        input.Body.Language,
		AuthorID:        input.Body.AuthorID,
		CategoryIDs:     input.Body.CategoryIDs,
	})
	if err != nil {
		return nil, err
	}
	return writtenBook(res), nil
}

func (s *Server) handleGetBook(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	book, err := s.services.Books.GetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*WrittenBookOutput, error) {
	res, err := s.services.Books.UpdateBook(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return writtenBook(res), nil
}

func writtenBook(res *service.BookResult) *WrittenBookOutput {
	return &WrittenBookOutput{Body: Written[*dto.BookView]{Data: res.Book, Warnings: res.Warnings}}
}
