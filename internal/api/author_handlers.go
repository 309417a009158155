package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/catalog-server/internal/dto"
	"github.com/listenupapp/catalog-server/internal/service"
)

func (s *Server) registerAuthorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAuthors",
		Method:      http.MethodGet,
		Path:        "/api/v1/authors",
		Summary:     "List authors",
		Description: "Returns authors ordered by name",
		Tags:        []string{"Authors"},
	}, s.handleListAuthors)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createAuthor",
		Method:        http.MethodPost,
		Path:          "/api/v1/authors",
		Summary:       "Create author",
		Description:   "Creates an author with no books",
		Tags:          []string{"Authors"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateAuthor)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAuthor",
		Method:      http.MethodGet,
		Path:        "/api/v1/authors/{id}",
		Summary:     "Get author",
		Description: "Returns an author with their books",
		Tags:        []string{"Authors"},
	}, s.handleGetAuthor)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateAuthor",
		Method:      http.MethodPatch,
		Path:        "/api/v1/authors/{id}",
		Summary:     "Update author",
		Description: "Updates author fields. Book snapshots keep the old name until the next reconcile.",
		Tags:        []string{"Authors"},
	}, s.handleUpdateAuthor)
}

// === DTOs ===

// CreateAuthorRequest is the request body for creating an author.
type CreateAuthorRequest struct {
	Name      string `json:"name" doc:"Author name"`
	Biography string `json:"biography,omitempty" doc:"Biography, HTML is converted to markdown"`
	BirthDate string `json:"birth_date" doc:"Birth date (YYYY-MM-DD)"`
	DeathDate string `json:"death_date,omitempty" doc:"Death date (YYYY-MM-DD)"`
	Country   string `json:"country,omitempty" doc:"Country"`
}

// CreateAuthorInput wraps the create author request for Huma.
type CreateAuthorInput struct {
	Body CreateAuthorRequest
}

// AuthorOutput wraps an author view for Huma.
type AuthorOutput struct {
	Body *dto.AuthorView
}

// GetAuthorInput contains parameters for getting an author.
type GetAuthorInput struct {
	ID string `path:"id" doc:"Author ID"`
}

// UpdateAuthorInput wraps the update author request for Huma.
type UpdateAuthorInput struct {
	ID   string `path:"id" doc:"Author ID"`
	Body service.UpdateAuthorRequest
}

// ListAuthorsInput contains parameters for listing authors.
type ListAuthorsInput struct {
	PageInput
}

// === Handlers ===

func (s *Server) handleListAuthors(ctx context.Context, input *ListAuthorsInput) (*PageOutput[*dto.AuthorView], error) {
	page, err := s.services.Authors.ListAuthors(ctx, input.params())
	if err != nil {
		return nil, err
	}
	return &PageOutput[*dto.AuthorView]{Body: page}, nil
}

func (s *Server) handleCreateAuthor(ctx context.Context, input *CreateAuthorInput) (*AuthorOutput, error) {
	author, err := s.services.Authors.CreateAuthor(ctx, service.CreateAuthorRequest{
		Name:      input.Body.Name,
		Biography: input.Body.Biography,
		BirthDate: input.Body.BirthDate,
		DeathDate: input.Body.DeathDate,
		Country:   input.Body.Country,
	})
	if err != nil {
		return nil, err
	}
	return &AuthorOutput{Body: author}, nil
}

func (s *Server) handleGetAuthor(ctx context.Context, input *GetAuthorInput) (*AuthorOutput, error) {
	author, err := s.services.Authors.GetAuthor(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &AuthorOutput{Body: author}, nil
}

func (s *Server) handleUpdateAuthor(ctx context.Context, input *UpdateAuthorInput) (*AuthorOutput, error) {
	author, err := s.services.Authors.UpdateAuthor(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return &AuthorOutput{Body: author}, nil
}
