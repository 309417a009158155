package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/catalog-server/internal/dto"
	"github.com/listenupapp/catalog-server/internal/service"
)

func (s *Server) registerReviewRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listReviews",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{bookId}/reviews",
		Summary:     "List reviews",
		Description: "Returns the reviews of a book, newest first",
		Tags:        []string{"Reviews"},
	}, s.handleListReviews)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createReview",
		Method:        http.MethodPost,
		Path:          "/api/v1/books/{bookId}/reviews",
		Summary:       "Create review",
		Description:   "Reviews a book as the authenticated user. Each user reviews a book once.",
		Tags:          []string{"Reviews"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateReview)

	huma.Register(s.api, huma.Operation{
		OperationID: "getReview",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{bookId}/reviews/{reviewId}",
		Summary:     "Get review",
		Tags:        []string{"Reviews"},
	}, s.handleGetReview)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateReview",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{bookId}/reviews/{reviewId}",
		Summary:     "Update review",
		Description: "Updates your own review. A new rating recomputes the book average.",
		Tags:        []string{"Reviews"},
		Security:    bearer,
	}, s.handleUpdateReview)
}

// === DTOs ===

// CreateReviewRequest is the request body for creating a review.
type CreateReviewRequest struct {
	Rating  float64 `json:"rating" minimum:"0" maximum:"5" doc:"Rating from 0 to 5"`
	Title   string  `json:"title" doc:"Review headline"`
	Content string  `json:"content,omitempty" doc:"Review text"`
}

// CreateReviewInput wraps the create review request for Huma.
type CreateReviewInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookId" doc:"Book ID"`
	Body          CreateReviewRequest
}

// WrittenReviewOutput wraps a written review and its warnings for Huma.
type WrittenReviewOutput struct {
	Body Written[*dto.ReviewView]
}

// ReviewOutput wraps a review view for Huma.
type ReviewOutput struct {
	Body *dto.ReviewView
}

// GetReviewInput contains parameters for getting a review.
type GetReviewInput struct {
	BookID   string `path:"bookId" doc:"Book ID"`
	ReviewID string `path:"reviewId" doc:"Review ID"`
}

// UpdateReviewInput wraps the update review request for Huma.
type UpdateReviewInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookId" doc:"Book ID"`
	ReviewID      string `path:"reviewId" doc:"Review ID"`
	Body          service.UpdateReviewRequest
}

// ListReviewsInput contains parameters for listing reviews.
type ListReviewsInput struct {
	BookID string `path:"bookId" doc:"Book ID"`
	PageInput
}

// === Handlers ===

func (s *Server) handleListReviews(ctx context.Context, input *ListReviewsInput) (*PageOutput[*dto.ReviewView], error) {
	page, err := s.services.Reviews.ListReviews(ctx, input.BookID, input.params())
	if err != nil {
		return nil, err
	}
	return &PageOutput[*dto.ReviewView]{Body: page}, nil
}

func (s *Server) handleCreateReview(ctx context.Context, input *CreateReviewInput) (*WrittenReviewOutput, error) {
	userID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Reviews.CreateReview(ctx, input.BookID, userID, service.CreateReviewRequest{
		Rating:  input.Body.Rating,
		Title:   input.Body.Title,
		Content: input.Body.Content,
	})
	if err != nil {
		return nil, err
	}
	return writtenReview(res), nil
}

func (s *Server) handleGetReview(ctx context.Context, input *GetReviewInput) (*ReviewOutput, error) {
	review, err := s.services.Reviews.GetReview(ctx, input.BookID, input.ReviewID)
	if err != nil {
		return nil, err
	}
	return &ReviewOutput{Body: review}, nil
}

func (s *Server) handleUpdateReview(ctx context.Context, input *UpdateReviewInput) (*WrittenReviewOutput, error) {
	userID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Reviews.UpdateReview(ctx, input.BookID, input.ReviewID, userID, input.Body)
	if err != nil {
		return nil, err
	}
	return writtenReview(res), nil
}

func writtenReview(res *service.ReviewResult) *WrittenReviewOutput {
	return &WrittenReviewOutput{Body: Written[*dto.ReviewView]{Data: res.Review, Warnings: res.Warnings}}
}
