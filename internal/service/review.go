package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/listenupapp/catalog-server/internal/consistency"
	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/dto"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/validation"
)

// ReviewService creates, updates and reads reviews.
type ReviewService struct {
	catalog   store.Catalog
	engine    *consistency.Engine
	resolver  *dto.Resolver
	validator *validation.Validator
	logger    *slog.Logger
}

// NewReviewService creates a review service.
func NewReviewService(
	catalog store.Catalog,
	engine *consistency.Engine,
	resolver *dto.Resolver,
	validator *validation.Validator,
	logger *slog.Logger,
) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{
		catalog:   catalog,
		engine:    engine,
		resolver:  resolver,
		validator: validator,
		logger:    logger,
	}
}

// CreateReviewRequest contains the fields of a new review.
type CreateReviewRequest struct {
	Rating  float64 `json:"rating" validate:"gte=0,lte=5"`
	Title   string  `json:"title" validate:"required,max=200"`
	Content string  `json:"content" validate:"max=5000"`
}

// UpdateReviewRequest is a partial review update. Nil fields are left unchanged.
type UpdateReviewRequest struct {
	Rating  *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Title   *string  `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content *string  `json:"content,omitempty" validate:"omitempty,max=5000"`
}

func (r *UpdateReviewRequest) empty() bool {
	return r.Rating == nil && r.Title == nil && r.Content == nil
}

// ReviewResult is a written review and the secondary writes that did not complete.
type ReviewResult struct {
	Review   *dto.ReviewView       `json:"review"`
	Warnings []consistency.Warning `json:"warnings,omitempty"`
}

// CreateReview stores userID's review of bookID and then updates the user's
// review count and recent review list and the book's rating.
func (s *ReviewService) CreateReview(ctx context.Context, bookID, userID string, req CreateReviewRequest) (*ReviewResult, error) {
	out := s.engine.Begin()

	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.catalog.Books().Get(ctx, bookID)
	if err != nil {
		return nil, storeError(err, domain.KindBook, bookID)
	}
	if _, err := s.catalog.Users().Get(ctx, userID); err != nil {
		return nil, storeError(err, domain.KindUser, userID)
	}

	reviewID, err := id.Generate(id.PrefixReview)
	if err != nil {
		return nil, storeError(err, domain.KindReview, "")
	}
	review := &domain.Review{
		Record:  domain.Record{ID: reviewID},
		BookID:  bookID,
		UserID:  userID,
		Rating:  req.Rating,
		Title:   req.Title,
		Content: req.Content,
	}
	review.InitTimestamps()
	s.engine.Snapshots.EmbedUser(ctx, review, out)

	out.Advance(consistency.StageWritingPrimary)
	if err := s.catalog.Reviews().Create(ctx, review); err != nil {
		return nil, storeError(err, domain.KindReview, review.ID)
	}

	pctx, cancel := s.engine.Propagate(ctx, out)
	defer cancel()
	s.engine.Counters.ReviewCreated(pctx, review, out)
	s.engine.Ratings.ReviewAdded(pctx, review, out)
	s.engine.Snapshots.PushRecentReview(pctx, userID, review.Summary(book.Ref()), out)

	warnings := finish(ctx, s.logger, out, "review created", domain.KindReview, review.ID)
	return &ReviewResult{Review: s.resolver.ResolveReview(ctx, review), Warnings: warnings}, nil
}

// UpdateReview applies a partial update to a review owned by userID. The
// book's rating is only recomputed when the rating changed.
func (s *ReviewService) UpdateReview(ctx context.Context, bookID, reviewID, userID string, req UpdateReviewRequest) (*ReviewResult, error) {
	out := s.engine.Begin()

	if req.empty() {
		return nil, errNoFields
	}
	if req.Title != nil {
		*req.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		*req.Content = strings.TrimSpace(*req.Content)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	current, err := s.getReview(ctx, bookID, reviewID)
	if err != nil {
		return nil, err
	}
	if !current.OwnedBy(userID) {
		return nil, domainerrors.Forbidden("You can only update your own reviews")
	}

	out.Advance(consistency.StageWritingPrimary)
	change, err := s.catalog.Reviews().Update(ctx, reviewID, func(r *domain.Review) error {
		if !r.OwnedBy(userID) {
			return domainerrors.Forbidden("You can only update your own reviews")
		}
		if req.Rating != nil {
			r.Rating = *req.Rating
		}
		if req.Title != nil {
			r.Title = *req.Title
		}
		if req.Content != nil {
			r.Content = *req.Content
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, domain.KindReview, reviewID)
	}

	pctx, cancel := s.engine.Propagate(ctx, out)
	defer cancel()
	if change.Before.Rating != change.After.Rating {
		s.engine.Ratings.ReviewRatingChanged(pctx, change.Before, change.After, out)
		s.engine.Snapshots.RefreshRecentReview(pctx, userID, reviewID, change.After.Rating, out)
	}

	warnings := finish(ctx, s.logger, out, "review updated", domain.KindReview, reviewID)
	return &ReviewResult{Review: s.resolver.ResolveReview(ctx, change.After), Warnings: warnings}, nil
}

// GetReview returns a review of bookID with its user snapshot resolved.
func (s *ReviewService) GetReview(ctx context.Context, bookID, reviewID string) (*dto.ReviewView, error) {
	review, err := s.getReview(ctx, bookID, reviewID)
	if err != nil {
		return nil, err
	}
	return s.resolver.ResolveReview(ctx, review), nil
}

// ListReviews returns the reviews of a book, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, bookID string, page store.PageParams) (*store.Page[*dto.ReviewView], error) {
	if _, err := s.catalog.Books().Get(ctx, bookID); err != nil {
		return nil, storeError(err, domain.KindBook, bookID)
	}

	reviews, err := s.catalog.Reviews().FindBy(ctx, store.FieldBookID, bookID)
	if err != nil {
		return nil, storeError(err, domain.KindReview, "")
	}
	slices.SortStableFunc(reviews, func(a, b *domain.Review) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	p := store.Paginate(reviews, page)
	return &store.Page[*dto.ReviewView]{
		Items:  s.resolver.ResolveReviews(ctx, p.Items),
		Total:  p.Total,
		Limit:  p.Limit,
		Offset: p.Offset,
	}, nil
}

// getReview loads a review and checks that it belongs to bookID.
func (s *ReviewService) getReview(ctx context.Context, bookID, reviewID string) (*domain.Review, error) {
	review, err := s.catalog.Reviews().Get(ctx, reviewID)
	if err != nil {
		return nil, storeError(err, domain.KindReview, reviewID)
	}
	if review.BookID != bookID {
		return nil, domainerrors.NotFoundf("Review with ID %s not found", reviewID)
	}
	return review, nil
}
