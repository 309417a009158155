package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/dto"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/validation"
)

// CategoryService manages categories. Names are unique ignoring case.
type CategoryService struct {
	catalog   store.Catalog
	resolver  *dto.Resolver
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCategoryService creates a category service.
func NewCategoryService(catalog store.Catalog, resolver *dto.Resolver, validator *validation.Validator, logger *slog.Logger) *CategoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryService{catalog: catalog, resolver: resolver, validator: validator, logger: logger}
}

// CreateCategoryRequest contains the fields of a new category.
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// UpdateCategoryRequest is a partial category update.
type UpdateCategoryRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

// CreateCategory stores a new category.
func (s *CategoryService) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*dto.CategoryView, error) {
	req.Name = normalize.Name(req.Name)
	req.Description = normalize.Description(req.Description)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	categoryID, err := id.Generate(id.PrefixCategory)
	if err != nil {
		return nil, storeError(err, domain.KindCategory, "")
	}
	category := &domain.Category{
		Record:      domain.Record{ID: categoryID},
		Name:        req.Name,
		Description: req.Description,
	}
	category.InitTimestamps()
	if err := s.catalog.Categories().Create(ctx, category); err != nil {
		return nil, storeError(err, domain.KindCategory, category.ID)
	}

	s.logger.InfoContext(ctx, "category created", "id", category.ID, "name", category.Name)
	return dto.NewCategoryView(category), nil
}

// UpdateCategory applies a partial update. A rename that collides with
// another category fails with DUPLICATE.
func (s *CategoryService) UpdateCategory(ctx context.Context, categoryID string, req UpdateCategoryRequest) (*dto.CategoryView, error) {
	if req.Name == nil && req.Description == nil {
		return nil, errNoFields
	}
	if req.Name != nil {
		*req.Name = normalize.Name(*req.Name)
	}
	if req.Description != nil {
		*req.Description = normalize.Description(*req.Description)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	change, err := s.catalog.Categories().Update(ctx, categoryID, func(c *domain.Category) error {
		if req.Name != nil {
			c.Name = *req.Name
		}
		if req.Description != nil {
			c.Description = *req.Description
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, domain.KindCategory, categoryID)
	}

	s.logger.InfoContext(ctx, "category updated", "id", categoryID)
	return dto.NewCategoryView(change.After), nil
}

// GetCategory returns a category with its best rated books.
func (s *CategoryService) GetCategory(ctx context.Context, categoryID string) (*dto.CategoryView, error) {
	category, err := s.catalog.Categories().Get(ctx, categoryID)
	if err != nil {
		return nil, storeError(err, domain.KindCategory, categoryID)
	}
	return s.resolver.ResolveCategory(ctx, category), nil
}

// ListCategories returns a page of categories ordered by name.
func (s *CategoryService) ListCategories(ctx context.Context, page store.PageParams) (*store.Page[*dto.CategoryView], error) {
	categories, err := collect(s.catalog.Categories().List(ctx))
	if err != nil {
		return nil, storeError(err, domain.KindCategory, "")
	}
	slices.SortStableFunc(categories, func(a, b *domain.Category) int {
		return cmp.Compare(normalize.Key(a.Name), normalize.Key(b.Name))
	})

	p := store.Paginate(categories, page)
	views := make([]*dto.CategoryView, len(p.Items))
	for i, c := range p.Items {
		views[i] = dto.NewCategoryView(c)
	}
	return &store.Page[*dto.CategoryView]{Items: views, Total: p.Total, Limit: p.Limit, Offset: p.Offset}, nil
}
