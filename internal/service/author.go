package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/dto"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/validation"
)

// AuthorService manages authors. Renaming an author does not rewrite the
// snapshots embedded in books; reconciliation refreshes them.
type AuthorService struct {
	catalog   store.Catalog
	resolver  *dto.Resolver
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAuthorService creates an author service.
func NewAuthorService(catalog store.Catalog, resolver *dto.Resolver, validator *validation.Validator, logger *slog.Logger) *AuthorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorService{catalog: catalog, resolver: resolver, validator: validator, logger: logger}
}

// CreateAuthorRequest contains the fields of a new author.
type CreateAuthorRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	Biography string `json:"biography" validate:"max=10000"`
	BirthDate string `json:"birth_date" validate:"required,isodate"`
	DeathDate string `json:"death_date" validate:"omitempty,isodate"`
	Country   string `json:"country" validate:"max=100"`
}

// UpdateAuthorRequest is a partial author update. Nil fields are left unchanged.
type UpdateAuthorRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Biography *string `json:"biography,omitempty" validate:"omitempty,max=10000"`
	BirthDate *string `json:"birth_date,omitempty" validate:"omitempty,isodate"`
	DeathDate *string `json:"death_date,omitempty" validate:"omitempty,isodate"`
	Country   *string `json:"country,omitempty" validate:"omitempty,max=100"`
}

func (r *UpdateAuthorRequest) empty() bool {
	return r.Name == nil && r.Biography == nil && r.BirthDate == nil && r.DeathDate == nil && r.Country == nil
}

// CreateAuthor stores a new author with a zero book count.
func (s *AuthorService) CreateAuthor(ctx context.Context, req CreateAuthorRequest) (*dto.AuthorView, error) {
	req.Name = normalize.Name(req.Name)
	req.Biography = normalize.Description(req.Biography)
	req.Country = strings.TrimSpace(req.Country)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := checkLifespan(req.BirthDate, req.DeathDate); err != nil {
		return nil, err
	}

	authorID, err := id.Generate(id.PrefixAuthor)
	if err != nil {
		return nil, storeError(err, domain.KindAuthor, "")
	}
	author := &domain.Author{
		Record:    domain.Record{ID: authorID},
		Name:      req.Name,
		Biography: req.Biography,
		BirthDate: req.BirthDate,
		DeathDate: req.DeathDate,
		Country:   req.Country,
	}
	author.InitTimestamps()
	if err := s.catalog.Authors().Create(ctx, author); err != nil {
		return nil, storeError(err, domain.KindAuthor, author.ID)
	}

	s.logger.InfoContext(ctx, "author created", "id", author.ID, "name", author.Name)
	return dto.NewAuthorView(author), nil
}

// UpdateAuthor applies a partial update.
func (s *AuthorService) UpdateAuthor(ctx context.Context, authorID string, req UpdateAuthorRequest) (*dto.AuthorView, error) {
	if req.empty() {
		return nil, errNoFields
	}
	if req.Name != nil {
		*req.Name = normalize.Name(*req.Name)
	}
	if req.Biography != nil {
		*req.Biography = normalize.Description(*req.Biography)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	change, err := s.catalog.Authors().Update(ctx, authorID, func(a *domain.Author) error {
		if req.Name != nil {
			a.Name = *req.Name
		}
		if req.Biography != nil {
			a.Biography = *req.Biography
		}
		if req.BirthDate != nil {
			a.BirthDate = *req.BirthDate
		}
		if req.DeathDate != nil {
			a.DeathDate = *req.DeathDate
		}
		if req.Country != nil {
			a.Country = strings.TrimSpace(*req.Country)
		}
		return checkLifespan(a.BirthDate, a.DeathDate)
	})
	if err != nil {
		return nil, storeError(err, domain.KindAuthor, authorID)
	}

	s.logger.InfoContext(ctx, "author updated", "id", authorID)
	return dto.NewAuthorView(change.After), nil
}

// GetAuthor returns an author with all of their books.
func (s *AuthorService) GetAuthor(ctx context.Context, authorID string) (*dto.AuthorView, error) {
	author, err := s.catalog.Authors().Get(ctx, authorID)
	if err != nil {
		return nil, storeError(err, domain.KindAuthor, authorID)
	}
	return s.resolver.ResolveAuthor(ctx, author), nil
}

// ListAuthors returns a page of authors ordered by name.
func (s *AuthorService) ListAuthors(ctx context.Context, page store.PageParams) (*store.Page[*dto.AuthorView], error) {
	authors, err := collect(s.catalog.Authors().List(ctx))
	if err != nil {
		return nil, storeError(err, domain.KindAuthor, "")
	}
	slices.SortStableFunc(authors, func(a, b *domain.Author) int {
		if c := cmp.Compare(normalize.Key(a.Name), normalize.Key(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	p := store.Paginate(authors, page)
	views := make([]*dto.AuthorView, len(p.Items))
	for i, a := range p.Items {
		views[i] = dto.NewAuthorView(a)
	}
	return &store.Page[*dto.AuthorView]{Items: views, Total: p.Total, Limit: p.Limit, Offset: p.Offset}, nil
}

// checkLifespan rejects a death date before the birth date. Both are
// YYYY-MM-DD, so string order is date order.
func checkLifespan(birth, death string) error {
	if birth != "" && death != "" && death < birth {
		return domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"death_date": "death_date must not be before birth_date",
		})
	}
	return nil
}
