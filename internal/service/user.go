package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/dto"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/validation"
)

// UserService manages user accounts. Username and email are unique ignoring case.
//
// Profile changes do not rewrite the user snapshots embedded in reviews;
// reconciliation refreshes them.
type UserService struct {
	catalog   store.Catalog
	resolver  *dto.Resolver
	validator *validation.Validator
	logger    *slog.Logger
}

// NewUserService creates a user service.
func NewUserService(catalog store.Catalog, resolver *dto.Resolver, validator *validation.Validator, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{catalog: catalog, resolver: resolver, validator: validator, logger: logger}
}

// CreateUserRequest contains the fields of a new account.
type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=1024"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

// UpdateUserRequest is a partial account update.
type UpdateUserRequest struct {
	Username  *string `json:"username,omitempty" validate:"omitempty,min=3,max=50,alphanum"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8,max=1024"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
}

func (r *UpdateUserRequest) empty() bool {
	return r.Username == nil && r.Email == nil && r.Password == nil && r.FirstName == nil && r.LastName == nil
}

// CreateUser hashes the password and stores the account.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	req.Username = normalize.Name(req.Username)
	req.Email = normalize.Email(req.Email)
	req.FirstName = normalize.Name(req.FirstName)
	req.LastName = normalize.Name(req.LastName)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to hash password")
	}
	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, storeError(err, domain.KindUser, "")
	}

	user := &domain.User{
		Record:        domain.Record{ID: userID},
		Username:      req.Username,
		Email:         req.Email,
		PasswordHash:  hash,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		RecentReviews: []domain.RecentReview{},
	}
	user.InitTimestamps()
	if err := s.catalog.Users().Create(ctx, user); err != nil {
		return nil, storeError(err, domain.KindUser, user.ID)
	}

	s.logger.InfoContext(ctx, "user created", "id", user.ID, "username", user.Username)
	return user, nil
}

// UpdateUser applies a partial update to callerID's own account.
func (s *UserService) UpdateUser(ctx context.Context, userID, callerID string, req UpdateUserRequest) (*dto.UserView, error) {
	if userID != callerID {
		return nil, domainerrors.Forbidden("You can only update your own account")
	}
	if req.empty() {
		return nil, errNoFields
	}
	if req.Username != nil {
		*req.Username = normalize.Name(*req.Username)
	}
	if req.Email != nil {
		*req.Email = normalize.Email(*req.Email)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var hash string
	if req.Password != nil {
		var err error
		if hash, err = auth.HashPassword(*req.Password); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to hash password")
		}
	}

	change, err := s.catalog.Users().Update(ctx, userID, func(u *domain.User) error {
		if req.Username != nil {
			u.Username = *req.Username
		}
		if req.Email != nil {
			u.Email = *req.Email
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		if req.FirstName != nil {
			u.FirstName = normalize.Name(*req.FirstName)
		}
		if req.LastName != nil {
			u.LastName = normalize.Name(*req.LastName)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, domain.KindUser, userID)
	}

	s.logger.InfoContext(ctx, "user updated", "id", userID)
	return s.resolver.ResolveUser(ctx, change.After), nil
}

// GetUser returns a user with their recent reviews resolved.
func (s *UserService) GetUser(ctx context.Context, userID string) (*dto.UserView, error) {
	user, err := s.catalog.Users().Get(ctx, userID)
	if err != nil {
		return nil, storeError(err, domain.KindUser, userID)
	}
	return s.resolver.ResolveUser(ctx, user), nil
}

// ListUsers returns a page of users ordered by username.
func (s *UserService) ListUsers(ctx context.Context, page store.PageParams) (*store.Page[*dto.UserView], error) {
	users, err := collect(s.catalog.Users().List(ctx))
	if err != nil {
		return nil, storeError(err, domain.KindUser, "")
	}
	slices.SortStableFunc(users, func(a, b *domain.User) int {
		return cmp.Compare(normalize.Key(a.Username), normalize.Key(b.Username))
	})

	p := store.Paginate(users, page)
	views := make([]*dto.UserView, len(p.Items))
	for i, u := range p.Items {
		views[i] = dto.NewUserView(u)
	}
	return &store.Page[*dto.UserView]{Items: views, Total: p.Total, Limit: p.Limit, Offset: p.Offset}, nil
}

// findByLogin looks a user up by email when login contains an @, else by username.
func (s *UserService) findByLogin(ctx context.Context, login string) (*domain.User, error) {
	field := store.FieldUsername
	if strings.ContainsRune(login, '@') {
		field = store.FieldEmail
	}
	users, err := s.catalog.Users().FindBy(ctx, field, login)
	if err != nil {
		return nil, fmt.Errorf("find user by %s: %w", field, err)
	}
	if len(users) == 0 {
		return nil, store.ErrNotFound
	}
	return users[0], nil
}
