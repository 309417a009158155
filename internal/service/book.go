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
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/search"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/validation"
)

// BookIndex is the search index the book service feeds.
type BookIndex interface {
	IndexBook(doc *search.BookDocument) error
	IndexBooks(docs []*search.BookDocument) error
	Search(ctx context.Context, p search.Params) (*search.Result, error)
	Rebuild() error
}

// BookService creates, updates and reads books.
type BookService struct {
	catalog   store.Catalog
	engine    *consistency.Engine
	resolver  *dto.Resolver
	validator *validation.Validator
	index     BookIndex // nil when search is disabled
	logger    *slog.Logger
}

// NewBookService creates a book service. index may be nil.
func NewBookService(
	catalog store.Catalog,
	engine *consistency.Engine,
	resolver *dto.Resolver,
	validator *validation.Validator,
	index BookIndex,
	logger *slog.Logger,
) *BookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookService{
		catalog:   catalog,
		engine:    engine,
		resolver:  resolver,
		validator: validator,
		index:     index,
		logger:    logger,
	}
}

// CreateBookRequest contains the fields of a new book.
type CreateBookRequest struct {
	Title           string   `json:"title" validate:"required,max=255"`
	ISBN            string   `json:"isbn" validate:"omitempty,isbn"`
	PublicationDate string   `json:"publication_date" validate:"omitempty,isodate"`
	Description     string   `json:"description" validate:"max=10000"`
	PageCount       int      `json:"page_count" validate:"gte=0,lte=100000"`
	Language        string   `json:"language" validate:"omitempty,language"`
	AuthorID        string   `json:"author_id" validate:"required"`
	CategoryIDs     []string `json:"category_ids" validate:"max=20,dive,required"`
}

// UpdateBookRequest is a partial book update. Nil fields are left unchanged.
type UpdateBookRequest struct {
	Title           *string   `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	ISBN            *string   `json:"isbn,omitempty" validate:"omitempty,isbn"`
	PublicationDate *string   `json:"publication_date,omitempty" validate:"omitempty,isodate"`
	Description     *string   `json:"description,omitempty" validate:"omitempty,max=10000"`
	PageCount       *int      `json:"page_count,omitempty" validate:"omitempty,gte=0,lte=100000"`
	Language        *string   `json:"language,omitempty" validate:"omitempty,language"`
	AuthorID        *string   `json:"author_id,omitempty" validate:"omitempty,min=1"`
	CategoryIDs     *[]string `json:"category_ids,omitempty" validate:"omitempty,max=20,dive,required"`
}

func (r *UpdateBookRequest) empty() bool {
	return r.Title == nil && r.ISBN == nil && r.PublicationDate == nil && r.Description == nil &&
		r.PageCount == nil && r.Language == nil && r.AuthorID == nil && r.CategoryIDs == nil
}

// BookResult is a written book and the secondary writes that did not complete.
type BookResult struct {
	Book     *dto.BookView         `json:"book"`
	Warnings []consistency.Warning `json:"warnings,omitempty"`
}

// ListBooksParams filters and pages a book listing.
type ListBooksParams struct {
	AuthorID   string
	CategoryID string
	store.PageParams
}

// SearchBooksParams is a full-text book query.
type SearchBooksParams struct {
	Query      string
	CategoryID string
	Language   string
	MinYear    int
	MaxYear    int
	store.PageParams
}

// CreateBook validates references, stores the book with its author and
// category snapshots, then credits the referenced counters and indexes it.
func (s *BookService) CreateBook(ctx context.Context, req CreateBookRequest) (*BookResult, error) {
	out := s.engine.Begin()

	req.Title = normalize.Name(req.Title)
	req.ISBN = normalize.ISBN(req.ISBN)
	req.Description = normalize.Description(req.Description)
	req.CategoryIDs = domain.DedupeIDs(req.CategoryIDs)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.engine.References.Validate(ctx,
		consistency.Ref("author_id", domain.KindAuthor, req.AuthorID),
		consistency.Ref("category_ids", domain.KindCategory, req.CategoryIDs...),
	); err != nil {
		return nil, err
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, storeError(err, domain.KindBook, "")
	}
	book := &domain.Book{
		Record:          domain.Record{ID: bookID},
		Title:           req.Title,
		ISBN:            req.ISBN,
		PublicationDate: req.PublicationDate,
		Description:     req.Description,
		PageCount:       req.PageCount,
		Language:        normalize.LanguageCode(req.Language),
		AuthorID:        req.AuthorID,
		CategoryIDs:     req.CategoryIDs,
	}
	book.InitTimestamps()
	s.engine.Snapshots.EmbedAuthor(ctx, book, out)
	s.engine.Snapshots.EmbedCategories(ctx, book, out)

	out.Advance(consistency.StageWritingPrimary)
	if err := s.catalog.Books().Create(ctx, book); err != nil {
		return nil, storeError(err, domain.KindBook, book.ID)
	}

	pctx, cancel := s.engine.Propagate(ctx, out)
	defer cancel()
	s.engine.Counters.BookCreated(pctx, book, out)
	s.indexBook(pctx, book, out)

	warnings := finish(ctx, s.logger, out, "book created", domain.KindBook, book.ID)
	return &BookResult{Book: s.resolver.ResolveBook(ctx, book), Warnings: warnings}, nil
}

// UpdateBook applies a partial update. Counter changes are derived from the
// before and after states of the committed write, so repeating a request
// moves no counter twice.
func (s *BookService) UpdateBook(ctx context.Context, bookID string, req UpdateBookRequest) (*BookResult, error) {
	out := s.engine.Begin()

	if req.empty() {
		return nil, errNoFields
	}
	if req.Title != nil {
		*req.Title = normalize.Name(*req.Title)
	}
	if req.ISBN != nil {
		*req.ISBN = normalize.ISBN(*req.ISBN)
	}
	if req.Description != nil {
		*req.Description = normalize.Description(*req.Description)
	}
	if req.CategoryIDs != nil {
		ids := domain.DedupeIDs(*req.CategoryIDs)
		req.CategoryIDs = &ids
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.catalog.Books().Get(ctx, bookID); err != nil {
		return nil, storeError(err, domain.KindBook, bookID)
	}

	var refs []consistency.Reference
	if req.AuthorID != nil {
		refs = append(refs, consistency.Ref("author_id", domain.KindAuthor, *req.AuthorID))
	}
	if req.CategoryIDs != nil {
		refs = append(refs, consistency.Ref("category_ids", domain.KindCategory, *req.CategoryIDs...))
	}
	if err := s.engine.References.Validate(ctx, refs...); err != nil {
		return nil, err
	}

	// Snapshots for changed references are built before the write so the
	// record is stored once.
	staged := &domain.Book{}
	if req.AuthorID != nil {
		staged.AuthorID = *req.AuthorID
		s.engine.Snapshots.EmbedAuthor(ctx, staged, out)
	}
	if req.CategoryIDs != nil {
		staged.CategoryIDs = *req.CategoryIDs
		s.engine.Snapshots.EmbedCategories(ctx, staged, out)
	}

	out.Advance(consistency.StageWritingPrimary)
	change, err := s.catalog.Books().Update(ctx, bookID, func(b *domain.Book) error {
		if req.Title != nil {
			b.Title = *req.Title
		}
		if req.ISBN != nil {
			b.ISBN = *req.ISBN
		}
		if req.PublicationDate != nil {
			b.PublicationDate = *req.PublicationDate
		}
		if req.Description != nil {
			b.Description = *req.Description
		}
		if req.PageCount != nil {
			b.PageCount = *req.PageCount
		}
		if req.Language != nil {
			b.Language = normalize.LanguageCode(*req.Language)
		}
		if req.AuthorID != nil {
			b.AuthorID = staged.AuthorID
			b.Author = staged.Author
		}
		if req.CategoryIDs != nil {
			b.CategoryIDs = slices.Clone(staged.CategoryIDs)
			b.Categories = slices.Clone(staged.Categories)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, domain.KindBook, bookID)
	}

	pctx, cancel := s.engine.Propagate(ctx, out)
	defer cancel()
	s.engine.Counters.BookChanged(pctx, change.Before, change.After, out)
	s.indexBook(pctx, change.After, out)

	warnings := finish(ctx, s.logger, out, "book updated", domain.KindBook, bookID)
	return &BookResult{Book: s.resolver.ResolveBook(ctx, change.After), Warnings: warnings}, nil
}

// GetBook returns a book with its snapshots resolved.
func (s *BookService) GetBook(ctx context.Context, bookID string) (*dto.BookView, error) {
	book, err := s.catalog.Books().Get(ctx, bookID)
	if err != nil {
		return nil, storeError(err, domain.KindBook, bookID)
	}
	return s.resolver.ResolveBook(ctx, book), nil
}

// ListBooks returns a page of books, newest first, optionally restricted to
// one author or one category.
func (s *BookService) ListBooks(ctx context.Context, params ListBooksParams) (*store.Page[*dto.BookView], error) {
	var (
		books []*domain.Book
		err   error
	)
	switch {
	case params.AuthorID != "":
		books, err = s.catalog.Books().FindBy(ctx, store.FieldAuthorID, params.AuthorID)
		if err == nil && params.CategoryID != "" {
			books = slices.DeleteFunc(books, func(b *domain.Book) bool { return !b.HasCategory(params.CategoryID) })
		}
	case params.CategoryID != "":
		books, err = s.catalog.Books().FindByMember(ctx, store.FieldCategoryIDs, params.CategoryID)
	default:
		books, err = collect(s.catalog.Books().List(ctx))
	}
	if err != nil {
		return nil, storeError(err, domain.KindBook, "")
	}

	slices.SortStableFunc(books, func(a, b *domain.Book) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	page := store.Paginate(books, params.PageParams)
	return &store.Page[*dto.BookView]{
		Items:  s.resolver.ResolveBooks(ctx, page.Items),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}, nil
}

// SearchBooks runs a full-text query. Hits are loaded from the catalog so the
// views reflect live data; ids the index still holds but the catalog does not
// are dropped. Without an index, titles and author names are scanned instead.
func (s *BookService) SearchBooks(ctx context.Context, params SearchBooksParams) (*store.Page[*dto.BookView], error) {
	params.Normalize()
	if s.index == nil {
		return s.scanBooks(ctx, params)
	}

	res, err := s.index.Search(ctx, search.Params{
		Query:      params.Query,
		CategoryID: params.CategoryID,
		Language:   normalize.LanguageCode(params.Language),
		MinYear:    params.MinYear,
		MaxYear:    params.MaxYear,
		Limit:      params.Limit,
		Offset:     params.Offset,
	})
	if err != nil {
		return nil, storeError(err, domain.KindBook, "")
	}

	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	found, err := s.catalog.Books().GetMany(ctx, ids)
	if err != nil {
		return nil, storeError(err, domain.KindBook, "")
	}

	books := make([]*domain.Book, 0, len(ids))
	for _, bookID := range ids {
		if b, ok := found[bookID]; ok {
			books = append(books, b)
		} else {
			s.logger.DebugContext(ctx, "search hit not in catalog", "book_id", bookID)
		}
	}
	return &store.Page[*dto.BookView]{
		Items:  s.resolver.ResolveBooks(ctx, books),
		Total:  int(res.Total),
		Limit:  params.Limit,
		Offset: params.Offset,
	}, nil
}

func (s *BookService) scanBooks(ctx context.Context, params SearchBooksParams) (*store.Page[*dto.BookView], error) {
	books, err := collect(s.catalog.Books().List(ctx))
	if err != nil {
		return nil, storeError(err, domain.KindBook, "")
	}

	query := normalize.Key(params.Query)
	language := normalize.LanguageCode(params.Language)
	books = slices.DeleteFunc(books, func(b *domain.Book) bool {
		if params.CategoryID != "" && !b.HasCategory(params.CategoryID) {
			return true
		}
		if language != "" && b.Language != language {
			return true
		}
		if query == "" {
			return false
		}
		if strings.Contains(normalize.Key(b.Title), query) {
			return false
		}
		return b.Author == nil || !strings.Contains(normalize.Key(b.Author.Name), query)
	})
	slices.SortStableFunc(books, func(a, b *domain.Book) int { return cmp.Compare(a.Title, b.Title) })

	page := store.Paginate(books, params.PageParams)
	return &store.Page[*dto.BookView]{
		Items:  s.resolver.ResolveBooks(ctx, page.Items),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}, nil
}

// Reindex drops the search index and rebuilds it from every stored book.
func (s *BookService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	books, err := collect(s.catalog.Books().List(ctx))
	if err != nil {
		return 0, storeError(err, domain.KindBook, "")
	}
	if err := s.index.Rebuild(); err != nil {
		return 0, err
	}

	docs := make([]*search.BookDocument, len(books))
	for i, b := range books {
		docs[i] = search.NewBookDocument(b)
	}
	if err := s.index.IndexBooks(docs); err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "search index rebuilt", "books", len(docs))
	return len(docs), nil
}

func (s *BookService) indexBook(ctx context.Context, book *domain.Book, out *consistency.Outcome) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexBook(search.NewBookDocument(book)); err != nil {
		out.Warn(ctx, consistency.StepSearch, domain.KindBook, book.ID, err)
	}
}
