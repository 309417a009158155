package search

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
)

func openTestIndex(t *testing.T) (*Index, string) {
	t.Helper()
	dir := t.TempDir()
	idx, err := Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx, dir
}

func book(id, title, author, language, published string, categories ...domain.CategorySnapshot) *BookDocument {
	b := &domain.Book{
		Record:          domain.Record{ID: id, CreatedAt: time.Now()},
		Title:           title,
		Language:        language,
		PublicationDate: published,
		Author:          &domain.AuthorSnapshot{ID: "author-" + id, Name: author},
		Categories:      categories,
	}
	for _, c := range categories {
		b.CategoryIDs = append(b.CategoryIDs, c.ID)
	}
	return NewBookDocument(b)
}

func TestNewBookDocument(t *testing.T) {
	doc := NewBookDocument(&domain.Book{
		Record:          domain.Record{ID: "book-1"},
		Title:           "Dune",
		PublicationDate: "1965-08-01",
		Author:          &domain.AuthorSnapshot{ID: "author-1", Name: "Frank Herbert"},
		CategoryIDs:     []string{"cat-1", "cat-2", "cat-1"},
		Categories: []domain.CategorySnapshot{
			{ID: "cat-1", Name: "Science Fiction"},
			{ID: "cat-2"},
		},
	})

	assert.Equal(t, "Frank Herbert", doc.Author)
	assert.Equal(t, []string{"Science Fiction"}, doc.Categories)
	assert.Equal(t, []string{"cat-1", "cat-2"}, doc.CategoryIDs)
	assert.Equal(t, 1965, doc.PublishYear)

	m := doc.toMap()
	assert.Equal(t, "book", m["type"])
	assert.Equal(t, float64(1965), m["publish_year"])
	assert.NotContains(t, m, "isbn")
}

func TestIndex_Search(t *testing.T) {
	idx, _ := openTestIndex(t)
	scifi := domain.CategorySnapshot{ID: "cat-sf", Name: "Science Fiction"}
	fantasy := domain.CategorySnapshot{ID: "cat-fan", Name: "Fantasy"}

	require.NoError(t, idx.IndexBooks([]*BookDocument{
		book("dune", "Dune", "Frank Herbert", "en", "1965-08-01", scifi),
		book("lhod", "The Left Hand of Darkness", "Ursula K. Le Guin", "en", "1969-03-01", scifi),
		book("earthsea", "A Wizard of Earthsea", "Ursula K. Le Guin", "en", "1968-11-01", fantasy),
		book("solaris", "Solaris", "Stanisław Lem", "pl", "1961-01-01", scifi),
	}))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)

	ctx := context.Background()
	ids := func(res *Result) []string {
		var out []string
		for _, h := range res.Hits {
			out = append(out, h.ID)
		}
		return out
	}

	t.Run("title", func(t *testing.T) {
		res, err := idx.Search(ctx, Params{Query: "wizard"})
		require.NoError(t, err)
		assert.Equal(t, []string{"earthsea"}, ids(res))
	})

	t.Run("author", func(t *testing.T) {
		res, err := idx.Search(ctx, Params{Query: "le guin"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"lhod", "earthsea"}, ids(res))
	})

	t.Run("typo", func(t *testing.T) {
		res, err := idx.Search(ctx, Params{Query: "wizzard"})
		require.NoError(t, err)
		assert.Equal(t, []string{"earthsea"}, ids(res))
	})

	t.Run("category filter", func(t *testing.T) {
		res, err := idx.Search(ctx, Params{Query: "le guin", CategoryID: "cat-fan"})
		require.NoError(t, err)
		assert.Equal(t, []string{"earthsea"}, ids(res))
	})

	t.Run("language filter", func(t *testing.T) {
		res, err := idx.Search(ctx, Params{Language: "pl"})
		require.NoError(t, err)
		assert.Equal(t, []string{"solaris"}, ids(res))
	})

	t.Run("year range", func(t *testing.T) {
		res, err := idx.Search(ctx, Params{MinYear: 1965, MaxYear: 1968})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"dune", "earthsea"}, ids(res))
	})

	t.Run("paging", func(t *testing.T) {
		res, err := idx.Search(ctx, Params{Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, uint64(4), res.Total)
		assert.Len(t, res.Hits, 3)

		res, err = idx.Search(ctx, Params{Limit: 3, Offset: 3})
		require.NoError(t, err)
		assert.Len(t, res.Hits, 1)
	})
}

func TestIndex_ReplaceAndDelete(t *testing.T) {
	idx, _ := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexBook(book("b1", "Dune", "Frank Herbert", "en", "")))
	require.NoError(t, idx.IndexBook(book("b1", "Dune Messiah", "Frank Herbert", "en", "")))

	res, err := idx.Search(ctx, Params{Query: "messiah"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)

	require.NoError(t, idx.Delete("b1"))
	require.NoError(t, idx.Delete("b1"))
	count, err := idx.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpen_RebuildsOnMappingChange(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	idx, err := Open(dir, logger)
	require.NoError(t, err)
	require.NoError(t, idx.IndexBook(book("b1", "Dune", "Frank Herbert", "en", "")))
	require.NoError(t, idx.Close())

	// Same version keeps documents.
	idx, err = Open(dir, logger)
	require.NoError(t, err)
	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	require.NoError(t, idx.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, versionFile), []byte("old"), 0o600))
	idx, err = Open(dir, logger)
	require.NoError(t, err)
	defer idx.Close()
	count, err = idx.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndex_Rebuild(t *testing.T) {
	idx, _ := openTestIndex(t)
	require.NoError(t, idx.IndexBook(book("b1", "Dune", "Frank Herbert", "en", "")))

	require.NoError(t, idx.Rebuild())
	count, err := idx.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, idx.IndexBook(book("b2", "Solaris", "Stanisław Lem", "pl", "")))
	count, err = idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
