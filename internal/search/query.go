package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultLimit is the page size when Params.Limit is unset.
const DefaultLimit = 20

// Params configures a book search.
type Params struct {
	Query      string
	CategoryID string // only books in this category
	Language   string // ISO 639-1 code
	MinYear    int
	MaxYear    int
	Limit      int
	Offset     int
}

// Result is one page of matching book ids, best match first.
type Result struct {
	Total uint64
	Hits  []Hit
}

// Hit is one matching book.
type Hit struct {
	ID         string
	Score      float64
	Highlights map[string]string
}

// Search runs a query against the index.
func (s *Index) Search(ctx context.Context, p Params) (*Result, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(p), p.Limit, max(p.Offset, 0), false)
	if p.Query != "" {
		req.SortBy([]string{"-_score", "title"})
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
		req.Highlight.AddField("author")
	} else {
		req.SortBy([]string{"-created_at"})
	}

	s.mu.RLock()
	res, err := s.index.SearchInContext(ctx, req)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		for field, fragments := range h.Fragments {
			if len(fragments) == 0 {
				continue
			}
			if hit.Highlights == nil {
				hit.Highlights = make(map[string]string)
			}
			hit.Highlights[field] = fragments[0]
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// buildQuery matches the text against title (boosted), author, categories and
// description, with a fuzzy title match for typos, and ANDs the filters.
func buildQuery(p Params) query.Query {
	var must []query.Query

	if text := strings.TrimSpace(p.Query); text != "" {
		match := func(field string, boost float64) query.Query {
			q := bleve.NewMatchQuery(text)
			q.SetField(field)
			q.SetBoost(boost)
			return q
		}
		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(text))
		fuzzy.SetField("title")
		fuzzy.SetFuzziness(1)
		fuzzy.SetBoost(0.5)

		must = append(must, bleve.NewDisjunctionQuery(
			match("title", 3),
			match("author", 2),
			match("categories", 1),
			match("description", 0.5),
			fuzzy,
		))
	}

	term := func(field, value string) query.Query {
		q := bleve.NewTermQuery(value)
		q.SetField(field)
		return q
	}
	if p.CategoryID != "" {
		must = append(must, term("category_ids", p.CategoryID))
	}
	if p.Language != "" {
		must = append(must, term("language", p.Language))
	}

	if p.MinYear > 0 || p.MaxYear > 0 {
		var lo, hi *float64
		if p.MinYear > 0 {
			v := float64(p.MinYear)
			lo = &v
		}
		if p.MaxYear > 0 {
			v := float64(p.MaxYear)
			hi = &v
		}
		inclusive := true
		q := bleve.NewNumericRangeInclusiveQuery(lo, hi, &inclusive, &inclusive)
		q.SetField("publish_year")
		must = append(must, q)
	}

	switch len(must) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return must[0]
	default:
		return bleve.NewConjunctionQuery(must...)
	}
}
