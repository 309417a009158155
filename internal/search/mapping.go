package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for book documents.
//
// Titles and descriptions use English stemming, names use the simple analyzer
// so "Le Guin" is not stemmed, and ids and codes are exact keywords.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()

	text := func(analyzer string, store bool) *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzer
		fm.Store = store
		fm.IncludeTermVectors = store
		return fm
	}

	doc.AddFieldMappingsAt("title", text(en.AnalyzerName, true))
	doc.AddFieldMappingsAt("description", text(en.AnalyzerName, false))
	doc.AddFieldMappingsAt("author", text(simple.Name, true))
	doc.AddFieldMappingsAt("categories", text(simple.Name, false))

	for _, field := range []string{"id", "type", "category_ids", "isbn", "language"} {
		doc.AddFieldMappingsAt(field, text(keyword.Name, false))
	}

	for _, field := range []string{"publish_year", "created_at"} {
		nm := bleve.NewNumericFieldMapping()
		nm.Store = true
		doc.AddFieldMappingsAt(field, nm)
	}

	indexMapping.AddDocumentMapping("_default", doc)
	return indexMapping
}
