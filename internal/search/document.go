// Package search provides full-text book search using Bleve.
//
// The index is a secondary copy of the catalog: documents are written after
// the book itself, hits carry ids only, and callers load the live records.
package search

import (
	"strconv"
	"time"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// BookDocument is the indexed form of a book. Author and category names are
// denormalized so one query matches across them.
type BookDocument struct {
	ID          string
	Title       string
	Description string
	Author      string
	Categories  []string // display names
	CategoryIDs []string
	ISBN        string
	Language    string
	PublishYear int
	CreatedAt   time.Time
}

// NewBookDocument builds the document for a book from its embedded snapshots.
func NewBookDocument(b *domain.Book) *BookDocument {
	doc := &BookDocument{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		CategoryIDs: domain.DedupeIDs(b.CategoryIDs),
		ISBN:        b.ISBN,
		Language:    b.Language,
		PublishYear: publishYear(b.PublicationDate),
		CreatedAt:   b.CreatedAt,
	}
	if b.Author.Complete() {
		doc.Author = b.Author.Name
	}
	for _, c := range b.Categories {
		if c.Complete() {
			doc.Categories = append(doc.Categories, c.Name)
		}
	}
	return doc
}

func publishYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// toMap converts the document to the field names of the index mapping.
func (d *BookDocument) toMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"type":       "book",
		"title":      d.Title,
		"created_at": float64(d.CreatedAt.UnixMilli()),
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if len(d.Categories) > 0 {
		m["categories"] = d.Categories
	}
	if len(d.CategoryIDs) > 0 {
		m["category_ids"] = d.CategoryIDs
	}
	if d.ISBN != "" {
		m["isbn"] = d.ISBN
	}
	if d.Language != "" {
		m["language"] = d.Language
	}
	if d.PublishYear > 0 {
		m["publish_year"] = float64(d.PublishYear)
	}
	return m
}
