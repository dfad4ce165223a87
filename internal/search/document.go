// Package search provides full-text catalog search using Bleve.
// Items are indexed by name and author with English stemming, and filtered
// by category with exact keyword matching.
package search

import (
	"github.com/campuslib/campuslib/internal/domain"
)

// Field names used by the index mapping.
const (
	fieldISBN     = "isbn"
	fieldName     = "name"
	fieldAuthor   = "author"
	fieldCategory = "category"
)

// ItemDocument is what the index stores for one catalog item. Quantity is
// deliberately absent: it changes on every borrow and is read from the store.
type ItemDocument struct {
	ISBN     string `json:"isbn"`
	Name     string `json:"name"`
	Author   string `json:"author"`
	Category string `json:"category"`
}

// ToMap converts the document to a map keyed by the mapped field names.
func (d *ItemDocument) ToMap() map[string]any {
	return map[string]any{
		fieldISBN:     d.ISBN,
		fieldName:     d.Name,
		fieldAuthor:   d.Author,
		fieldCategory: d.Category,
	}
}

// ItemToDocument converts a catalog item to its index document.
func ItemToDocument(item *domain.Item) *ItemDocument {
	return &ItemDocument{
		ISBN:     item.ISBN,
		Name:     item.Name,
		Author:   item.Author,
		Category: string(item.Category),
	}
}
