package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Field selects which text field a query matches against.
type Field string

const (
	FieldAny    Field = "any"
	FieldName   Field = "name"
	FieldAuthor Field = "author"
)

// ParseField resolves a field name; empty means FieldAny.
func ParseField(s string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FieldAny, nil
	case FieldAny, FieldName, FieldAuthor:
		return f, nil
	default:
		return "", fmt.Errorf("unknown search field %q", s)
	}
}

// SearchParams configures a catalog search.
type SearchParams struct {
	Query    string
	Field    Field  // Empty means FieldAny
	Category string // Exact category filter, empty for all

	Limit  int
	Offset int
}

const defaultLimit = 20

// Hit is one matching item.
type Hit struct {
	ISBN     string  `json:"isbn"`
	Score    float64 `json:"score"`
	Name     string  `json:"name"`
	Author   string  `json:"author"`
	Category string  `json:"category"`
}

// Result is the outcome of a search.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Search runs a catalog query. An empty query with no filter matches every item.
func (s *Index) Search(ctx context.Context, params SearchParams) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), limit, params.Offset, false)
	req.Fields = []string{fieldISBN, fieldName, fieldAuthor, fieldCategory}
	if params.Query == "" {
		req.SortBy([]string{fieldName})
	} else {
		req.SortBy([]string{"-_score", fieldName})
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{ISBN: h.ID, Score: h.Score}
		if v, ok := h.Fields[fieldName].(string); ok {
			hit.Name = v
		}
		if v, ok := h.Fields[fieldAuthor].(string); ok {
			hit.Author = v
		}
		if v, ok := h.Fields[fieldCategory].(string); ok {
			hit.Category = v
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// buildQuery combines the text match with the category filter.
func buildQuery(params SearchParams) query.Query {
	var clauses []query.Query

	if params.Query != "" {
		var fields []string
		switch params.Field {
		case FieldName:
			fields = []string{fieldName}
		case FieldAuthor:
			fields = []string{fieldAuthor}
		default:
			fields = []string{fieldName, fieldAuthor}
		}

		var text []query.Query
		for _, f := range fields {
			boost := 1.0
			if f == fieldName {
				boost = 2.0
			}

			match := bleve.NewMatchQuery(params.Query)
			match.SetField(f)
			match.SetBoost(boost)
			text = append(text, match)

			fuzzy := bleve.NewFuzzyQuery(strings.ToLower(params.Query))
			fuzzy.SetField(f)
			fuzzy.SetFuzziness(1)
			fuzzy.SetBoost(boost * 0.4)
			text = append(text, fuzzy)

			// Prefix match for partial words, at least two characters.
			if len(params.Query) >= 2 {
				prefix := bleve.NewPrefixQuery(strings.ToLower(params.Query))
				prefix.SetField(f)
				prefix.SetBoost(boost * 0.25)
				text = append(text, prefix)
			}
		}
		clauses = append(clauses, bleve.NewDisjunctionQuery(text...))
	}

	if params.Category != "" {
		cq := bleve.NewTermQuery(params.Category)
		cq.SetField(fieldCategory)
		clauses = append(clauses, cq)
	}

	switch len(clauses) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return clauses[0]
	default:
		return bleve.NewConjunctionQuery(clauses...)
	}
}
