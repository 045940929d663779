package store

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// Filters narrows the product collection for the dashboard read path.
// Empty slices impose no constraint on their field.
type Filters struct {
	Kategori      []string
	Underkategori []string
	Land          []string
	Distrikt      []string
	Underdistrikt []string
	Volum         []float64

	// IncludeUnorderable lifts the default restriction to products that
	// are available for ordering.
	IncludeUnorderable bool
}

// Match builds the aggregation $match document for these filters.
func (f Filters) Match() bson.M {
	match := bson.M{}
	if !f.IncludeUnorderable {
		match["tilgjengelig for bestilling"] = true
	}
	for field, values := range map[string][]string{
		"kategori":      f.Kategori,
		"underkategori": f.Underkategori,
		"land":          f.Land,
		"distrikt":      f.Distrikt,
		"underdistrikt": f.Underdistrikt,
	} {
		if len(values) > 0 {
			match[field] = bson.M{"$in": values}
		}
	}
	if len(f.Volum) > 0 {
		match["volum"] = bson.M{"$in": f.Volum}
	}
	return match
}

// Query is the filter/sort/paginate read facade over the store. It only
// reads; the scrape pipeline owns all writes.
type Query struct {
	store Store
}

// NewQuery builds a read facade over the given store.
func NewQuery(store Store) *Query {
	return &Query{store: store}
}

// Load returns one page of products matching the filters, sorted on a
// single field, plus the total match count for pagination. Pages are
// 1-based.
func (q *Query) Load(ctx context.Context, f Filters, sortBy string, ascending bool, page, perPage int) ([]bson.M, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}
	if sortBy == "" {
		sortBy = "prisendring"
	}
	order := 1
	if !ascending {
		order = -1
	}

	match := f.Match()
	pipeline := []bson.M{
		{"$match": match},
		{"$sort": bson.M{sortBy: order}},
		{"$skip": (page - 1) * perPage},
		{"$limit": perPage},
	}

	docs, err := q.store.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("load page: %w", err)
	}
	total, err := q.store.Count(ctx, match)
	if err != nil {
		return nil, 0, fmt.Errorf("count matches: %w", err)
	}
	return docs, total, nil
}

// Uniques returns the distinct values of each requested field among
// products matching the filters, with null and sentinel entries dropped.
// Used to populate the dashboard's cascading dropdowns.
func (q *Query) Uniques(ctx context.Context, fields []string, f Filters) (map[string][]string, error) {
	match := f.Match()
	uniques := make(map[string][]string, len(fields))
	for _, field := range fields {
		values, err := q.store.Distinct(ctx, field, match)
		if err != nil {
			return nil, fmt.Errorf("uniques for %s: %w", field, err)
		}
		formatted := make([]string, 0, len(values))
		for _, value := range values {
			if value == nil {
				continue
			}
			text := formatValue(value)
			if text == "" || text == "-" {
				continue
			}
			formatted = append(formatted, text)
		}
		sort.Strings(formatted)
		uniques[field] = formatted
	}
	return uniques, nil
}

// Amount returns the number of products matching the filters.
func (q *Query) Amount(ctx context.Context, f Filters) (int64, error) {
	return q.store.Count(ctx, f.Match())
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case float32:
		return fmt.Sprintf("%g", v)
	case int, int32, int64:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
