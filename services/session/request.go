package session

import (
	"time"

	"github.com/meghashyamc/churnsearch/domain"
	"github.com/meghashyamc/churnsearch/services/search"
)

// AverageChargesAggregation is the aggregate reported after every search.
const AverageChargesAggregation = "avg_call_charges"

// BuildRequest turns a query into the request sent to the search strategy.
func BuildRequest(index string, query Query, options Options) *search.Request {
	must := []any{}
	if query.QueryString != "" {
		must = append(must, map[string]any{"query_string": map[string]any{"query": query.QueryString}})
	} else {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}

	filter := []any{}
	for _, f := range query.Filters {
		filter = append(filter, f)
	}
	if options.TimeField != "" && query.TimeRange != nil {
		bounds := map[string]any{}
		if !query.TimeRange.From.IsZero() {
			bounds["gte"] = query.TimeRange.From.UTC().Format(time.RFC3339)
		}
		if !query.TimeRange.To.IsZero() {
			bounds["lte"] = query.TimeRange.To.UTC().Format(time.RFC3339)
		}
		if len(bounds) > 0 {
			filter = append(filter, map[string]any{"range": map[string]any{options.TimeField: bounds}})
		}
	}

	return &search.Request{
		Params: search.Params{
			Index:   index,
			Size:    options.Size,
			Version: true,
			Body: search.Body{
				Query: map[string]any{"bool": map[string]any{"must": must, "filter": filter}},
				Aggs: map[string]search.Aggregation{
					AverageChargesAggregation: {Avg: &search.FieldAggregation{Field: string(domain.ColumnCallCharges)}},
				},
			},
		},
	}
}
