package searchdb

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// BuildQuery translates the subset of the Elasticsearch query DSL used by the
// churn search into a bleve query. A nil or empty DSL matches every document.
func BuildQuery(dsl map[string]any) (query.Query, error) {
	if len(dsl) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}
	if len(dsl) > 1 {
		return nil, fmt.Errorf("%w: expected a single clause, got %d", ErrUnsupportedQuery, len(dsl))
	}

	for kind, body := range dsl {
		switch kind {
		case "match_all":
			return bleve.NewMatchAllQuery(), nil
		case "match_none":
			return bleve.NewMatchNoneQuery(), nil
		case "bool":
			return buildBool(body)
		case "query_string":
			return buildQueryString(body)
		case "match":
			return buildFieldQuery(kind, body, buildMatch)
		case "match_phrase":
			return buildFieldQuery(kind, body, func(field string, value any) (query.Query, error) {
				q := bleve.NewMatchPhraseQuery(fmt.Sprint(unwrapQueryValue(value)))
				q.SetField(field)
				return q, nil
			})
		case "term":
			return buildFieldQuery(kind, body, buildTerm)
		case "terms":
			return buildFieldQuery(kind, body, buildTerms)
		case "prefix":
			return buildFieldQuery(kind, body, func(field string, value any) (query.Query, error) {
				q := bleve.NewPrefixQuery(fmt.Sprint(unwrapQueryValue(value)))
				q.SetField(field)
				return q, nil
			})
		case "range":
			return buildFieldQuery(kind, body, buildRange)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedQuery, kind)
		}
	}

	return nil, fmt.Errorf("%w: empty clause", ErrUnsupportedQuery)
}

func buildFieldQuery(kind string, body any, build func(field string, value any) (query.Query, error)) (query.Query, error) {
	fields, ok := body.(map[string]any)
	if !ok || len(fields) != 1 {
		return nil, fmt.Errorf("%w: %s expects exactly one field", ErrUnsupportedQuery, kind)
	}
	for field, value := range fields {
		return build(field, value)
	}
	return nil, fmt.Errorf("%w: %s has no field", ErrUnsupportedQuery, kind)
}

// unwrapQueryValue accepts both {"field": value} and {"field": {"query"|"value": value}}.
func unwrapQueryValue(value any) any {
	object, ok := value.(map[string]any)
	if !ok {
		return value
	}
	if v, ok := object["query"]; ok {
		return v
	}
	if v, ok := object["value"]; ok {
		return v
	}
	return value
}

func buildMatch(field string, value any) (query.Query, error) {
	value = unwrapQueryValue(value)
	if number, ok := toFloat(value); ok {
		inclusive := true
		q := bleve.NewNumericRangeInclusiveQuery(&number, &number, &inclusive, &inclusive)
		q.SetField(field)
		return q, nil
	}
	if flag, ok := value.(bool); ok {
		q := bleve.NewBoolFieldQuery(flag)
		q.SetField(field)
		return q, nil
	}
	q := bleve.NewMatchQuery(fmt.Sprint(value))
	q.SetField(field)
	return q, nil
}

func buildTerm(field string, value any) (query.Query, error) {
	value = unwrapQueryValue(value)
	if _, ok := toFloat(value); ok {
		return buildMatch(field, value)
	}
	q := bleve.NewTermQuery(fmt.Sprint(value))
	q.SetField(field)
	return q, nil
}

func buildTerms(field string, value any) (query.Query, error) {
	values, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: terms on %s expects an array", ErrUnsupportedQuery, field)
	}
	disjuncts := make([]query.Query, 0, len(values))
	for _, v := range values {
		q, err := buildTerm(field, v)
		if err != nil {
			return nil, err
		}
		disjuncts = append(disjuncts, q)
	}
	if len(disjuncts) == 0 {
		return bleve.NewMatchNoneQuery(), nil
	}
	return bleve.NewDisjunctionQuery(disjuncts...), nil
}

func buildRange(field string, value any) (query.Query, error) {
	bounds, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: range on %s expects an object", ErrUnsupportedQuery, field)
	}

	var lower, upper any
	lowerInclusive, upperInclusive := true, true
	for op, bound := range bounds {
		switch op {
		case "gte":
			lower, lowerInclusive = bound, true
		case "gt":
			lower, lowerInclusive = bound, false
		case "lte":
			upper, upperInclusive = bound, true
		case "lt":
			upper, upperInclusive = bound, false
		case "format", "time_zone":
		default:
			return nil, fmt.Errorf("%w: range operator %s", ErrUnsupportedQuery, op)
		}
	}
	if lower == nil && upper == nil {
		return nil, fmt.Errorf("%w: range on %s has no bounds", ErrUnsupportedQuery, field)
	}

	if q, ok := numericRange(lower, upper, lowerInclusive, upperInclusive); ok {
		q.SetField(field)
		return q, nil
	}
	if q, ok := dateRange(lower, upper, lowerInclusive, upperInclusive); ok {
		q.SetField(field)
		return q, nil
	}

	var min, max string
	if lower != nil {
		min = fmt.Sprint(lower)
	}
	if upper != nil {
		max = fmt.Sprint(upper)
	}
	q := bleve.NewTermRangeInclusiveQuery(min, max, &lowerInclusive, &upperInclusive)
	q.SetField(field)
	return q, nil
}

func numericRange(lower, upper any, lowerInclusive, upperInclusive bool) (*query.NumericRangeQuery, bool) {
	var min, max *float64
	if lower != nil {
		v, ok := toFloat(lower)
		if !ok {
			return nil, false
		}
		min = &v
	}
	if upper != nil {
		v, ok := toFloat(upper)
		if !ok {
			return nil, false
		}
		max = &v
	}
	return bleve.NewNumericRangeInclusiveQuery(min, max, &lowerInclusive, &upperInclusive), true
}

func dateRange(lower, upper any, lowerInclusive, upperInclusive bool) (*query.DateRangeQuery, bool) {
	var start, end time.Time
	if lower != nil {
		t, ok := toTime(lower)
		if !ok {
			return nil, false
		}
		start = t
	}
	if upper != nil {
		t, ok := toTime(upper)
		if !ok {
			return nil, false
		}
		end = t
	}
	return bleve.NewDateRangeInclusiveQuery(start, end, &lowerInclusive, &upperInclusive), true
}

func buildQueryString(body any) (query.Query, error) {
	var text string
	switch v := body.(type) {
	case string:
		text = v
	case map[string]any:
		q, _ := v["query"].(string)
		text = q
	default:
		return nil, fmt.Errorf("%w: query_string expects an object", ErrUnsupportedQuery)
	}
	if text == "" || text == "*" {
		return bleve.NewMatchAllQuery(), nil
	}
	return bleve.NewQueryStringQuery(text), nil
}

func buildBool(body any) (query.Query, error) {
	clauses, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: bool expects an object", ErrUnsupportedQuery)
	}

	var must, should, mustNot []query.Query
	// Sorted so translation errors are reported deterministically.
	keys := make([]string, 0, len(clauses))
	for key := range clauses {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, occur := range keys {
		children, err := buildClauses(clauses[occur])
		if err != nil {
			return nil, err
		}
		switch occur {
		case "must", "filter":
			must = append(must, children...)
		case "should":
			should = append(should, children...)
		case "must_not":
			mustNot = append(mustNot, children...)
		case "minimum_should_match", "boost":
		default:
			return nil, fmt.Errorf("%w: bool occurrence %s", ErrUnsupportedQuery, occur)
		}
	}

	if len(must) == 0 && len(should) == 0 {
		// A bool with only must_not clauses excludes from everything.
		must = append(must, bleve.NewMatchAllQuery())
	}

	return bleve.NewBooleanQuery(must, should, mustNot), nil
}

func buildClauses(value any) ([]query.Query, error) {
	switch v := value.(type) {
	case map[string]any:
		q, err := BuildQuery(v)
		if err != nil {
			return nil, err
		}
		return []query.Query{q}, nil
	case []any:
		queries := make([]query.Query, 0, len(v))
		for _, item := range v {
			clause, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: bool clause must be an object", ErrUnsupportedQuery)
			}
			q, err := BuildQuery(clause)
			if err != nil {
				return nil, err
			}
			queries = append(queries, q)
		}
		return queries, nil
	case nil:
		return nil, nil
	}
	// scalar options such as minimum_should_match
	return nil, nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		return t, err == nil
	}
	return time.Time{}, false
}
