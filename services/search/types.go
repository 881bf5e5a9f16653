package search

import "encoding/json"

// FieldAggregation names the numeric field a metric aggregation reads.
type FieldAggregation struct {
	Field string `json:"field"`
}

// Aggregation is a single-value metric aggregation. Exactly one member is expected to be set.
type Aggregation struct {
	Avg        *FieldAggregation `json:"avg,omitempty"`
	Sum        *FieldAggregation `json:"sum,omitempty"`
	Min        *FieldAggregation `json:"min,omitempty"`
	Max        *FieldAggregation `json:"max,omitempty"`
	ValueCount *FieldAggregation `json:"value_count,omitempty"`
}

// Body is the structured query and aggregation part of a request.
type Body struct {
	Query map[string]any         `json:"query,omitempty"`
	Aggs  map[string]Aggregation `json:"aggs,omitempty"`
}

type Params struct {
	Index   string `json:"index"`
	Size    int    `json:"size"`
	Version bool   `json:"version"`
	Body    Body   `json:"body"`
}

type Request struct {
	ID     string `json:"id,omitempty"`
	Params Params `json:"params"`
	Debug  bool   `json:"debug,omitempty"`
}

type Options struct {
	Strategy string `json:"strategy,omitempty"`
}

type Hit struct {
	Index   string          `json:"_index"`
	ID      string          `json:"_id"`
	Score   float64         `json:"_score"`
	Version int64           `json:"_version,omitempty"`
	Source  json.RawMessage `json:"_source"`
}

type Hits struct {
	Total    uint64  `json:"total"`
	MaxScore float64 `json:"max_score"`
	Hits     []Hit   `json:"hits"`
}

type AggregationResult struct {
	Value *float64 `json:"value"`
}

// RawResponse is the engine's native search response.
type RawResponse struct {
	Took         int64                        `json:"took"`
	TimedOut     bool                         `json:"timed_out"`
	Hits         Hits                         `json:"hits"`
	Aggregations map[string]AggregationResult `json:"aggregations,omitempty"`
}

// AggregationValue returns the value of the named aggregation when it has one.
func (r *RawResponse) AggregationValue(name string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	agg, ok := r.Aggregations[name]
	if !ok || agg.Value == nil {
		return 0, false
	}
	return *agg.Value, true
}

// Response is one snapshot of an in-flight search.
type Response struct {
	ID          string       `json:"id,omitempty"`
	IsPartial   bool         `json:"is_partial"`
	IsRunning   bool         `json:"is_running"`
	Loaded      int          `json:"loaded"`
	Total       int          `json:"total"`
	RawResponse *RawResponse `json:"raw_response,omitempty"`
	Satisfied   bool         `json:"satisfied,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// IsTerminal reports whether the search stopped running.
func (r *Response) IsTerminal() bool {
	return !r.IsRunning
}

// Clone copies the snapshot header. RawResponse is shared; snapshots are treated as read-only.
func (r *Response) Clone() *Response {
	clone := *r
	return &clone
}
