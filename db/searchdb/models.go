package searchdb

import (
	"errors"

	"github.com/meghashyamc/churnsearch/domain"
)

var (
	ErrIndexNotFound    = errors.New("index not found")
	ErrUnsupportedQuery = errors.New("unsupported query")
)

type Document struct {
	ID      string
	Version int64
	Record  domain.Record
}

type AggregationKind string

const (
	AggregationAvg        AggregationKind = "avg"
	AggregationSum        AggregationKind = "sum"
	AggregationMin        AggregationKind = "min"
	AggregationMax        AggregationKind = "max"
	AggregationValueCount AggregationKind = "value_count"
)

type Aggregation struct {
	Name  string
	Kind  AggregationKind
	Field string
}

type Query struct {
	// Index is a name, a comma separated list or a pattern with '*'.
	Index        string
	DSL          map[string]any
	Size         int
	From         int
	Version      bool
	Aggregations []Aggregation
}

type Hit struct {
	Index   string
	ID      string
	Score   float64
	Version int64
	Source  []byte
}

type Response struct {
	Took         int64
	Total        uint64
	MaxScore     float64
	Hits         []Hit
	Aggregations map[string]*float64
}
