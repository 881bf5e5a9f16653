package searchdb

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/meghashyamc/churnsearch/domain"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func loadFixture(t *testing.T) []Document {
	t.Helper()
	content, err := os.ReadFile(filepath.Join("testdata", "records.yaml"))
	require.NoError(t, err)

	var records []domain.Record
	require.NoError(t, yaml.Unmarshal(content, &records))

	documents := make([]Document, len(records))
	for i, record := range records {
		documents[i] = Document{ID: record.ID, Version: 1, Record: record}
	}
	return documents
}

func newTestIndex(t *testing.T) (*BleveDB, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "indices")
	db, err := Open(slog.New(slog.NewTextHandler(os.Stderr, nil)), root)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.BuildIndex("churn_predictions", loadFixture(t)))
	return db, root
}

func hitIDs(response *Response) []string {
	ids := make([]string, len(response.Hits))
	for i, hit := range response.Hits {
		ids[i] = hit.ID
	}
	sort.Strings(ids)
	return ids
}

var searchTestCases = []struct {
	name        string
	dsl         map[string]any
	expectedIDs []string
}{
	{
		name:        "Match all",
		dsl:         map[string]any{"match_all": map[string]any{}},
		expectedIDs: []string{"rec-1", "rec-2", "rec-3", "rec-4", "rec-5", "rec-6"},
	},
	{
		name:        "Empty query matches everything",
		dsl:         nil,
		expectedIDs: []string{"rec-1", "rec-2", "rec-3", "rec-4", "rec-5", "rec-6"},
	},
	{
		name:        "Keyword match on nested field",
		dsl:         map[string]any{"match": map[string]any{"customer.churn": "1"}},
		expectedIDs: []string{"rec-4", "rec-5"},
	},
	{
		name:        "Numeric term",
		dsl:         map[string]any{"term": map[string]any{"call_count": 110}},
		expectedIDs: []string{"rec-1"},
	},
	{
		name:        "Terms on state",
		dsl:         map[string]any{"terms": map[string]any{"customer.state": []any{"OH", "AL"}}},
		expectedIDs: []string{"rec-2", "rec-4", "rec-6"},
	},
	{
		name:        "Numeric range",
		dsl:         map[string]any{"range": map[string]any{"call_charges": map[string]any{"gte": 40.0}}},
		expectedIDs: []string{"rec-1", "rec-3", "rec-4"},
	},
	{
		name: "Bool with filter and must_not",
		dsl: map[string]any{"bool": map[string]any{
			"filter":   []any{map[string]any{"match": map[string]any{"customer.international_plan": "yes"}}},
			"must_not": map[string]any{"match": map[string]any{"customer.state": "OK"}},
		}},
		expectedIDs: []string{"rec-4", "rec-6"},
	},
	{
		name:        "Only must_not excludes from everything",
		dsl:         map[string]any{"bool": map[string]any{"must_not": []any{map[string]any{"match": map[string]any{"customer.churn": "0"}}}}},
		expectedIDs: []string{"rec-4", "rec-5"},
	},
	{
		name:        "Query string on a field",
		dsl:         map[string]any{"query_string": map[string]any{"query": "customer.state:NJ"}},
		expectedIDs: []string{"rec-3"},
	},
	{
		name:        "Empty query string matches everything",
		dsl:         map[string]any{"query_string": map[string]any{"query": ""}},
		expectedIDs: []string{"rec-1", "rec-2", "rec-3", "rec-4", "rec-5", "rec-6"},
	},
	{
		name:        "Prefix on phone number",
		dsl:         map[string]any{"prefix": map[string]any{"phone_number": "37"}},
		expectedIDs: []string{"rec-2", "rec-4"},
	},
	{
		name:        "Match none",
		dsl:         map[string]any{"match_none": map[string]any{}},
		expectedIDs: []string{},
	},
}

func TestSearch(t *testing.T) {
	db, _ := newTestIndex(t)

	for _, testCase := range searchTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			response, err := db.Search(context.Background(), Query{Index: "churn_predictions", DSL: testCase.dsl, Size: 20})
			assert.NoError(err)
			assert.Equal(testCase.expectedIDs, hitIDs(response))
			assert.Equal(uint64(len(testCase.expectedIDs)), response.Total)
		})
	}
}

func TestSearchReturnsSourceAndVersion(t *testing.T) {
	assert := require.New(t)
	db, _ := newTestIndex(t)

	response, err := db.Search(context.Background(), Query{
		Index:   "churn_predictions",
		DSL:     map[string]any{"match": map[string]any{"phone_number": "382-4657"}},
		Size:    15,
		Version: true,
	})
	assert.NoError(err)
	assert.Len(response.Hits, 1)

	hit := response.Hits[0]
	assert.Equal("churn_predictions", hit.Index)
	assert.Equal(int64(1), hit.Version)

	var record domain.Record
	assert.NoError(json.Unmarshal(hit.Source, &record))
	assert.Equal("KS", record.Customer.State)
	assert.InDelta(45.07, record.CallCharges, 0.0001)
}

func TestSearchSizeLimitsHitsNotTotal(t *testing.T) {
	assert := require.New(t)
	db, _ := newTestIndex(t)

	response, err := db.Search(context.Background(), Query{Index: "churn_predictions", Size: 2})
	assert.NoError(err)
	assert.Len(response.Hits, 2)
	assert.Equal(uint64(6), response.Total)
}

func TestAggregations(t *testing.T) {
	assert := require.New(t)
	db, _ := newTestIndex(t)

	response, err := db.Search(context.Background(), Query{
		Index: "churn_predictions",
		DSL:   map[string]any{"match": map[string]any{"customer.churn": "1"}},
		Size:  15,
		Aggregations: []Aggregation{
			{Name: "avg_call_charges", Kind: AggregationAvg, Field: "call_charges"},
			{Name: "max_calls", Kind: AggregationMax, Field: "call_count"},
			{Name: "count", Kind: AggregationValueCount, Field: "call_charges"},
		},
	})
	assert.NoError(err)
	assert.NotNil(response.Aggregations["avg_call_charges"])
	assert.InDelta(39.62, *response.Aggregations["avg_call_charges"], 0.0001)
	assert.InDelta(113.0, *response.Aggregations["max_calls"], 0.0001)
	assert.InDelta(2.0, *response.Aggregations["count"], 0.0001)
}

func TestAggregationsOverNoHits(t *testing.T) {
	assert := require.New(t)
	db, _ := newTestIndex(t)

	response, err := db.Search(context.Background(), Query{
		Index: "churn_predictions",
		DSL:   map[string]any{"match_none": map[string]any{}},
		Aggregations: []Aggregation{
			{Name: "avg_call_charges", Kind: AggregationAvg, Field: "call_charges"},
			{Name: "total", Kind: AggregationSum, Field: "call_charges"},
		},
	})
	assert.NoError(err)
	assert.Nil(response.Aggregations["avg_call_charges"], "an average over nothing has no value")
	assert.NotNil(response.Aggregations["total"])
	assert.Equal(0.0, *response.Aggregations["total"])
}

func TestUnknownIndex(t *testing.T) {
	assert := require.New(t)
	db, _ := newTestIndex(t)

	_, err := db.Search(context.Background(), Query{Index: "customer_churn_model"})
	assert.True(errors.Is(err, ErrIndexNotFound))
	assert.False(db.HasIndex("customer_churn_model"))
	assert.True(db.HasIndex("churn_*"))
}

func TestUnsupportedQuery(t *testing.T) {
	assert := require.New(t)
	db, _ := newTestIndex(t)

	_, err := db.Search(context.Background(), Query{
		Index: "churn_predictions",
		DSL:   map[string]any{"geo_distance": map[string]any{}},
	})
	assert.True(errors.Is(err, ErrUnsupportedQuery))
}

func TestPatternSearchesAcrossIndices(t *testing.T) {
	assert := require.New(t)
	db, _ := newTestIndex(t)

	extra := loadFixture(t)[:2]
	assert.NoError(db.BuildIndex("churn_archive", extra))

	response, err := db.Search(context.Background(), Query{Index: "churn_*", Size: 20})
	assert.NoError(err)
	assert.Equal(uint64(8), response.Total)
	assert.Equal([]string{"churn_archive", "churn_predictions"}, db.Indices())

	count, err := db.GetDocCount("churn_archive")
	assert.NoError(err)
	assert.Equal(uint64(2), count)
}

func TestDeleteDocuments(t *testing.T) {
	assert := require.New(t)
	db, _ := newTestIndex(t)

	assert.NoError(db.DeleteDocuments("churn_predictions", []string{"rec-1", "rec-2"}))

	count, err := db.GetDocCount("churn_predictions")
	assert.NoError(err)
	assert.Equal(uint64(4), count)
}

func TestReopenFindsExistingIndices(t *testing.T) {
	assert := require.New(t)
	db, root := newTestIndex(t)
	assert.NoError(db.Close())

	reopened, err := Open(slog.New(slog.NewTextHandler(os.Stderr, nil)), root)
	assert.NoError(err)
	defer reopened.Close()

	assert.Equal([]string{"churn_predictions"}, reopened.Indices())
	count, err := reopened.GetDocCount("churn_predictions")
	assert.NoError(err)
	assert.Equal(uint64(6), count)
}
