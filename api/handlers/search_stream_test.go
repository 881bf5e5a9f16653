package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/meghashyamc/churnsearch/services/search"
	"github.com/stretchr/testify/require"
)

func streamRequest(index string) map[string]any {
	return map[string]any{"params": churnQuery(index)}
}

var searchStreamFailureTestCases = []struct {
	testCase
	strategy string
}{
	{strategy: "es", testCase: testCase{name: "NoRequestBody", requestHeaders: defaultTestRequestHeaders, expectedStatus: http.StatusUnprocessableEntity}},
	{strategy: "es", testCase: testCase{name: "MissingIndex", requestHeaders: defaultTestRequestHeaders, requestBody: streamRequest(""), expectedStatus: http.StatusNotAcceptable}},
	{strategy: "es", testCase: testCase{name: "InvalidIndex", requestHeaders: defaultTestRequestHeaders, requestBody: streamRequest("Churn"), expectedStatus: http.StatusNotAcceptable}},
	{strategy: "1st", testCase: testCase{name: "InvalidStrategyName", requestHeaders: defaultTestRequestHeaders, requestBody: streamRequest(testIndex), expectedStatus: http.StatusNotAcceptable}},
	{strategy: "other", testCase: testCase{name: "UnknownStrategy", requestHeaders: defaultTestRequestHeaders, requestBody: streamRequest(testIndex), expectedStatus: http.StatusNotFound}},
	{strategy: "es", testCase: testCase{
		name:           "InvalidAggregation",
		requestHeaders: defaultTestRequestHeaders,
		requestBody: map[string]any{"params": map[string]any{
			"index": testIndex,
			"body":  map[string]any{"aggs": map[string]any{"avg_call_charges": map[string]any{}}},
		}},
		expectedStatus: http.StatusNotAcceptable,
	}},
}

func TestSearchStreamFailures(t *testing.T) {
	server := setupTestServer(t, require.New(t))

	for _, testCase := range searchStreamFailureTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/internal/search/"+testCase.strategy, testCase.requestHeaders, testCase.requestBody, nil)
			assert.Equal(testCase.expectedStatus, w.Code, "response gotten was %s", w.Body.String())

			var body response
			assert.NoError(json.Unmarshal(w.Body.Bytes(), &body))
			assert.Len(body.Errors, 1)
		})
	}
}

func decodeSnapshots(assert *require.Assertions, body []byte) []search.Response {
	var snapshots []search.Response
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		snapshot := search.Response{}
		assert.NoError(json.Unmarshal(scanner.Bytes(), &snapshot))
		snapshots = append(snapshots, snapshot)
	}
	assert.NoError(scanner.Err())
	return snapshots
}

var searchStreamTestCases = []struct {
	strategy  string
	satisfied bool
}{
	{strategy: "es", satisfied: false},
	{strategy: "myStrategy", satisfied: true},
}

func TestSearchStream(t *testing.T) {
	server := setupTestServer(t, require.New(t))

	for _, testCase := range searchStreamTestCases {
		t.Run(testCase.strategy, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/internal/search/"+testCase.strategy, defaultTestRequestHeaders, streamRequest(testIndex), nil)
			assert.Equal(http.StatusOK, w.Code, "response gotten was %s", w.Body.String())
			assert.Equal(ContentTypeNDJSON, w.Header().Get("Content-Type"))

			snapshots := decodeSnapshots(assert, w.Body.Bytes())
			assert.NotEmpty(snapshots)
			for _, snapshot := range snapshots[:len(snapshots)-1] {
				assert.True(snapshot.IsRunning)
				assert.True(snapshot.IsPartial)
			}

			last := snapshots[len(snapshots)-1]
			assert.False(last.IsRunning)
			assert.False(last.IsPartial)
			assert.Equal(testCase.satisfied, last.Satisfied)
			assert.Equal(uint64(2), last.RawResponse.Hits.Total)
			average, ok := last.RawResponse.AggregationValue("avg_call_charges")
			assert.True(ok)
			assert.InDelta(39.62, average, 0.001)

			for _, snapshot := range snapshots {
				assert.Equal(last.ID, snapshot.ID)
			}
		})
	}
}

func TestSearchStreamReportsFailedSearches(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/internal/search/es", defaultTestRequestHeaders, streamRequest("missing"), nil)
	assert.Equal(http.StatusOK, w.Code)

	snapshots := decodeSnapshots(assert, w.Body.Bytes())
	last := snapshots[len(snapshots)-1]
	assert.True(last.IsPartial)
	assert.False(last.IsRunning)
	assert.NotEmpty(last.Error)
}

func TestCancelSearch(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodDelete, "/internal/search/es/8d6f0c2a-7f57-4a4e-9a55-4d1f3b0b9e0e", nil, nil, nil)
	assert.Equal(http.StatusNotFound, w.Code)

	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, "/internal/search/other/some-id", nil, nil, nil)
	assert.Equal(http.StatusNotFound, w.Code)

	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, "/internal/search/1st/some-id", nil, nil, nil)
	assert.Equal(http.StatusNotAcceptable, w.Code)

	// A finished search keeps its state until it expires, so it can still be cancelled.
	w = makeTestHTTPRequest(server.router, assert, http.MethodPost, "/internal/search/myStrategy", defaultTestRequestHeaders, streamRequest(testIndex), nil)
	assert.Equal(http.StatusOK, w.Code)
	snapshots := decodeSnapshots(assert, w.Body.Bytes())
	id := snapshots[len(snapshots)-1].ID

	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, "/internal/search/myStrategy/"+id, nil, nil, nil)
	assert.Equal(http.StatusNoContent, w.Code)

	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, "/internal/search/es/"+id, nil, nil, nil)
	assert.Equal(http.StatusNotFound, w.Code)
}
