package searchdb

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/churnsearch/config"
	"github.com/meghashyamc/churnsearch/logger"
)

const IndexingBatchSize = 100

const (
	indexFieldSource  = "raw_source"
	indexFieldVersion = "version"
)

var numericFields = []string{"call_count", "call_duration", "call_charges"}
var numericCustomerFields = []string{"account_age", "customer_service_calls", "number_vmail_messages"}
var keywordCustomerFields = []string{"churn", "international_plan", "state", "voice_mail_plan"}

type BleveDB struct {
	rootPath string
	logger   logger.Logger

	mu      sync.RWMutex
	indices map[string]bleve.Index
}

func New(logger logger.Logger, cfg *config.Config) (*BleveDB, error) {
	return Open(logger, filepath.Join(cfg.GetStoragePath(), cfg.GetIndexPath()))
}

// Open loads every index found under rootPath. Missing indices are created on first write.
func Open(logger logger.Logger, rootPath string) (*BleveDB, error) {
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		logger.Error("could not create index directory", "path", rootPath, "err", err.Error())
		return nil, fmt.Errorf("could not create index directory: %w", err)
	}

	b := &BleveDB{rootPath: rootPath, logger: logger, indices: make(map[string]bleve.Index)}

	entries, err := os.ReadDir(rootPath)
	if err != nil {
		return nil, fmt.Errorf("could not list index directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		index, err := bleve.Open(filepath.Join(rootPath, entry.Name()))
		if err != nil {
			logger.Warn("skipping unreadable index", "index", entry.Name(), "err", err.Error())
			continue
		}
		index.SetName(entry.Name())
		b.indices[entry.Name()] = index
	}

	return b, nil
}

func (b *BleveDB) getOrCreateIndex(name string) (bleve.Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index, ok := b.indices[name]; ok {
		return index, nil
	}

	indexPath := filepath.Join(b.rootPath, name)
	index, err := bleve.New(indexPath, createIndexMapping())
	if err != nil {
		index, err = bleve.Open(indexPath)
		if err != nil {
			b.logger.Error("could not open index", "index", name, "err", err.Error())
			return nil, err
		}
	}
	index.SetName(name)
	b.indices[name] = index

	return index, nil
}

func (b *BleveDB) BuildIndex(indexName string, documents []Document) error {
	index, err := b.getOrCreateIndex(indexName)
	if err != nil {
		return err
	}

	batch := index.NewBatch()

	for i, doc := range documents {
		fields, err := toIndexFields(doc)
		if err != nil {
			b.logger.Error("could not prepare document", "id", doc.ID, "err", err.Error())
			return err
		}

		if err := batch.Index(doc.ID, fields); err != nil {
			b.logger.Error("could not index document", "id", doc.ID, "err", err.Error())
			return err
		}

		// Execute batch when it reaches the batch size
		if (i+1)%IndexingBatchSize == 0 {
			if err := index.Batch(batch); err != nil {
				return err
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			b.logger.Error("could not index document", "err", err.Error())
			return err
		}
	}

	return nil
}

// toIndexFields turns a record into the generic map bleve walks, keeping the
// original JSON so hits can hand back their source untouched.
func toIndexFields(doc Document) (map[string]any, error) {
	source, err := json.Marshal(doc.Record)
	if err != nil {
		return nil, fmt.Errorf("could not encode record %s: %w", doc.ID, err)
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(source, &fields); err != nil {
		return nil, fmt.Errorf("could not decode record %s: %w", doc.ID, err)
	}
	fields[indexFieldSource] = string(source)
	fields[indexFieldVersion] = float64(doc.Version)

	return fields, nil
}

func createIndexMapping() mapping.IndexMapping {

	indexMapping := bleve.NewIndexMapping()
	// Every string in a churn record is a code or an identifier, so match it whole.
	indexMapping.DefaultAnalyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()

	phoneFieldMapping := bleve.NewTextFieldMapping()
	phoneFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("phone_number", phoneFieldMapping)

	for _, field := range numericFields {
		docMapping.AddFieldMappingsAt(field, bleve.NewNumericFieldMapping())
	}

	customerMapping := bleve.NewDocumentMapping()
	for _, field := range numericCustomerFields {
		customerMapping.AddFieldMappingsAt(field, bleve.NewNumericFieldMapping())
	}
	for _, field := range keywordCustomerFields {
		fieldMapping := bleve.NewTextFieldMapping()
		fieldMapping.Analyzer = keyword.Name
		customerMapping.AddFieldMappingsAt(field, fieldMapping)
	}
	docMapping.AddSubDocumentMapping("customer", customerMapping)

	sourceFieldMapping := bleve.NewTextFieldMapping()
	sourceFieldMapping.Store = true  // handed back with every hit
	sourceFieldMapping.Index = false // never searched
	sourceFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(indexFieldSource, sourceFieldMapping)

	versionFieldMapping := bleve.NewNumericFieldMapping()
	versionFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(indexFieldVersion, versionFieldMapping)

	indexMapping.DefaultMapping = docMapping

	return indexMapping
}

// resolve expands a name, a comma separated list or '*' patterns into open indices.
func (b *BleveDB) resolve(pattern string) []bleve.Index {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	for _, part := range strings.Split(pattern, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for name := range b.indices {
			if _, ok := seen[name]; ok {
				continue
			}
			matched := name == part
			if !matched && strings.Contains(part, "*") {
				matched, _ = path.Match(part, name)
			}
			if matched {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	resolved := make([]bleve.Index, 0, len(names))
	for _, name := range names {
		resolved = append(resolved, b.indices[name])
	}
	return resolved
}

func (b *BleveDB) HasIndex(pattern string) bool {
	return len(b.resolve(pattern)) > 0
}

func (b *BleveDB) Indices() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.indices))
	for name := range b.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *BleveDB) searchable(pattern string) (bleve.Index, error) {
	indices := b.resolve(pattern)
	switch len(indices) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, pattern)
	case 1:
		return indices[0], nil
	}
	return bleve.NewIndexAlias(indices...), nil
}

func (b *BleveDB) Search(ctx context.Context, q Query) (*Response, error) {
	index, err := b.searchable(q.Index)
	if err != nil {
		return nil, err
	}

	bleveQuery, err := BuildQuery(q.DSL)
	if err != nil {
		return nil, err
	}

	size := q.Size
	if size < 0 {
		size = 10
	}
	searchRequest := bleve.NewSearchRequestOptions(bleveQuery, size, q.From, false)
	searchRequest.Fields = []string{indexFieldSource, indexFieldVersion}

	searchResult, err := index.SearchInContext(ctx, searchRequest)
	if err != nil {
		b.logger.Error("search failed", "index", q.Index, "err", err.Error())
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, len(searchResult.Hits))
	for i, match := range searchResult.Hits {
		hit := Hit{
			Index: match.Index,
			ID:    match.ID,
			Score: match.Score,
		}
		if source, ok := match.Fields[indexFieldSource].(string); ok {
			hit.Source = []byte(source)
		}
		if version, ok := match.Fields[indexFieldVersion].(float64); ok && q.Version {
			hit.Version = int64(version)
		}
		hits[i] = hit
	}

	response := &Response{
		Took:     searchResult.Took.Milliseconds(),
		Total:    searchResult.Total,
		MaxScore: searchResult.MaxScore,
		Hits:     hits,
	}

	if len(q.Aggregations) > 0 {
		aggregations, err := b.aggregate(ctx, index, bleveQuery, searchResult.Total, q.Aggregations)
		if err != nil {
			return nil, err
		}
		response.Aggregations = aggregations
	}

	return response, nil
}

// aggregate computes single-value metrics over every matching document.
func (b *BleveDB) aggregate(ctx context.Context, index bleve.Index, q query.Query, total uint64, aggregations []Aggregation) (map[string]*float64, error) {
	fieldSet := make(map[string]struct{})
	var fields []string
	for _, agg := range aggregations {
		if _, ok := fieldSet[agg.Field]; !ok {
			fieldSet[agg.Field] = struct{}{}
			fields = append(fields, agg.Field)
		}
	}

	values := make(map[string][]float64, len(fields))
	if total > 0 {
		searchRequest := bleve.NewSearchRequestOptions(q, int(total), 0, false)
		searchRequest.Fields = fields
		searchResult, err := index.SearchInContext(ctx, searchRequest)
		if err != nil {
			b.logger.Error("aggregation search failed", "err", err.Error())
			return nil, fmt.Errorf("aggregation search failed: %w", err)
		}
		for _, match := range searchResult.Hits {
			for _, field := range fields {
				if value, ok := match.Fields[field].(float64); ok {
					values[field] = append(values[field], value)
				}
			}
		}
	}

	results := make(map[string]*float64, len(aggregations))
	for _, agg := range aggregations {
		results[agg.Name] = computeMetric(agg.Kind, values[agg.Field])
	}
	return results, nil
}

func computeMetric(kind AggregationKind, values []float64) *float64 {
	var result float64
	switch kind {
	case AggregationValueCount:
		result = float64(len(values))
		return &result
	case AggregationSum:
		for _, v := range values {
			result += v
		}
		return &result
	}

	if len(values) == 0 {
		return nil
	}

	switch kind {
	case AggregationAvg:
		for _, v := range values {
			result += v
		}
		result /= float64(len(values))
	case AggregationMin:
		result = math.Inf(1)
		for _, v := range values {
			result = math.Min(result, v)
		}
	case AggregationMax:
		result = math.Inf(-1)
		for _, v := range values {
			result = math.Max(result, v)
		}
	default:
		return nil
	}
	return &result
}

func (b *BleveDB) DeleteDocuments(indexName string, documentIDs []string) error {
	index, err := b.searchable(indexName)
	if err != nil {
		return err
	}
	batch := index.NewBatch()

	for i, docID := range documentIDs {
		batch.Delete(docID)

		// Execute batch when it reaches the batch size
		if (i+1)%IndexingBatchSize == 0 {
			if err := index.Batch(batch); err != nil {
				return err
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			b.logger.Error("could not delete documents", "err", err.Error())
			return err
		}
	}

	return nil
}

func (b *BleveDB) GetDocCount(indexName string) (uint64, error) {
	index, err := b.searchable(indexName)
	if err != nil {
		return 0, err
	}
	return index.DocCount()
}

func (b *BleveDB) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for name, index := range b.indices {
		if err := index.Close(); err != nil {
			b.logger.Error("could not close search index", "index", name, "err", err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	b.indices = make(map[string]bleve.Index)
	return firstErr
}
