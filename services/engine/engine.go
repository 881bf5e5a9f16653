package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meghashyamc/churnsearch/config"
	"github.com/meghashyamc/churnsearch/db/kvdb"
	"github.com/meghashyamc/churnsearch/db/searchdb"
	"github.com/meghashyamc/churnsearch/logger"
	"github.com/meghashyamc/churnsearch/metrics"
	"github.com/meghashyamc/churnsearch/services/search"
)

// Store represents the search database operations the engine runs jobs against
type Store interface {
	Search(ctx context.Context, q searchdb.Query) (*searchdb.Response, error)
}

const (
	// count, hits, aggregations
	stageCount = 3

	statusComplete  = "complete"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
	statusRejected  = "rejected"

	maxJanitorInterval = time.Minute
)

var (
	ErrBusy           = errors.New("too many running searches")
	ErrSearchNotFound = errors.New("search not found")
	ErrInvalidRequest = errors.New("invalid search request")
)

type Options struct {
	PollInterval  time.Duration
	KeepAlive     time.Duration
	MaxConcurrent int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PollInterval:  cfg.GetSearchPollInterval(),
		KeepAlive:     cfg.GetSearchKeepAlive(),
		MaxConcurrent: cfg.GetSearchMaxConcurrent(),
	}
}

// Engine runs searches as background jobs. Job state lives in the metadata
// store; subscribers poll it and receive a snapshot whenever it changes.
type Engine struct {
	ctx           context.Context
	logger        logger.Logger
	store         Store
	metadataStore kvdb.DB
	options       Options
	slots         chan struct{}

	mu   sync.Mutex
	jobs map[string]context.CancelFunc

	now func() time.Time
}

type jobState struct {
	Response  search.Response `json:"response"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func New(ctx context.Context, logger logger.Logger, store Store, metadataStore kvdb.DB, options Options) *Engine {
	if options.MaxConcurrent <= 0 {
		options.MaxConcurrent = 1
	}
	if options.PollInterval <= 0 {
		options.PollInterval = 100 * time.Millisecond
	}
	if options.KeepAlive <= 0 {
		options.KeepAlive = 5 * time.Minute
	}

	e := &Engine{
		ctx:           ctx,
		logger:        logger,
		store:         store,
		metadataStore: metadataStore,
		options:       options,
		slots:         make(chan struct{}, options.MaxConcurrent),
		jobs:          make(map[string]context.CancelFunc),
		now:           time.Now,
	}

	go e.runJanitor(ctx)
	return e
}

// Search submits request as a job and streams its snapshots until one is
// terminal or ctx is cancelled. The job itself keeps running when the
// subscriber goes away; Cancel stops it.
func (e *Engine) Search(ctx context.Context, request *search.Request, options search.Options) (<-chan *search.Response, error) {
	if request == nil {
		return nil, fmt.Errorf("%w: missing request", ErrInvalidRequest)
	}
	query, err := toQuery(request.Params)
	if err != nil {
		return nil, err
	}

	select {
	case e.slots <- struct{}{}:
	default:
		metrics.SearchJobsTotal.WithLabelValues(strategyName(options), statusRejected).Inc()
		e.logger.Warn("rejecting search, too many running", "max_concurrent", e.options.MaxConcurrent)
		return nil, ErrBusy
	}

	id := uuid.New().String()
	if err := e.saveState(id, search.Response{ID: id, IsPartial: true, IsRunning: true, Total: stageCount}); err != nil {
		<-e.slots
		return nil, err
	}

	if request.Debug {
		e.logger.Debug("submitting search", "id", id, "index", query.Index, "query", query.DSL, "size", query.Size, "aggregations", len(query.Aggregations))
	}

	jobCtx, cancel := context.WithCancel(e.ctx)
	e.mu.Lock()
	e.jobs[id] = cancel
	e.mu.Unlock()

	go e.run(jobCtx, id, strategyName(options), query)

	out := make(chan *search.Response)
	go e.poll(ctx, id, out)

	return out, nil
}

// Cancel stops a job and deletes its state.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	e.mu.Lock()
	cancel, running := e.jobs[id]
	delete(e.jobs, id)
	e.mu.Unlock()

	if running {
		cancel()
	}

	if _, err := e.metadataStore.Get(kvdb.SearchesBucket, id); err != nil {
		if errors.Is(err, kvdb.ErrNotFound) {
			if running {
				return nil
			}
			return fmt.Errorf("%w: %s", ErrSearchNotFound, id)
		}
		return err
	}

	e.logger.Info("search cancelled", "id", id)
	return e.metadataStore.Delete(kvdb.SearchesBucket, id)
}

// Execute runs params as one blocking search, outside the job machinery.
func (e *Engine) Execute(ctx context.Context, params search.Params) (*search.RawResponse, error) {
	query, err := toQuery(params)
	if err != nil {
		return nil, err
	}
	response, err := e.store.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	raw := toRawResponse(response)
	if len(query.Aggregations) > 0 {
		raw.Aggregations = toAggregationResults(response.Aggregations)
	}
	return raw, nil
}

func (e *Engine) run(ctx context.Context, id string, strategy string, query searchdb.Query) {
	start := e.now()
	metrics.SearchJobsRunning.Inc()
	defer func() {
		metrics.SearchJobsRunning.Dec()
		metrics.SearchJobDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
		e.mu.Lock()
		delete(e.jobs, id)
		e.mu.Unlock()
		<-e.slots
	}()

	fail := func(err error) {
		if ctx.Err() != nil {
			metrics.SearchJobsTotal.WithLabelValues(strategy, statusCancelled).Inc()
			return
		}
		e.logger.Error("search failed", "id", id, "err", err.Error())
		metrics.SearchJobsTotal.WithLabelValues(strategy, statusFailed).Inc()
		e.saveState(id, search.Response{ID: id, IsPartial: true, IsRunning: false, Total: stageCount, Error: err.Error()})
	}

	// Stage 1: count the matches.
	countQuery := query
	countQuery.Size = 0
	countQuery.Aggregations = nil
	counted, err := e.store.Search(ctx, countQuery)
	if err != nil {
		fail(err)
		return
	}
	raw := &search.RawResponse{Took: counted.Took, Hits: search.Hits{Total: counted.Total, Hits: []search.Hit{}}}
	if !e.advance(ctx, id, 1, raw) {
		metrics.SearchJobsTotal.WithLabelValues(strategy, statusCancelled).Inc()
		return
	}

	// Stage 2: fetch the requested page of hits.
	hitsQuery := query
	hitsQuery.Aggregations = nil
	found, err := e.store.Search(ctx, hitsQuery)
	if err != nil {
		fail(err)
		return
	}
	raw = toRawResponse(found)
	if !e.advance(ctx, id, 2, raw) {
		metrics.SearchJobsTotal.WithLabelValues(strategy, statusCancelled).Inc()
		return
	}

	// Stage 3: aggregations.
	if len(query.Aggregations) > 0 {
		aggQuery := query
		aggQuery.Size = 0
		aggregated, err := e.store.Search(ctx, aggQuery)
		if err != nil {
			fail(err)
			return
		}
		raw.Took += aggregated.Took
		raw.Aggregations = toAggregationResults(aggregated.Aggregations)
	}

	if !e.saveJobState(ctx, id, search.Response{ID: id, IsPartial: false, IsRunning: false, Loaded: stageCount, Total: stageCount, RawResponse: raw}) {
		metrics.SearchJobsTotal.WithLabelValues(strategy, statusCancelled).Inc()
		return
	}
	metrics.SearchJobsTotal.WithLabelValues(strategy, statusComplete).Inc()
	e.logger.Debug("search complete", "id", id, "total", raw.Hits.Total, "took", time.Since(start))
}

// advance stores a running, partial snapshot. It reports false once the job was cancelled.
func (e *Engine) advance(ctx context.Context, id string, loaded int, raw *search.RawResponse) bool {
	if ctx.Err() != nil {
		return false
	}
	return e.saveJobState(ctx, id, search.Response{ID: id, IsPartial: true, IsRunning: true, Loaded: loaded, Total: stageCount, RawResponse: raw})
}

// saveJobState stores a snapshot unless the job was cancelled meanwhile, in
// which case whatever was written is removed again.
func (e *Engine) saveJobState(ctx context.Context, id string, response search.Response) bool {
	if err := e.saveState(id, response); err != nil {
		return false
	}
	if ctx.Err() != nil {
		e.metadataStore.Delete(kvdb.SearchesBucket, id)
		return false
	}
	return true
}

func (e *Engine) poll(ctx context.Context, id string, out chan<- *search.Response) {
	defer close(out)

	ticker := time.NewTicker(e.options.PollInterval)
	defer ticker.Stop()

	var last []byte
	for {
		value, err := e.metadataStore.Get(kvdb.SearchesBucket, id)
		if err != nil {
			if !errors.Is(err, kvdb.ErrNotFound) {
				e.logger.Error("could not read search state", "id", id, "err", err.Error())
			}
			// cancelled or expired
			return
		}

		if !bytes.Equal(last, []byte(value)) {
			last = []byte(value)

			var state jobState
			if err := json.Unmarshal(last, &state); err != nil {
				e.logger.Error("could not decode search state", "id", id, "err", err.Error())
				return
			}

			snapshot := state.Response
			select {
			case out <- &snapshot:
			case <-ctx.Done():
				return
			}
			if snapshot.IsTerminal() {
				return
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) saveState(id string, response search.Response) error {
	data, err := json.Marshal(jobState{Response: response, ExpiresAt: e.now().Add(e.options.KeepAlive)})
	if err != nil {
		e.logger.Error("could not encode search state", "id", id, "err", err.Error())
		return err
	}
	if err := e.metadataStore.Set(kvdb.SearchesBucket, id, string(data)); err != nil {
		e.logger.Error("could not store search state", "id", id, "err", err.Error())
		return err
	}
	return nil
}

func (e *Engine) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(min(e.options.KeepAlive, maxJanitorInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.purgeExpired()
		case <-ctx.Done():
			return
		}
	}
}

// purgeExpired removes the state of searches nobody read within keep_alive.
func (e *Engine) purgeExpired() int {
	keys, err := e.metadataStore.GetAllKeys(kvdb.SearchesBucket)
	if err != nil {
		e.logger.Error("could not list searches", "err", err.Error())
		return 0
	}

	purged := 0
	now := e.now()
	for _, id := range keys {
		value, err := e.metadataStore.Get(kvdb.SearchesBucket, id)
		if err != nil {
			continue
		}
		var state jobState
		if err := json.Unmarshal([]byte(value), &state); err != nil || now.After(state.ExpiresAt) {
			e.mu.Lock()
			if cancel, ok := e.jobs[id]; ok {
				cancel()
				delete(e.jobs, id)
			}
			e.mu.Unlock()
			if err := e.metadataStore.Delete(kvdb.SearchesBucket, id); err == nil {
				purged++
			}
		}
	}
	if purged > 0 {
		e.logger.Info("purged expired searches", "count", purged)
	}
	return purged
}

func strategyName(options search.Options) string {
	if options.Strategy == "" {
		return search.DefaultStrategy
	}
	return options.Strategy
}

func toQuery(params search.Params) (searchdb.Query, error) {
	if params.Index == "" {
		return searchdb.Query{}, fmt.Errorf("%w: missing index", ErrInvalidRequest)
	}
	if params.Size < 0 {
		return searchdb.Query{}, fmt.Errorf("%w: negative size", ErrInvalidRequest)
	}

	names := make([]string, 0, len(params.Body.Aggs))
	for name := range params.Body.Aggs {
		names = append(names, name)
	}
	sort.Strings(names)

	aggregations := make([]searchdb.Aggregation, 0, len(names))
	for _, name := range names {
		aggregation, err := toAggregation(name, params.Body.Aggs[name])
		if err != nil {
			return searchdb.Query{}, err
		}
		aggregations = append(aggregations, aggregation)
	}

	return searchdb.Query{
		Index:        params.Index,
		DSL:          params.Body.Query,
		Size:         params.Size,
		Version:      params.Version,
		Aggregations: aggregations,
	}, nil
}

func toAggregation(name string, agg search.Aggregation) (searchdb.Aggregation, error) {
	candidates := []struct {
		kind  searchdb.AggregationKind
		field *search.FieldAggregation
	}{
		{searchdb.AggregationAvg, agg.Avg},
		{searchdb.AggregationSum, agg.Sum},
		{searchdb.AggregationMin, agg.Min},
		{searchdb.AggregationMax, agg.Max},
		{searchdb.AggregationValueCount, agg.ValueCount},
	}

	var result *searchdb.Aggregation
	for _, candidate := range candidates {
		if candidate.field == nil {
			continue
		}
		if result != nil || candidate.field.Field == "" {
			return searchdb.Aggregation{}, fmt.Errorf("%w: aggregation %s needs exactly one metric with a field", ErrInvalidRequest, name)
		}
		result = &searchdb.Aggregation{Name: name, Kind: candidate.kind, Field: candidate.field.Field}
	}
	if result == nil {
		return searchdb.Aggregation{}, fmt.Errorf("%w: aggregation %s has no metric", ErrInvalidRequest, name)
	}
	return *result, nil
}

func toRawResponse(response *searchdb.Response) *search.RawResponse {
	hits := make([]search.Hit, len(response.Hits))
	for i, hit := range response.Hits {
		hits[i] = search.Hit{
			Index:   hit.Index,
			ID:      hit.ID,
			Score:   hit.Score,
			Version: hit.Version,
			Source:  json.RawMessage(hit.Source),
		}
	}
	return &search.RawResponse{
		Took: response.Took,
		Hits: search.Hits{Total: response.Total, MaxScore: response.MaxScore, Hits: hits},
	}
}

func toAggregationResults(values map[string]*float64) map[string]search.AggregationResult {
	results := make(map[string]search.AggregationResult, len(values))
	for name, value := range values {
		results[name] = search.AggregationResult{Value: value}
	}
	return results
}
