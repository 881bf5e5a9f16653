package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meghashyamc/churnsearch/domain"
	"github.com/meghashyamc/churnsearch/logger"
	"github.com/meghashyamc/churnsearch/services/notify"
	"github.com/meghashyamc/churnsearch/services/search"
)

const (
	TitleQueryResult    = "Query result"
	TextError           = "An error has occurred"
	TextBackendError    = "An error has occurred when calling the backend"
	cancelSearchTimeout = 5 * time.Second
)

var ErrClosed = errors.New("search session closed")

// StrategySource looks up search strategies by name.
type StrategySource interface {
	Get(name string) (search.Searcher, error)
}

// IndexResolver names the index searched by default.
type IndexResolver interface {
	DefaultIndex(ctx context.Context) (string, error)
}

type IndexResolverFunc func(ctx context.Context) (string, error)

func (f IndexResolverFunc) DefaultIndex(ctx context.Context) (string, error) {
	return f(ctx)
}

// SideResult is the answer of the plain request/response path.
type SideResult struct {
	ResponseTime time.Time          `json:"response_time"`
	Raw          search.RawResponse `json:"raw_data"`
}

// SideChannel posts search parameters to a secondary, non-streaming endpoint.
type SideChannel interface {
	SuspectList(ctx context.Context, params search.Params) (*SideResult, error)
}

// ResultSet is the set of rows currently displayed. It is replaced wholesale.
type ResultSet struct {
	Documents  []domain.Document
	Total      uint64
	Aggregate  *float64
	Satisfied  bool
	ReceivedAt time.Time
}

type Options struct {
	// Strategy names the search strategy; empty selects the default one.
	Strategy  string
	Size      int
	TimeField string
}

type Dependencies struct {
	Logger     logger.Logger
	Strategies StrategySource
	Notifier   notify.Notifier
	Indices    IndexResolver
	// SideChannel is optional.
	SideChannel SideChannel
	QueryState  *QueryState
}

type Session struct {
	logger      logger.Logger
	strategies  StrategySource
	notifier    notify.Notifier
	indices     IndexResolver
	sideChannel SideChannel
	queryState  *QueryState
	options     Options

	ctx    context.Context
	cancel context.CancelFunc

	results     atomic.Pointer[ResultSet]
	sideResults atomic.Pointer[SideResult]

	mu               sync.Mutex
	current          Query
	unsubscribeQuery func()
	active           map[*Subscription]struct{}
	onResults        []func(*ResultSet)
	onSideResults    []func(*SideResult)
	closed           bool
}

func New(deps Dependencies, options Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	queryState := deps.QueryState
	if queryState == nil {
		queryState = NewQueryState(Query{})
	}
	return &Session{
		logger:      deps.Logger,
		strategies:  deps.Strategies,
		notifier:    deps.Notifier,
		indices:     deps.Indices,
		sideChannel: deps.SideChannel,
		queryState:  queryState,
		options:     options,
		ctx:         ctx,
		cancel:      cancel,
		active:      make(map[*Subscription]struct{}),
	}
}

// Start subscribes to the query state. The subscription is held until Close.
func (s *Session) Start() {
	s.mu.Lock()
	if s.closed || s.unsubscribeQuery != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	unsubscribe := s.queryState.Subscribe(func(query Query) {
		s.mu.Lock()
		s.current = query
		s.mu.Unlock()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		unsubscribe()
		return
	}
	s.unsubscribeQuery = unsubscribe
}

// Close releases the query state subscription and every live search.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribeQuery
	s.unsubscribeQuery = nil
	active := make([]*Subscription, 0, len(s.active))
	for sub := range s.active {
		active = append(active, sub)
	}
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, sub := range active {
		sub.Unsubscribe()
	}
	s.cancel()
}

// CurrentQuery is the latest query seen on the query state.
func (s *Session) CurrentQuery() Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Results() *ResultSet {
	return s.results.Load()
}

func (s *Session) SideResults() *SideResult {
	return s.sideResults.Load()
}

func (s *Session) OnResults(fn func(*ResultSet)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResults = append(s.onResults, fn)
}

func (s *Session) OnSideResults(fn func(*SideResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSideResults = append(s.onSideResults, fn)
}

// SubmitCurrent submits the latest query seen on the query state.
func (s *Session) SubmitCurrent(ctx context.Context) (*Subscription, error) {
	return s.Submit(ctx, s.CurrentQuery())
}

// Submit runs query through the configured strategy and, in parallel, through
// the side channel. At most one terminal action fires for the returned
// subscription, and the stream is released on every exit path. The side
// channel call is made even when the strategy rejects the request; the
// returned *SubmitError then reports when it is done.
func (s *Session) Submit(ctx context.Context, query Query) (*Subscription, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	index, err := s.indices.DefaultIndex(ctx)
	if err != nil {
		s.logger.Error("could not resolve default index", "err", err.Error())
		s.warn(err)
		return nil, fmt.Errorf("could not resolve default index: %w", err)
	}

	request := BuildRequest(index, query, s.options)
	sideDone := make(chan struct{})
	go s.runSideChannel(request.Params, sideDone)

	searcher, err := s.strategies.Get(s.options.Strategy)
	if err != nil {
		s.warn(err)
		return nil, &SubmitError{Err: err, sideDone: sideDone}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := searcher.Search(streamCtx, request, search.Options{Strategy: s.options.Strategy})
	if err != nil {
		cancel()
		s.logger.Error("could not submit search", "index", index, "err", err.Error())
		s.warn(err)
		return nil, &SubmitError{Err: err, sideDone: sideDone}
	}

	sub := &Subscription{
		session:  s,
		cancel:   cancel,
		done:     make(chan struct{}),
		sideDone: sideDone,
	}
	if canceller, ok := searcher.(search.Canceller); ok {
		sub.canceller = canceller
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	s.active[sub] = struct{}{}
	s.mu.Unlock()

	go sub.observe(streamCtx, stream)

	return sub, nil
}

// SubmitError is returned when the strategy could not start the search. The
// side channel request was sent regardless.
type SubmitError struct {
	Err      error
	sideDone chan struct{}
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("could not submit search: %s", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// SideDone is closed once the side channel call returned.
func (e *SubmitError) SideDone() <-chan struct{} {
	return e.sideDone
}

func (s *Session) forget(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, sub)
}

// Active reports how many submitted searches still hold their stream.
func (s *Session) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Session) succeed(outcome search.Succeeded) {
	documents := make([]domain.Document, 0, len(outcome.Raw.Hits.Hits))
	for _, hit := range outcome.Raw.Hits.Hits {
		var record domain.Record
		if err := json.Unmarshal(hit.Source, &record); err != nil {
			s.logger.Warn("skipping hit with unreadable source", "id", hit.ID, "err", err.Error())
			continue
		}
		documents = append(documents, domain.FromRecord(hit.ID, record))
	}

	resultSet := &ResultSet{
		Documents:  documents,
		Total:      outcome.Raw.Hits.Total,
		Satisfied:  outcome.Satisfied,
		ReceivedAt: time.Now(),
	}
	if value, ok := outcome.Raw.AggregationValue(AverageChargesAggregation); ok {
		resultSet.Aggregate = &value
	}
	s.results.Store(resultSet)

	s.mu.Lock()
	listeners := append([]func(*ResultSet){}, s.onResults...)
	s.mu.Unlock()
	for _, listener := range listeners {
		listener(resultSet)
	}

	s.notifier.Notify(notify.Toast{
		Kind:  notify.KindSuccess,
		Title: TitleQueryResult,
		Text:  successText(resultSet),
	})
}

func successText(resultSet *ResultSet) string {
	aggregate := "unknown"
	if resultSet.Aggregate != nil {
		aggregate = strconv.FormatFloat(*resultSet.Aggregate, 'f', 2, 64)
	}
	return fmt.Sprintf("Searched %d documents. Average call charges is %s. Satisfied: %t", resultSet.Total, aggregate, resultSet.Satisfied)
}

func (s *Session) warn(err error) {
	toast := notify.Toast{Kind: notify.KindWarning, Title: TextError}
	if err != nil {
		toast.Text = err.Error()
	}
	s.notifier.Notify(toast)
}

func (s *Session) runSideChannel(params search.Params, done chan struct{}) {
	defer close(done)
	if s.sideChannel == nil {
		return
	}

	result, err := s.sideChannel.SuspectList(s.ctx, params)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Error("side channel request failed", "index", params.Index, "err", err.Error())
		s.notifier.Notify(notify.Toast{Kind: notify.KindDanger, Title: TitleQueryResult, Text: TextBackendError})
		return
	}

	s.sideResults.Store(result)
	s.mu.Lock()
	listeners := append([]func(*SideResult){}, s.onSideResults...)
	s.mu.Unlock()
	for _, listener := range listeners {
		listener(result)
	}
}

// Subscription is the consumer side of one submitted search.
type Subscription struct {
	session   *Session
	cancel    context.CancelFunc
	canceller search.Canceller
	once      sync.Once
	done      chan struct{}
	sideDone  chan struct{}

	mu      sync.Mutex
	id      string
	outcome search.Outcome
	// cancelPending is set when the subscriber left before the search had an id.
	cancelPending bool
}

// Done is closed once the stream is released.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// SideDone is closed once the side channel call returned.
func (sub *Subscription) SideDone() <-chan struct{} {
	return sub.sideDone
}

// ID is the search id, known after the first snapshot.
func (sub *Subscription) ID() string {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.id
}

// Outcome is the terminal outcome acted upon, nil until there is one.
func (sub *Subscription) Outcome() search.Outcome {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.outcome
}

// Unsubscribe stops listening and asks the strategy to cancel the search
// when it has not reached a terminal snapshot yet.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(sub.unsubscribe)
}

// unsubscribe runs at most once, instead of a terminal action. Without a
// search id yet the stream stays open until the first snapshot names one, or
// until cancelSearchTimeout passes.
func (sub *Subscription) unsubscribe() {
	if sub.canceller == nil {
		sub.cancel()
		sub.release()
		return
	}

	sub.mu.Lock()
	id := sub.id
	if id == "" {
		sub.cancelPending = true
	}
	sub.mu.Unlock()

	if id == "" {
		time.AfterFunc(cancelSearchTimeout, sub.cancel)
		sub.release()
		return
	}

	sub.cancel()
	sub.cancelSearch(id)
	sub.release()
}

func (sub *Subscription) cancelSearch(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelSearchTimeout)
	defer cancel()
	if err := sub.canceller.Cancel(ctx, id); err != nil {
		sub.session.logger.Warn("could not cancel search", "id", id, "err", err.Error())
	}
}

func (sub *Subscription) release() {
	sub.session.forget(sub)
	close(sub.done)
}

func (sub *Subscription) observe(ctx context.Context, stream <-chan *search.Response) {
	for {
		var snapshot *search.Response
		var ok bool
		select {
		case snapshot, ok = <-stream:
		case <-ctx.Done():
			sub.once.Do(sub.unsubscribe)
			return
		}

		if !ok {
			sub.once.Do(func() {
				if ctx.Err() != nil {
					sub.unsubscribe()
					return
				}
				sub.cancel()
				sub.session.logger.Warn("search stream ended without a result", "id", sub.ID())
				sub.session.warn(nil)
				sub.release()
			})
			return
		}
		if snapshot == nil {
			continue
		}

		sub.mu.Lock()
		if sub.id == "" {
			sub.id = snapshot.ID
		}
		pending := sub.cancelPending && sub.id != ""
		if pending {
			sub.cancelPending = false
		}
		id := sub.id
		sub.mu.Unlock()

		outcome := search.Classify(snapshot)
		if pending {
			if !snapshot.IsTerminal() {
				sub.cancelSearch(id)
			}
			sub.cancel()
			return
		}
		if _, running := outcome.(search.Running); running {
			continue
		}

		sub.once.Do(func() {
			sub.mu.Lock()
			sub.outcome = outcome
			sub.mu.Unlock()

			switch o := outcome.(type) {
			case search.Succeeded:
				sub.session.succeed(o)
			case search.PartialFailed:
				sub.session.logger.Warn("search ended partial", "id", snapshot.ID, "reason", o.Reason)
				sub.session.warn(nil)
			}
			sub.cancel()
			sub.release()
		})
		return
	}
}
