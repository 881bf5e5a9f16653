package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meghashyamc/churnsearch/db/kvdb"
	"github.com/meghashyamc/churnsearch/db/searchdb"
	"github.com/meghashyamc/churnsearch/domain"
	"github.com/meghashyamc/churnsearch/logger"
)

// Indexer represents the search database operations needed for ingestion
type Indexer interface {
	BuildIndex(indexName string, documents []searchdb.Document) error
	DeleteDocuments(indexName string, documentIDs []string) error
}

const (
	ProgressStatusStep1    = 10
	ProgressStatusStep2    = 20
	ProgressStatusComplete = 100
	ProgressStatusFailed   = -1

	maxIngestTime = 30 * time.Minute
)

var ErrIngestInProgress = errors.New("ingestion already in progress")

type Service struct {
	logger        logger.Logger
	indexer       Indexer
	metadataStore kvdb.DB
	ingestC       chan ingestRequest
}

type ingestRequest struct {
	indexName string
	records   []domain.Record
	replace   bool
	requestID string
}

func New(ctx context.Context, logger logger.Logger, indexer Indexer, metadataStore kvdb.DB) *Service {
	ingestService := &Service{
		logger:        logger,
		indexer:       indexer,
		metadataStore: metadataStore,
		ingestC:       make(chan ingestRequest, 1),
	}

	go ingestService.run(ctx)
	return ingestService
}

// Ingest queues records for indexing. One request may wait while another runs;
// anything beyond that is rejected. With replace set, documents previously
// ingested into the index and missing from records are removed.
func (s *Service) Ingest(indexName string, records []domain.Record, replace bool, requestID string) error {

	s.setRequestStatus(requestID, 0)

	select {
	// This leads to s.ingest being called
	case s.ingestC <- ingestRequest{indexName: indexName, records: records, replace: replace, requestID: requestID}:
		return nil
	default:
		s.logger.Warn("request to ingest while ingestion is already in progress", "request_id", requestID)
		s.setRequestStatus(requestID, ProgressStatusFailed)
		return ErrIngestInProgress
	}
}

// GetStatus retrieves the progress of an ingestion request
func (s *Service) GetStatus(requestID string) (int, error) {
	value, err := s.metadataStore.Get(kvdb.IngestBucket, requestID)
	if err != nil {
		return 0, fmt.Errorf("request not found: %w", err)
	}

	status, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid status value: %w", err)
	}

	return status, nil
}

func (s *Service) run(ctx context.Context) {

	for {
		select {
		case req := <-s.ingestC:
			ingestCtx, cancel := context.WithTimeout(ctx, maxIngestTime)
			s.ingest(ingestCtx, req)
			cancel()
		case <-ctx.Done():
			s.logger.Info("ingest service stopped", "reason", ctx.Err())
			return
		}
	}
}

func (s *Service) ingest(ctx context.Context, req ingestRequest) {
	s.logger.Info("ingesting records", "index", req.indexName, "records", len(req.records), "request_id", req.requestID)

	if req.replace {
		if err := s.removeMissingDocuments(req.indexName, req.records); err != nil {
			s.logger.Error("failed to ingest records", "request_id", req.requestID, "err", err.Error())
			s.setRequestStatus(req.requestID, ProgressStatusFailed)
			return
		}
	}

	// Update progress to ProgressStatusStep1% once stale documents are gone
	s.setRequestStatus(req.requestID, ProgressStatusStep1)

	documents := make([]searchdb.Document, 0, len(req.records))
	for _, record := range req.records {
		documents = append(documents, searchdb.Document{
			ID:      record.ID,
			Version: s.nextVersion(req.indexName, record.ID),
			Record:  record,
		})
	}

	// Update progress to ProgressStatusStep2% once every document has its version
	s.setRequestStatus(req.requestID, ProgressStatusStep2)

	for start := 0; start < len(documents); start += searchdb.IndexingBatchSize {
		if ctx.Err() != nil {
			s.logger.Error("ingestion cancelled", "request_id", req.requestID, "err", ctx.Err())
			s.setRequestStatus(req.requestID, ProgressStatusFailed)
			return
		}

		end := min(start+searchdb.IndexingBatchSize, len(documents))
		if err := s.indexer.BuildIndex(req.indexName, documents[start:end]); err != nil {
			s.logger.Error("failed to build index", "request_id", req.requestID, "err", err.Error())
			s.setRequestStatus(req.requestID, ProgressStatusFailed)
			return
		}
		for _, doc := range documents[start:end] {
			s.setVersion(req.indexName, doc.ID, doc.Version)
		}

		status := getProgressPercentage(end, len(documents), ProgressStatusStep2, ProgressStatusComplete)
		s.setRequestStatus(req.requestID, status)
	}

	// Update progress to 100% after every batch is indexed
	s.setRequestStatus(req.requestID, ProgressStatusComplete)
	s.logger.Info("finished ingesting records", "index", req.indexName, "count", len(documents))
}

func (s *Service) removeMissingDocuments(indexName string, records []domain.Record) error {
	keep := make(map[string]struct{}, len(records))
	for _, record := range records {
		keep[record.ID] = struct{}{}
	}

	allKeys, err := s.metadataStore.GetAllKeys(kvdb.VersionsBucket)
	if err != nil {
		s.logger.Error("failed to get all keys from database", "err", err.Error())
		return fmt.Errorf("failed to get all keys from database: %w", err)
	}

	prefix := indexName + "/"
	var missing []string
	for _, key := range allKeys {
		id, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		if _, ok := keep[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	s.logger.Info("removing documents missing from ingestion", "index", indexName, "count", len(missing))
	if err := s.indexer.DeleteDocuments(indexName, missing); err != nil {
		s.logger.Error("failed to delete documents from search index", "err", err.Error())
		return fmt.Errorf("failed to delete documents from search index: %w", err)
	}

	for _, id := range missing {
		if err := s.metadataStore.Delete(kvdb.VersionsBucket, versionKey(indexName, id)); err != nil {
			s.logger.Error("failed to delete document version", "index", indexName, "id", id, "err", err.Error())
		}
	}
	return nil
}

// nextVersion bumps the stored version of a document, starting at 1.
func (s *Service) nextVersion(indexName string, id string) int64 {
	value, err := s.metadataStore.Get(kvdb.VersionsBucket, versionKey(indexName, id))
	if err != nil {
		var notFoundErr *kvdb.NotFoundError
		if !errors.As(err, &notFoundErr) {
			s.logger.Error("failed to get document version", "index", indexName, "id", id, "err", err.Error())
		}
		return 1
	}

	version, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 1
	}
	return version + 1
}

func (s *Service) setVersion(indexName string, id string, version int64) {
	if err := s.metadataStore.Set(kvdb.VersionsBucket, versionKey(indexName, id), strconv.FormatInt(version, 10)); err != nil {
		s.logger.Error("failed to set document version", "index", indexName, "id", id, "err", err.Error())
	}
}

func versionKey(indexName string, id string) string {
	return indexName + "/" + id
}

func (s *Service) setRequestStatus(requestID string, status int) {
	if err := s.metadataStore.Set(kvdb.IngestBucket, requestID, strconv.Itoa(status)); err != nil {
		s.logger.Error("failed to update request status", "request_id", requestID, "progress", status, "err", err.Error())
	}
}

func getProgressPercentage(done int, total int, initial int, final int) int {
	if done == 0 || total == 0 {
		return initial
	}

	if done >= total {
		return final
	}

	// Calculate the percentage between initial and final
	progress := float64(done) / float64(total)
	result := float64(initial) + progress*float64(final-initial)

	return int(result)

}
