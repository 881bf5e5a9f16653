package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meghashyamc/churnsearch/domain"
	"github.com/meghashyamc/churnsearch/logger"
	"github.com/meghashyamc/churnsearch/services/ingest"
	"github.com/meghashyamc/churnsearch/validation"
)

// IngestRequest carries records inline or points at a record file or directory on the server.
type IngestRequest struct {
	Index   string          `json:"index" validate:"required,valid_index"`
	Path    string          `json:"path" validate:"valid_path"`
	Records []domain.Record `json:"records"`
	Replace bool            `json:"replace"`
}

type IngestResponse struct {
	ID string `json:"id"`
}

type IngestStatusResponse struct {
	ID       string `json:"id"`
	Progress int    `json:"progress"`
}

func SetupIngest(router *gin.Engine, logger logger.Logger, service *ingest.Service, validator *validation.Validator) {
	router.POST("/api/v1/ingest", handleIngest(service, logger, validator))
	router.GET("/api/v1/ingest/:id", handleGetIngestStatus(service, logger))
}

func handleIngest(service *ingest.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := IngestRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from ingest request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate ingest request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		if strings.ContainsAny(request.Index, "*,") {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{"records can only be ingested into a single named index"})
			return
		}

		records := request.Records
		if request.Path != "" {
			loaded, err := ingest.LoadRecordsFrom(request.Path)
			if err != nil {
				logger.Warn("could not load records", "path", request.Path, "err", err.Error())
				c.Abort()
				writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
				return
			}
			records = append(records, loaded...)
		}
		if len(records) == 0 {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{"no records to ingest"})
			return
		}

		for i := range records {
			if records[i].ID == "" {
				records[i].ID = uuid.New().String()
			}
		}

		requestID := uuid.New().String()
		if err := service.Ingest(request.Index, records, request.Replace, requestID); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ingest.ErrIngestInProgress) {
				status = http.StatusConflict
			}
			c.Abort()
			writeResponse(c, nil, status, []string{err.Error()})
			return
		}

		writeResponse(c, IngestResponse{ID: requestID}, http.StatusAccepted, nil)
	}
}

// handleGetIngestStatus answers 202 while the request is in progress and 200 once it completed.
func handleGetIngestStatus(service *ingest.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("id")
		if _, err := uuid.Parse(requestID); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{"invalid request id"})
			return
		}

		progress, err := service.GetStatus(requestID)
		if err != nil {
			logger.Warn("could not get ingest status", "request_id", requestID, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotFound, []string{err.Error()})
			return
		}

		status := IngestStatusResponse{ID: requestID, Progress: progress}
		switch progress {
		case ingest.ProgressStatusComplete:
			writeResponse(c, status, http.StatusOK, nil)
		case ingest.ProgressStatusFailed:
			writeResponse(c, status, http.StatusInternalServerError, []string{"ingestion failed"})
		default:
			writeResponse(c, status, http.StatusAccepted, nil)
		}
	}
}
