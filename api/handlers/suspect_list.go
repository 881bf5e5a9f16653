package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/churnsearch/logger"
	"github.com/meghashyamc/churnsearch/services/search"
	"github.com/meghashyamc/churnsearch/validation"
)

// ResponseTimeFormat is ISO-8601 in UTC with millisecond precision.
const ResponseTimeFormat = "2006-01-02T15:04:05.000Z07:00"

var errNotAnObject = errors.New("request body is not an object")

// Executor runs one search and waits for the whole answer.
type Executor interface {
	Execute(ctx context.Context, params search.Params) (*search.RawResponse, error)
}

// SuspectListRequest mirrors search.Params. Body may also arrive as a JSON
// string holding the structured query.
type SuspectListRequest struct {
	Index   string          `json:"index" validate:"valid_index"`
	Size    int             `json:"size" validate:"min=0,max=10000"`
	Version bool            `json:"version"`
	Body    json.RawMessage `json:"body"`
}

type SuspectListResponse struct {
	ResponseTime string             `json:"response_time"`
	RawData      search.RawResponse `json:"raw_data"`
}

func SetupSuspectList(router *gin.Engine, logger logger.Logger, executor Executor, defaultIndex func() string, validator *validation.Validator) {
	router.POST("/api/v1/suspect_list", handleSuspectList(executor, defaultIndex, logger, validator))
}

// handleSuspectList answers failures with a bare status: 400 when the body is
// not an object or fails validation, 500 when the search itself fails.
func handleSuspectList(executor Executor, defaultIndex func() string, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawBody, err := c.GetRawData()
		if err != nil {
			logger.Warn("could not read suspect list request body", "err", err.Error())
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		request, err := decodeSuspectListRequest(rawBody)
		if err != nil {
			logger.Warn("could not decode suspect list request", "err", err.Error())
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate suspect list request", "err", err.Error())
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		params, err := request.toParams()
		if err != nil {
			logger.Warn("could not read suspect list query", "err", err.Error())
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		if params.Index == "" {
			params.Index = defaultIndex()
		}

		raw, err := executor.Execute(c.Request.Context(), params)
		if err != nil {
			logger.Error("suspect list search failed", "index", params.Index, "err", err.Error())
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.JSON(http.StatusOK, SuspectListResponse{
			ResponseTime: time.Now().UTC().Format(ResponseTimeFormat),
			RawData:      *raw,
		})
	}
}

func decodeSuspectListRequest(rawBody []byte) (SuspectListRequest, error) {
	request := SuspectListRequest{}
	objectBytes, err := unwrapJSONObject(rawBody)
	if err != nil {
		return request, err
	}
	if err := json.Unmarshal(objectBytes, &request); err != nil {
		return request, err
	}
	return request, nil
}

func (r SuspectListRequest) toParams() (search.Params, error) {
	params := search.Params{Index: r.Index, Size: r.Size, Version: r.Version}
	if len(r.Body) == 0 || bytes.Equal(bytes.TrimSpace(r.Body), []byte("null")) {
		return params, nil
	}

	bodyBytes, err := unwrapJSONObject(r.Body)
	if err != nil {
		return params, fmt.Errorf("body: %w", err)
	}
	if err := json.Unmarshal(bodyBytes, &params.Body); err != nil {
		return params, fmt.Errorf("body: %w", err)
	}
	return params, nil
}

// unwrapJSONObject accepts a JSON object or a JSON string whose content is one.
func unwrapJSONObject(raw []byte) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		raw = bytes.TrimSpace([]byte(inner))
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, errNotAnObject
	}
	return raw, nil
}
