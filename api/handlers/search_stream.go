package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/churnsearch/logger"
	"github.com/meghashyamc/churnsearch/services/engine"
	"github.com/meghashyamc/churnsearch/services/search"
	"github.com/meghashyamc/churnsearch/validation"
)

const ContentTypeNDJSON = "application/x-ndjson"

// StrategySource looks up search strategies by name.
type StrategySource interface {
	Get(name string) (search.Searcher, error)
}

type searchStreamRequest struct {
	Strategy string `json:"strategy" validate:"valid_strategy"`
	Index    string `json:"index" validate:"required,valid_index"`
	Size     int    `json:"size" validate:"min=0,max=10000"`
}

func SetupSearchStream(router *gin.Engine, logger logger.Logger, strategies StrategySource, validator *validation.Validator) {
	router.POST("/internal/search/:strategy", handleSearchStream(strategies, logger, validator))
	router.DELETE("/internal/search/:strategy/:id", handleCancelSearch(strategies, logger, validator))
}

// handleSearchStream writes one JSON snapshot per line until the search stops
// or the client goes away.
func handleSearchStream(strategies StrategySource, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		strategy := c.Param("strategy")
		request := search.Request{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(searchStreamRequest{Strategy: strategy, Index: request.Params.Index, Size: request.Params.Size}); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		searcher, err := strategies.Get(strategy)
		if err != nil {
			logger.Warn("unknown search strategy", "strategy", strategy)
			c.Abort()
			writeResponse(c, nil, http.StatusNotFound, []string{err.Error()})
			return
		}

		stream, err := searcher.Search(c.Request.Context(), &request, search.Options{Strategy: strategy})
		if err != nil {
			logger.Warn("could not submit search", "strategy", strategy, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, searchErrorStatus(err), []string{err.Error()})
			return
		}

		c.Header("Content-Type", ContentTypeNDJSON)
		c.Header("Cache-Control", "no-cache")
		c.Status(http.StatusOK)
		encoder := json.NewEncoder(c.Writer)
		for response := range stream {
			if err := encoder.Encode(response); err != nil {
				logger.Warn("could not write search snapshot", "err", err.Error())
				return
			}
			c.Writer.Flush()
			if response.IsTerminal() {
				return
			}
		}
	}
}

func handleCancelSearch(strategies StrategySource, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		strategy, id := c.Param("strategy"), c.Param("id")
		if err := validator.Var(strategy, "valid_strategy"); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		searcher, err := strategies.Get(strategy)
		if err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotFound, []string{err.Error()})
			return
		}

		canceller, ok := searcher.(search.Canceller)
		if !ok {
			writeResponse(c, nil, http.StatusNoContent, nil)
			return
		}

		if err := canceller.Cancel(c.Request.Context(), id); err != nil {
			logger.Warn("could not cancel search", "id", id, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, searchErrorStatus(err), []string{err.Error()})
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

func searchErrorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrSearchNotFound), errors.Is(err, search.ErrUnknownStrategy):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidRequest):
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}
