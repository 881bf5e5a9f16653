package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/churnsearch/db/searchdb"
	"github.com/meghashyamc/churnsearch/logger"
	"github.com/meghashyamc/churnsearch/services/settings"
	"github.com/meghashyamc/churnsearch/validation"
)

// SettingRequest sets a value. The only setting names an index, so values are validated as one.
type SettingRequest struct {
	Value string `json:"value" validate:"valid_index"`
}

type IndexDetails struct {
	Name      string `json:"name"`
	Documents uint64 `json:"documents"`
}

func SetupSettings(router *gin.Engine, logger logger.Logger, service *settings.Service, searchDB searchdb.DB, validator *validation.Validator) {
	router.GET("/api/v1/settings", handleGetSettings(service))
	router.GET("/api/v1/settings/default_index", handleGetDefaultIndex(service, searchDB))
	router.PUT("/api/v1/settings/:key", handleSetSetting(service, logger, validator))
	router.GET("/api/v1/indices", handleGetIndices(searchDB, logger))
}

func handleGetSettings(service *settings.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeResponse(c, service.All(), http.StatusOK, nil)
	}
}

func handleGetDefaultIndex(service *settings.Service, searchDB searchdb.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeResponse(c, service.ResolveDefaultIndex(searchDB.HasIndex), http.StatusOK, nil)
	}
}

func handleSetSetting(service *settings.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		request := SettingRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from setting request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		if err := service.Set(key, request.Value); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, settings.ErrUnknownSetting) {
				status = http.StatusNotFound
			}
			logger.Warn("could not update setting", "key", key, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, status, []string{err.Error()})
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

func handleGetIndices(searchDB searchdb.DB, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		names := searchDB.Indices()
		sort.Strings(names)

		indices := make([]IndexDetails, 0, len(names))
		for _, name := range names {
			count, err := searchDB.GetDocCount(name)
			if err != nil {
				logger.Error("could not count documents", "index", name, "err", err.Error())
				c.Abort()
				writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
				return
			}
			indices = append(indices, IndexDetails{Name: name, Documents: count})
		}

		writeResponse(c, indices, http.StatusOK, nil)
	}
}
