package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/services/index"
	"github.com/meghashyamc/searchsync/validation"
)

type UpdateIndexRequest struct {
	FlushEachJob *bool `json:"flush_each_job"`
}

type UpdateIndexResponse struct {
	ID string `json:"id"`
}

type GetUpdateStatusRequest struct {
	ID string `uri:"id" validate:"required,uuid4"`
}

// Reopener reopens the read side of the search index so that it sees the latest flushed changes.
type Reopener interface {
	Reopen() error
}

func SetupIndex(router *gin.Engine, logger logger.Logger, service *index.Service, reopener Reopener, validator *validation.Validator, defaultFlushEachJob bool) {
	router.POST("/index/update", handleUpdateIndex(service, logger, defaultFlushEachJob))
	router.GET("/index/update/:id", handleGetUpdateStatus(service, logger, validator))
	router.POST("/index/reopen", handleReopen(reopener, logger))
}

func handleUpdateIndex(service *index.Service, logger logger.Logger, defaultFlushEachJob bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := UpdateIndexRequest{}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&request); err != nil {
				logger.Warn("could not extract expected parameters from update index request", "err", err.Error())
				c.Abort()
				writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
				return
			}
		}

		flushEachJob := defaultFlushEachJob
		if request.FlushEachJob != nil {
			flushEachJob = *request.FlushEachJob
		}

		requestID := uuid.New().String()
		if err := service.RequestUpdate(flushEachJob, requestID); err != nil {
			c.Abort()
			writeResponse(c, nil, statusForError(err), []string{err.Error()})
			return
		}

		writeResponse(c, UpdateIndexResponse{ID: requestID}, http.StatusAccepted, nil)
	}
}

func handleGetUpdateStatus(service *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := GetUpdateStatusRequest{}
		if err := c.ShouldBindUri(&request); err != nil {
			logger.Warn("could not extract request id", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request id"})
			return
		}

		if err := validator.Validate(request); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		status, err := service.GetStatus(request.ID)
		if err != nil {
			logger.Warn("could not get update status", "request_id", request.ID, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, statusForError(err), []string{err.Error()})
			return
		}

		writeResponse(c, status, http.StatusOK, nil)
	}
}

func handleReopen(reopener Reopener, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := reopener.Reopen(); err != nil {
			logger.Error("could not reopen search index", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, statusForError(err), []string{err.Error()})
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}
