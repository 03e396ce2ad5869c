package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/searchsync/db/recorddb"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/registry"
	"github.com/meghashyamc/searchsync/validation"
)

type RecordPath struct {
	EntityType string `uri:"type" validate:"required,valid_name"`
	ID         uint64 `uri:"id" validate:"gt=0"`
}

type SaveRecordRequest struct {
	Fields map[string]any `json:"fields" validate:"required"`
}

// RecordStore is the write side of the record store. Every write queues an index job.
type RecordStore interface {
	Save(record *recorddb.Record) error
	Destroy(entityType string, id uint64) error
}

func SetupRecords(router *gin.Engine, logger logger.Logger, reg *registry.Registry, records RecordStore, validator *validation.Validator) {
	router.PUT("/records/:type/:id", handleSaveRecord(reg, records, logger, validator))
	router.DELETE("/records/:type/:id", handleDestroyRecord(reg, records, logger, validator))
}

func handleSaveRecord(reg *registry.Registry, records RecordStore, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := bindRecordPath(c, reg, logger, validator)
		if !ok {
			return
		}

		request := SaveRecordRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected parameters from save record request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}
		if err := validator.Validate(request); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		record := &recorddb.Record{ID: path.ID, EntityType: path.EntityType, Fields: request.Fields}
		if err := records.Save(record); err != nil {
			logger.Error("could not save record", "entity_type", path.EntityType, "entity_id", path.ID, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, record, http.StatusOK, nil)
	}
}

func handleDestroyRecord(reg *registry.Registry, records RecordStore, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := bindRecordPath(c, reg, logger, validator)
		if !ok {
			return
		}

		if err := records.Destroy(path.EntityType, path.ID); err != nil {
			logger.Error("could not destroy record", "entity_type", path.EntityType, "entity_id", path.ID, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

func bindRecordPath(c *gin.Context, reg *registry.Registry, logger logger.Logger, validator *validation.Validator) (RecordPath, bool) {
	path := RecordPath{}
	if err := c.ShouldBindUri(&path); err != nil {
		logger.Warn("could not extract record path", "err", err.Error())
		c.Abort()
		writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request path parameters"})
		return path, false
	}

	if err := validator.Validate(path); err != nil {
		c.Abort()
		writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
		return path, false
	}

	if _, err := reg.Entity(path.EntityType); err != nil {
		c.Abort()
		writeResponse(c, nil, http.StatusNotFound, []string{err.Error()})
		return path, false
	}

	return path, true
}
