package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/services/search"
	"github.com/meghashyamc/searchsync/validation"
)

const defaultResultsPerPage = 20

const HeaderPaginationTotalCount = "X-Pagination-Total-Count"

type SearchRequest struct {
	Types    string `form:"types" validate:"valid_entity_types"`
	Query    string `form:"query" validate:"omitempty,valid_query,max=1000"`
	Sort     string `form:"sort" validate:"valid_name"`
	Desc     bool   `form:"desc"`
	Collapse string `form:"collapse" validate:"valid_name"`
	PerPage  int    `form:"per_page" validate:"min=0,max=100"`
	Page     int    `form:"page" validate:"min=0"`
}

type RelatedSearchRequest struct {
	EntityType string `uri:"type" validate:"required,valid_name"`
	ID         uint64 `uri:"id" validate:"gt=0"`
	Relation   string `uri:"relation" validate:"required,valid_name"`
}

func (r *SearchRequest) setDefaults() {
	if r.PerPage == 0 {
		r.PerPage = defaultResultsPerPage
	}

	if r.Page == 0 {
		r.Page = 1
	}
}

func (r *SearchRequest) querySpec() search.QuerySpec {
	var entityTypes []string
	for _, entityType := range strings.Split(r.Types, ",") {
		if entityType = strings.TrimSpace(entityType); entityType != "" {
			entityTypes = append(entityTypes, entityType)
		}
	}

	return search.QuerySpec{
		EntityTypes:    entityTypes,
		Query:          r.Query,
		Offset:         (r.Page - 1) * r.PerPage,
		Limit:          r.PerPage,
		SortBy:         r.Sort,
		SortDescending: r.Desc,
		CollapseBy:     r.Collapse,
	}
}

type SearchResponse struct {
	Results            []search.Result `json:"results"`
	Description        string          `json:"description"`
	WordsToHighlight   []string        `json:"words_to_highlight"`
	SpellingCorrection string          `json:"spelling_correction,omitempty"`
	PageDetails        Pagination      `json:"page_details"`
}

func SetupSearch(router *gin.Engine, logger logger.Logger, engine *search.Engine, validator *validation.Validator) {
	router.GET("/search", handleSearch(engine, logger, validator))
	router.GET("/records/:type/:id/related/:relation", handleRelatedSearch(engine, logger, validator))
}

func handleSearch(engine *search.Engine, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request query parameters"})
			return
		}
		request.setDefaults()

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		spec := request.querySpec()
		respond(c, logger, spec, func(ctx context.Context) (*search.Query, error) {
			return engine.Execute(ctx, spec)
		})
	}
}

func handleRelatedSearch(engine *search.Engine, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		related := RelatedSearchRequest{}
		if err := c.ShouldBindUri(&related); err != nil {
			logger.Warn("could not extract expected params from related search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request path parameters"})
			return
		}
		request := SearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from related search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request query parameters"})
			return
		}
		request.setDefaults()
		// the relation decides the searched type
		request.Types = related.EntityType

		if err := validator.Validate(related); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}
		if err := validator.Validate(request); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		spec := request.querySpec()
		respond(c, logger, spec, func(ctx context.Context) (*search.Query, error) {
			return engine.ExecuteRelated(ctx, related.EntityType, related.Relation, related.ID, spec)
		})
	}
}

func respond(c *gin.Context, logger logger.Logger, spec search.QuerySpec, execute func(ctx context.Context) (*search.Query, error)) {
	ctx := c.Request.Context()

	query, err := execute(ctx)
	if err != nil {
		logger.Warn("search failed", "query", spec.Query, "err", err.Error())
		c.Abort()
		writeResponse(c, nil, statusForError(err), []string{err.Error()})
		return
	}

	results, err := query.Results(ctx)
	if err != nil {
		logger.Error("could not load search results", "query", spec.Query, "err", err.Error())
		c.Abort()
		writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	searchResponse := SearchResponse{
		Results:          results,
		Description:      query.Description(),
		WordsToHighlight: query.WordsToHighlight(),
		PageDetails:      calculatePagination(query.MatchesEstimated(), spec.Limit, spec.Offset),
	}
	if query.MatchesEstimated() == 0 {
		if searchResponse.SpellingCorrection, err = query.SpellingCorrection(); err != nil {
			logger.Warn("could not suggest a spelling correction", "query", spec.Query, "err", err.Error())
		}
	}

	c.Header(HeaderPaginationTotalCount, strconv.Itoa(query.MatchesEstimated()))
	writeResponse(c, searchResponse, http.StatusOK, nil)
}
