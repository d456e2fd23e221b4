package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-records/internal/models"
	"github.com/noah-isme/sma-records/internal/service"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
	"github.com/noah-isme/sma-records/pkg/response"
)

const defaultSearchLimit = 50

// SearchHandler exposes the record search endpoint.
type SearchHandler struct {
	search *service.SearchService
}

// NewSearchHandler constructs SearchHandler.
func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchHit struct {
	Kind   models.Kind   `json:"kind"`
	Entity models.Entity `json:"entity"`
}

// Search godoc
// @Summary Search records
// @Description Case-insensitive substring match on names and ids. Courses also match their instructor and student names.
// @Tags Search
// @Produce json
// @Param q query string true "Query"
// @Param limit query int false "Maximum hits"
// @Success 200 {object} response.Envelope
// @Router /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.FieldInvalid("limit", "must be a positive integer"))
			return
		}
		limit = parsed
	}

	hits := make([]searchHit, 0)
	truncated := false
	for e, err := range h.search.Search(c.Request.Context(), c.Query("q")) {
		if err != nil {
			response.Error(c, err)
			return
		}
		if len(hits) == limit {
			truncated = true
			break
		}
		hits = append(hits, searchHit{Kind: e.Kind(), Entity: e})
	}
	response.JSON(c, http.StatusOK, hits, map[string]interface{}{"count": len(hits), "truncated": truncated})
}
