package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NERRecon/internal/infrastructure/search/opensearch"
)

// EntitySearcher queries exported entities.
type EntitySearcher interface {
	SearchEntities(ctx context.Context, q opensearch.EntityQuery) (*opensearch.EntitySearchResult, error)
}

// EntityHandler serves GET /entities over the search index.
type EntityHandler struct {
	searcher EntitySearcher
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(s EntitySearcher) *EntityHandler {
	return &EntityHandler{searcher: s}
}

// RegisterRoutes registers the search route on r.
func (h *EntityHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/entities", h.Search)
}

// EntitySearchResponse is one page of entities.
type EntitySearchResponse struct {
	Total    int                         `json:"total"`
	From     int                         `json:"from"`
	Entities []opensearch.EntityDocument `json:"entities"`
}

// Search handles GET /entities?run_id=&doc_id=&label=&location=&q=&from=&size=.
func (h *EntityHandler) Search(c *gin.Context) {
	q := opensearch.EntityQuery{
		RunID:    c.Query("run_id"),
		DocID:    c.Query("doc_id"),
		Label:    c.Query("label"),
		Location: c.Query("location"),
		Text:     c.Query("q"),
		From:     queryInt(c, "from", 0, 0),
		Size:     queryInt(c, "size", 100, opensearch.MaxPageSize),
	}
	res, err := h.searcher.SearchEntities(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	entities := res.Entities
	if entities == nil {
		entities = []opensearch.EntityDocument{}
	}
	c.JSON(http.StatusOK, EntitySearchResponse{Total: res.Total, From: q.From, Entities: entities})
}

//Personal.AI order the ending
