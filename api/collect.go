package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/better-analytics/better-analytics-go/analytics"
	"github.com/better-analytics/better-analytics-go/ingest"
)

// collectRequest is the collection endpoint body: either a single event
// envelope or a batch wrapper `{_batch: true, events: [...]}`.
type collectRequest struct {
	analytics.Event
	IsBatch bool               `json:"_batch"`
	Events  []*analytics.Event `json:"events"`
}

// collect receives events from the SDK variants.
func (s *Server) collect(c *gin.Context) {
	var req collectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	reqCtx := ingest.RequestContext{
		Headers:   c.Request.Header,
		Origin:    c.GetHeader("Origin"),
		Referer:   c.GetHeader("Referer"),
		UserAgent: c.Request.UserAgent(),
	}

	if req.Site != "" {
		c.Set(ctxSiteKey, req.Site)
	}

	if req.IsBatch {
		c.Set(ctxEventCountKey, len(req.Events))
		accepted, err := s.processor.ProcessBatch(c.Request.Context(), req.Events, reqCtx)
		if err != nil {
			log.Error().Err(err).Msg("failed to process event batch")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store events"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "processed": len(accepted)})
		return
	}

	c.Set(ctxEventCountKey, 1)
	record, err := s.processor.Process(c.Request.Context(), &req.Event, reqCtx)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrInvalidEvent):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ingest.ErrDomainNotAllowed):
			c.JSON(http.StatusForbidden, gin.H{"error": "domain not allowed"})
		default:
			log.Error().Err(err).Msg("failed to process event")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store event"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": record.ID})
}
