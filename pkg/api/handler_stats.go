package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleStats implements GET /hydrochat/stats/ (spec 4.9, 6): the Metrics
// summary as JSON, behind the same bearer auth as converse.
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Summarize())
}
