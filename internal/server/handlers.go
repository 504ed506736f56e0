package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type analyzeRequest struct {
	URL *string `json:"url"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"urls":   s.records.Len(),
	})
}

func (s *Server) handleURLs(c *gin.Context) {
	c.JSON(http.StatusOK, s.records.URLs)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'url' in request body"})
		return
	}

	url, record, ok := s.lookup(*req.URL)
	if !ok {
		slog.Debug("URL not found", "url", *req.URL, "records", s.records.Len())
		c.JSON(http.StatusNotFound, gin.H{"error": "No data found for this URL"})
		return
	}

	analysis, err := s.summarizer.Summarize(c.Request.Context(), record)
	if err != nil {
		slog.Error("Analysis failed", "url", url, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred during analysis: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

// lookup finds a record with or without a trailing slash on either side
func (s *Server) lookup(raw string) (string, []byte, bool) {
	url := strings.TrimRight(raw, "/")
	for _, key := range []string{url, url + "/"} {
		if record, ok := s.records.Records[key]; ok && len(record) > 0 && string(record) != "null" {
			return key, record, true
		}
	}
	return "", nil, false
}
