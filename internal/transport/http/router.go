package http

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"

	"mini-rag/internal/rag"
)

//go:embed index.html
var indexHTML []byte

// DefaultMaxUploadBytes caps the size of an uploaded PDF.
const DefaultMaxUploadBytes int64 = 32 << 20

func AddRouters(r *gin.Engine, endpoints rag.EndpointSet, maxUploadBytes int64) {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// RESTful API routes
	api := r.Group("/api")
	{
		api.POST("/documents", IngestHandler(endpoints.Ingest, maxUploadBytes))
		api.POST("/ask", AskHandler(endpoints.Ask))
	}
}
