package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comfydata276/reviewforge/pkg/ingest"
	"github.com/comfydata276/reviewforge/pkg/store"
)

// writeError maps a domain error to an HTTP status/body. Anything
// unrecognized is logged and returned as 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ingest.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	default:
		slog.Error("unexpected api error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
