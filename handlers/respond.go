package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/pi-pioneer-hub/apperr"
)

// respondError maps the error taxonomy onto HTTP statuses. Provider
// rejections keep their upstream status code and error_message so the
// caller sees the real reason, never a generic failure string.
func respondError(c *gin.Context, err error) {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
		return
	}

	var rej *apperr.UpstreamRejection
	if errors.As(err, &rej) {
		status := rej.StatusCode
		if status < 400 || status >= 500 {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": "payment provider rejected the request", "error_message": rej.ErrorMessage})
		return
	}

	var ce *apperr.ConflictError
	if errors.As(err, &ce) {
		c.JSON(http.StatusConflict, gin.H{"error": ce.Error()})
		return
	}

	var ue *apperr.UpstreamUnavailable
	if errors.As(err, &ue) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment provider unavailable, retry later"})
		return
	}

	var cfg *apperr.ConfigurationError
	if errors.As(err, &cfg) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": cfg.Error()})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
