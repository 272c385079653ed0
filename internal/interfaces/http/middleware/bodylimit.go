package middleware

import (
	"fmt"
	"net/http"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BodyLimit returns a middleware that limits request body size
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			err := shared.Validation(shared.EntityNone, fmt.Sprintf("request body exceeds %d bytes", maxBytes)).
				WithDetail("max_bytes", maxBytes)
			_, body := dto.NewErrorResponse(err, CorrelationID(c))
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, body)
			return
		}

		// Streaming bodies without Content-Length are cut at maxBytes
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
