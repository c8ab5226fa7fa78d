package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/peerlink/peerlink/pkg/domain"
	"github.com/peerlink/peerlink/pkg/logging"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "requestID"
)

// requestID adds a unique request ID to each request, keeping one sent by
// the client.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the request ID set by the middleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// recovery turns a handler panic into an internal error response.
// http.ErrAbortHandler is passed on so the server drops the connection.
func recovery(logger *logging.Logger, debugMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				logger.Debug("connection aborted", "path", c.Request.URL.Path, "requestID", GetRequestID(c))
				panic(r)
			}
			logger.Error("panic recovered", "path", c.Request.URL.Path, "panic", r, "stack", string(debug.Stack()))
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respondWithError(c, logger, domain.Internal("panic", fmt.Errorf("%v", r)), debugMode)
		}()
		c.Next()
	}
}

// accessLog writes one line per request once it has been served.
func accessLog(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		size := c.Writer.Size()
		if size < 0 {
			size = 0
		}
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", humanize.Bytes(uint64(size)),
			"duration", time.Since(start).Round(time.Microsecond),
			"requestID", GetRequestID(c),
		)
	}
}
