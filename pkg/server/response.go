package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peerlink/peerlink/pkg/domain"
	"github.com/peerlink/peerlink/pkg/logging"
)

// ErrorResponse represents the API error response format.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
	Meta    *MetaData    `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    domain.AppErrorCode    `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MetaData contains request metadata.
type MetaData struct {
	RequestID string    `json:"requestID"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
	Method    string    `json:"method,omitempty"`
}

// UploadResponse is returned for a stored upload. Port mirrors Code for
// clients that still read the older field name.
type UploadResponse struct {
	Code      int       `json:"code"`
	Port      int       `json:"port"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HealthResponse reports liveness and the live session count.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// respondWithError renders err as the JSON error envelope and aborts the
// chain. Internal faults are logged in full and shown generically.
func respondWithError(c *gin.Context, logger *logging.Logger, err error, debugMode bool) {
	appErr := domain.AsAppError(err)

	detail := &ErrorDetail{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if errors.Is(appErr, domain.ErrInternal) {
		logger.Error("request failed", "path", c.Request.URL.Path, "requestID", GetRequestID(c), "error", err)
		detail.Message = "Internal server error"
		detail.Details = nil
		if debugMode && appErr.Err != nil {
			detail.Details = map[string]interface{}{"error": appErr.Err.Error()}
		}
	}
	if len(detail.Details) == 0 {
		detail.Details = nil
	}

	status := appErr.StatusCode
	if status == 0 {
		status = domain.GetHTTPStatus(appErr.Code)
	}
	if status == http.StatusRequestEntityTooLarge {
		c.Header("Connection", "close")
	}

	c.AbortWithStatusJSON(status, &ErrorResponse{
		Success: false,
		Error:   detail,
		Meta: &MetaData{
			RequestID: GetRequestID(c),
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
			Method:    c.Request.Method,
		},
	})
}
