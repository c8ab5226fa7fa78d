package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/peerlink/peerlink/pkg/codegen"
	"github.com/peerlink/peerlink/pkg/domain"
)

func (s *Server) handleUpload(c *gin.Context) {
	limit := s.svc.Options().MaxRequestSize
	if c.Request.ContentLength > limit {
		s.logger.With("requestID", GetRequestID(c)).Warn("rejected oversize upload", "contentLength", c.Request.ContentLength, "limit", limit)
		respondWithError(c, s.logger, domain.TooLarge(limit), s.cfg.Debug)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	mr, err := c.Request.MultipartReader()
	if err != nil {
		respondWithError(c, s.logger, domain.BadRequest("expected a multipart/form-data body").WithError(err), s.cfg.Debug)
		return
	}

	sess, err := s.svc.IngestMultipart(c.Request.Context(), mr)
	if err != nil {
		respondWithError(c, s.logger, err, s.cfg.Debug)
		return
	}

	c.JSON(http.StatusOK, &UploadResponse{
		Code:      sess.Code,
		Port:      sess.Code,
		Filename:  sess.OriginalName,
		Size:      sess.Size,
		ExpiresAt: sess.CreatedAt.Add(s.svc.Options().TTL),
	})
}

func (s *Server) handleDownload(c *gin.Context) {
	code, ok := parseCode(c.Param("code"))
	if !ok {
		respondWithError(c, s.logger, domain.NotFound(), s.cfg.Debug)
		return
	}

	ctx := c.Request.Context()
	dl, err := s.svc.Retrieve(ctx, code)
	if err != nil {
		respondWithError(c, s.logger, err, s.cfg.Debug)
		return
	}
	defer dl.Close()

	c.Header("Content-Type", dl.ContentType)
	c.Header("Content-Disposition", ContentDisposition(dl.Filename()))
	c.Header("Content-Length", strconv.FormatInt(dl.Size, 10))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)

	if err := dl.Send(ctx, c.Writer); err != nil {
		if !errors.Is(err, domain.ErrTransferAborted) {
			s.logger.With("requestID", GetRequestID(c)).Error("download failed", "code", code, "error", err)
		}
		// Headers may already be on the wire. Dropping the connection keeps a
		// partial body from reading as a complete download.
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, &HealthResponse{
		Status:   "ok",
		Sessions: s.svc.Sessions().Len(),
	})
}

// parseCode accepts only plain decimal numbers no longer than the largest
// code. Range checks are left to the relay.
func parseCode(raw string) (int, bool) {
	if raw == "" || len(raw) > len(strconv.Itoa(codegen.MaxCode)) {
		return 0, false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, false
		}
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return code, true
}
