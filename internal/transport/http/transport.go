package http

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"mini-rag/internal/rag"
)

var errTooLarge = errors.New("uploaded file is too large")

// statusFor maps service errors to a status code. Errors caused by the
// upload or the question are reported as 422 so the client can retry.
func statusFor(err error) int {
	if rag.IsRecoverable(err) {
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

func abort(c *gin.Context, status int, err error) {
	c.String(status, err.Error())
	c.Error(err)
	c.Abort()
}

func IngestHandler(endpoint endpoint.Endpoint, maxUploadBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxUploadBytes {
			abort(c, http.StatusRequestEntityTooLarge, errTooLarge)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

		header, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				abort(c, http.StatusRequestEntityTooLarge, err)
				return
			}

			abort(c, http.StatusBadRequest, err)
			return
		}

		if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
			abort(c, http.StatusUnsupportedMediaType, rag.ErrNotPDF)
			return
		}

		f, err := header.Open()
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		req := rag.IngestRequest{
			Filename: filepath.Base(header.Filename),
			Data:     data,
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, statusFor(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func AskHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rag.AskRequest
		if err := c.ShouldBind(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, statusFor(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}
