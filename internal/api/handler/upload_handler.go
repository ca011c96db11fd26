package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Somerville-Events/somerville.events-sub000/internal/service"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/response"
)

const UploadSuccessPath = "/upload-success"

type uploadForm struct {
	IdempotencyKey string                `form:"idempotency_key" binding:"required,uuid"`
	Image          *multipart.FileHeader `form:"image" binding:"required"`
}

var successPage = []byte(`<!doctype html>
<html><head><meta charset="utf-8"><title>Thanks!</title></head>
<body><h1>Thanks!</h1><p>Your flyer was received and will show up on the calendar once it has been read.</p>
<p><a href="/upload">Upload another</a></p></body></html>
`)

// UploadKey issues a fresh idempotency key for an upload form.
// @Summary new idempotency key
// @Tags upload
// @Produce json
// @Success 200 {object} response.Response{data=map[string]string}
// @Router /upload/key [get]
func (h *Handler) UploadKey(c *gin.Context) {
	response.Success(c, gin.H{"idempotency_key": uuid.NewString()})
}

// Upload accepts a flyer image and queues it for extraction.
// @Summary upload flyer
// @Tags upload
// @Accept multipart/form-data
// @Param image formData file true "flyer image (jpeg, png, gif, webp)"
// @Param idempotency_key formData string true "UUID from /upload/key"
// @Success 303
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 413 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /upload [post]
func (h *Handler) Upload(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes {
		response.PayloadTooLarge(c)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(c)
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	data, err := readPart(form.Image)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err = h.uploads.Submit(c.Request.Context(), form.IdempotencyKey, data)
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, UploadSuccessPath)
	case errors.Is(err, service.ErrDuplicateSubmission):
		response.Conflict(c, "this upload was already submitted")
	case errors.Is(err, service.ErrUnsupportedImage), errors.Is(err, service.ErrInvalidKey):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrQueueClosed):
		response.ServiceUnavailable(c, "too many uploads in progress, try again shortly")
	default:
		response.InternalError(c, err)
	}
}

// UploadSuccess is where accepted uploads are redirected.
func (h *Handler) UploadSuccess(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", successPage)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
