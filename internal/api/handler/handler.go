package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/Somerville-Events/somerville.events-sub000/internal/activitypub"
	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/response"
)

// InboxReceiver consumes one inbound federation payload.
type InboxReceiver interface {
	Receive(ctx context.Context, body []byte) error
}

// Uploader accepts a flyer for background processing.
type Uploader interface {
	Submit(ctx context.Context, key string, data []byte) error
	QueueLen() int
}

type Deps struct {
	Repo           *repository.Repository
	Discovery      *activitypub.Discovery
	Outbox         *activitypub.Outbox
	Mapper         *activitypub.Mapper
	Inbox          InboxReceiver
	Uploads        Uploader
	MaxUploadBytes int64
}

type Handler struct {
	repo           *repository.Repository
	discovery      *activitypub.Discovery
	outbox         *activitypub.Outbox
	mapper         *activitypub.Mapper
	inbox          InboxReceiver
	uploads        Uploader
	maxUploadBytes int64
}

func NewHandler(d Deps) *Handler {
	maxBytes := d.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &Handler{
		repo:           d.Repo,
		discovery:      d.Discovery,
		outbox:         d.Outbox,
		mapper:         d.Mapper,
		inbox:          d.Inbox,
		uploads:        d.Uploads,
		maxUploadBytes: maxBytes,
	}
}

// Healthz reports liveness and the intake queue depth.
// @Summary liveness
// @Tags ops
// @Produce json
// @Success 200 {object} response.Response
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok", "queue_depth": h.uploads.QueueLen()})
}

// writeActivity renders federation documents with their own media type; gin's
// c.JSON would force application/json.
func writeActivity(c *gin.Context, contentType string, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, body)
}

func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
