package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Somerville-Events/somerville.events-sub000/internal/activitypub"
	"github.com/Somerville-Events/somerville.events-sub000/internal/metrics"
	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/response"
)

const maxInboxBytes = 1 << 20

// Actor returns the local actor document.
// @Summary actor document
// @Tags activitypub
// @Produce application/activity+json
// @Success 200 {object} activitypub.Actor
// @Router /activitypub/actor [get]
func (h *Handler) Actor(c *gin.Context) {
	writeActivity(c, activitypub.ContentType, h.discovery.Actor())
}

// Webfinger resolves acct:events@host (or the actor URL) to the actor.
// @Summary webfinger
// @Tags activitypub
// @Produce application/jrd+json
// @Param resource query string true "acct: URI or actor URL"
// @Success 200 {object} activitypub.Webfinger
// @Failure 404 {object} response.Response
// @Router /.well-known/webfinger [get]
func (h *Handler) Webfinger(c *gin.Context) {
	doc, err := h.discovery.Webfinger(c.Query("resource"))
	if err != nil {
		response.NotFound(c, "unknown resource")
		return
	}
	writeActivity(c, activitypub.JRDContentType, doc)
}

// Outbox serves the collection summary, or one page when ?page is given.
// @Summary outbox
// @Tags activitypub
// @Produce application/activity+json
// @Param page query string false "true or a page number"
// @Success 200 {object} activitypub.OrderedCollection
// @Failure 400 {object} response.Response
// @Router /activitypub/outbox [get]
func (h *Handler) Outbox(c *gin.Context) {
	page, err := activitypub.ParsePage(c.Query("page"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if page == 0 {
		summary, err := h.outbox.Summary(ctx)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		writeActivity(c, activitypub.ContentType, summary)
		return
	}
	p, err := h.outbox.Page(ctx, page)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	writeActivity(c, activitypub.ContentType, p)
}

// Followers exposes the follower count only.
// @Summary followers
// @Tags activitypub
// @Produce application/activity+json
// @Success 200 {object} activitypub.OrderedCollection
// @Router /activitypub/followers [get]
func (h *Handler) Followers(c *gin.Context) {
	coll, err := h.discovery.Followers(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	writeActivity(c, activitypub.ContentType, coll)
}

// EventObject returns one event as a federation Event object.
// @Summary event object
// @Tags activitypub
// @Produce application/activity+json
// @Param id path int true "event id"
// @Success 200 {object} activitypub.EventObject
// @Failure 404 {object} response.Response
// @Router /activitypub/event/{id} [get]
func (h *Handler) EventObject(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	e, err := h.repo.Events.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	obj := h.mapper.EventObject(e)
	obj.Context = []string{activitypub.ContextActivityStreams}
	writeActivity(c, activitypub.ContentType, obj)
}

// Inbox accepts an inbound activity.
// @Summary inbox
// @Tags activitypub
// @Accept application/activity+json
// @Success 202
// @Failure 400
// @Failure 500
// @Router /activitypub/inbox [post]
func (h *Handler) Inbox(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInboxBytes+1))
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if len(body) > maxInboxBytes {
		metrics.RecordInboxRejected("too_large")
		c.AbortWithStatus(http.StatusRequestEntityTooLarge)
		return
	}

	err = h.inbox.Receive(c.Request.Context(), body)
	switch {
	case err == nil:
		c.Status(http.StatusAccepted)
	case errors.Is(err, activitypub.ErrBadActivity):
		logger.Warn("inbox activity rejected", zap.String("remote", c.ClientIP()), zap.Error(err))
		c.AbortWithStatus(http.StatusBadRequest)
	default:
		logger.Error("inbox activity failed", zap.Error(err))
		_ = c.Error(err)
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}
