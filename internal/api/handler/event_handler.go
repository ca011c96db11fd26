package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/response"
)

const commentLimit = 20

// EventActivity returns federation interaction counts and recent replies for an event.
// @Summary event interactions
// @Tags events
// @Produce json
// @Param id path int true "event id"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/events/{id}/activitypub [get]
func (h *Handler) EventActivity(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.repo.Events.Get(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.InternalError(c, err)
		return
	}

	summary, err := h.repo.Inbox.Summary(ctx, id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	comments, err := h.repo.Inbox.ListComments(ctx, id, commentLimit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"event_id": id, "summary": summary, "comments": comments})
}

// DeleteEvent removes an event.
// @Summary delete event
// @Tags events
// @Param id path int true "event id"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/events/{id} [delete]
func (h *Handler) DeleteEvent(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	err := h.repo.Events.Delete(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	logger.Info("event deleted", zap.Int64("event_id", id), zap.String("by", c.GetString(gin.AuthUserKey)))
	response.Success(c, gin.H{"deleted": id})
}
