// Package webhook receives room lifecycle events from the media
// transport and drives the call state machine from them: the caller
// joining their room activates the call, the caller leaving ends it.
//
// The transport retries undelivered webhooks, so handlers are
// idempotent: a transition already applied reports success rather than
// surfacing the conflict back to the transport.
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sonara-ai/sonara/internal/call"
	"github.com/sonara-ai/sonara/internal/media"
)

// Lifecycle is the slice of the call service the webhook drives.
type Lifecycle interface {
	Start(ctx context.Context, id string) (*call.Call, error)
	End(ctx context.Context, id string) (*call.Call, error)
}

// Handler turns transport webhooks into lifecycle transitions.
type Handler struct {
	calls Lifecycle
}

// New wires the webhook handler.
func New(calls Lifecycle) *Handler {
	return &Handler{calls: calls}
}

// Handle processes one webhook delivery. Events for rooms this system
// did not create carry no call id in their metadata and are ignored.
func (h *Handler) Handle(c *gin.Context) {
	var ev media.WebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	callID := media.CallIDFromMetadata(ev.Room.Metadata)
	if callID == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	log := slog.With("event", ev.Event, "callId", callID, "identity", ev.Participant.Identity)

	switch ev.Event {
	case media.EventParticipantJoined:
		if !strings.HasPrefix(ev.Participant.Identity, media.CallerIdentityPrefix) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		if _, err := h.calls.Start(c.Request.Context(), callID); err != nil {
			h.reportTransition(c, log, "activate call", err)
			return
		}
		log.Info("call activated by caller join")
		c.JSON(http.StatusOK, gin.H{"status": "processed"})

	case media.EventParticipantLeft:
		if !strings.HasPrefix(ev.Participant.Identity, media.CallerIdentityPrefix) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		if _, err := h.calls.End(c.Request.Context(), callID); err != nil {
			h.reportTransition(c, log, "end call", err)
			return
		}
		log.Info("call ended by caller leave")
		c.JSON(http.StatusOK, gin.H{"status": "processed"})

	case media.EventTrackPublished, media.EventTrackUnpublished:
		log.Debug("track event", "trackSid", ev.Track.SID, "trackType", ev.Track.Type)
		c.JSON(http.StatusOK, gin.H{"status": "noted"})

	default:
		log.Debug("unhandled webhook event")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

// reportTransition answers a failed transition. Conflicts from redelivery
// or out-of-order events are acknowledged so the transport stops retrying.
func (h *Handler) reportTransition(c *gin.Context, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, call.ErrInvalidTransition), errors.Is(err, call.ErrCallEnded):
		log.Info("transition already applied", "op", op)
		c.JSON(http.StatusOK, gin.H{"status": "already_applied"})
	case errors.Is(err, call.ErrNotFound):
		log.Warn("webhook for unknown call", "op", op)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		log.Error("webhook transition failed", "op", op, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Routes mounts the webhook endpoint on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.POST("/webhooks/media", h.Handle)
}
