package agentd

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the runner over HTTP. Keep these thin: parse input,
// call the runner, return JSON.
type Handlers struct {
	Runner *Runner
}

type stopRequest struct {
	CallID string `json:"callId"`
}

// StartAgent handles POST /agent/start. A start for a call that already
// owns a pipeline reports already_running with 200, so the notifier's
// at-least-once delivery can safely retry. roomName and token are
// optional; the runtime derives the room and mints its own credential
// when they are absent.
func (h Handlers) StartAgent(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.CallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callId required"})
		return
	}

	// The pipeline outlives this request: net/http cancels the request
	// context as soon as the response is written, which would kill the
	// capture loop mid-call. Keep the request's values, drop its
	// cancellation.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.Runner.Start(ctx, req); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyRunning):
			c.JSON(http.StatusOK, gin.H{"status": "already_running", "callId": req.CallID})
		case errors.Is(err, ErrStopped):
			c.JSON(http.StatusOK, gin.H{"status": "stopped", "callId": req.CallID})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started", "callId": req.CallID})
}

// StopAgent handles POST /agent/stop. Stopping a call with no pipeline
// reports not_running with 200.
func (h Handlers) StopAgent(c *gin.Context) {
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.CallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callId required"})
		return
	}

	if h.Runner.Stop(req.CallID) {
		c.JSON(http.StatusOK, gin.H{"status": "stopped", "callId": req.CallID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "not_running", "callId": req.CallID})
}

// Routes mounts the agent runtime endpoints.
func (h Handlers) Routes(r gin.IRouter) {
	r.POST("/agent/start", h.StartAgent)
	r.POST("/agent/stop", h.StopAgent)
}
