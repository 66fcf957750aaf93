// Package httpapi is the Sonara control plane: the REST surface that
// call widgets and operator tooling use to drive the call lifecycle,
// append transcript turns, read conversation context, and request
// escalation to a human agent.
//
// Handlers stay thin. They parse and validate input, call one internal
// service, and translate its sentinel errors into status codes; all
// domain rules live behind the services.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sonara-ai/sonara/internal/call"
	"github.com/sonara-ai/sonara/internal/callctx"
	"github.com/sonara-ai/sonara/internal/handoff"
	"github.com/sonara-ai/sonara/internal/transcript"
)

// Handlers groups the HTTP handlers for dependency injection.
type Handlers struct {
	Calls   *call.Service
	Turns   *transcript.Service
	Context *callctx.Service
	Handoff *handoff.Coordinator
}

// callView is the JSON rendering of a call record.
type callView struct {
	ID          string              `json:"id"`
	RoomName    string              `json:"roomId"`
	Source      string              `json:"source"`
	Status      call.Status         `json:"status"`
	Summary     string              `json:"summary,omitempty"`
	Entities    map[string][]string `json:"entities,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	StartedAt   *time.Time          `json:"startedAt,omitempty"`
	HandedOffAt *time.Time          `json:"handedOffAt,omitempty"`
	EndedAt     *time.Time          `json:"endedAt,omitempty"`
}

func viewCall(c *call.Call) callView {
	return callView{
		ID:          c.ID,
		RoomName:    c.RoomName,
		Source:      c.Source,
		Status:      c.Status,
		Summary:     c.Summary,
		Entities:    c.Entities,
		CreatedAt:   c.CreatedAt,
		StartedAt:   c.StartedAt,
		HandedOffAt: c.HandedOffAt,
		EndedAt:     c.EndedAt,
	}
}

// turnView is the JSON rendering of a transcript turn.
type turnView struct {
	ID         string             `json:"id"`
	CallID     string             `json:"callId"`
	Speaker    transcript.Speaker `json:"speaker"`
	Text       string             `json:"text"`
	Confidence float64            `json:"confidence"`
	Language   string             `json:"language"`
	CreatedAt  time.Time          `json:"createdAt"`
}

func viewTurn(t *transcript.Turn) turnView {
	return turnView{
		ID:         t.ID,
		CallID:     t.CallID,
		Speaker:    t.Speaker,
		Text:       t.Text,
		Confidence: t.Confidence,
		Language:   t.Language,
		CreatedAt:  t.CreatedAt,
	}
}

// abortErr maps service sentinel errors onto HTTP status codes. Unknown
// errors become 500 with a generic body so internals never leak.
func abortErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, call.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, call.ErrInvalidTransition), errors.Is(err, call.ErrCallEnded):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, transcript.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type createCallRequest struct {
	Source string `json:"source"`
}

// CreateCall allocates a call record plus its media room and returns
// the caller's room credential alongside the record.
func (h Handlers) CreateCall(c *gin.Context) {
	var req createCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	created, token, err := h.Calls.Create(c.Request.Context(), req.Source)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"call":        viewCall(created),
		"accessToken": token,
	})
}

// StartCall moves a call to ACTIVE.
func (h Handlers) StartCall(c *gin.Context) {
	started, err := h.Calls.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, viewCall(started))
}

// EndCall moves a call to ENDED.
func (h Handlers) EndCall(c *gin.Context) {
	ended, err := h.Calls.End(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, viewCall(ended))
}

// GetCall returns one call record.
func (h Handlers) GetCall(c *gin.Context) {
	got, err := h.Calls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, viewCall(got))
}

type listCallsQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
}

// ListCalls returns calls most-recent-first, optionally filtered by
// lifecycle status and bounded by limit.
func (h Handlers) ListCalls(c *gin.Context) {
	var q listCallsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	status := call.Status(q.Status)
	if q.Status != "" && !call.ValidStatus(status) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status " + q.Status})
		return
	}

	calls, err := h.Calls.List(c.Request.Context(), call.Filter{Status: status, Limit: q.Limit})
	if err != nil {
		abortErr(c, err)
		return
	}
	views := make([]callView, 0, len(calls))
	for _, cl := range calls {
		views = append(views, viewCall(cl))
	}
	c.JSON(http.StatusOK, gin.H{"calls": views, "count": len(views)})
}

type appendTurnRequest struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// AppendTurn records one utterance against an active call's ledger.
func (h Handlers) AppendTurn(c *gin.Context) {
	var req appendTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	turn, err := h.Turns.Append(c.Request.Context(), &transcript.Turn{
		CallID:     c.Param("id"),
		Speaker:    transcript.Speaker(req.Speaker),
		Text:       req.Text,
		Confidence: req.Confidence,
		Language:   req.Language,
	})
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewTurn(turn))
}

// ListTurns returns the call's full transcript, oldest first.
func (h Handlers) ListTurns(c *gin.Context) {
	turns, err := h.Turns.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	views := make([]turnView, 0, len(turns))
	for _, t := range turns {
		views = append(views, viewTurn(t))
	}
	c.JSON(http.StatusOK, gin.H{"turns": views, "count": len(views)})
}

// GetContext returns the rolling context projection for a call.
func (h Handlers) GetContext(c *gin.Context) {
	proj, err := h.Context.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, proj)
}

// EvaluateHandoff returns the advisory escalation recommendation
// without changing any state.
func (h Handlers) EvaluateHandoff(c *gin.Context) {
	eval, err := h.Handoff.Evaluate(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, eval)
}

// RequestHandoff escalates the call to a human agent. The response
// carries the context snapshot the human sees plus their room
// credential; the automated pipeline shuts down via the
// handoff_completed event.
func (h Handlers) RequestHandoff(c *gin.Context) {
	res, err := h.Handoff.Request(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"context":      res.Snapshot,
		"access_token": res.AccessToken,
		"evaluation":   res.Evaluation,
		"message":      "handoff completed, human agent may join the room",
	})
}
