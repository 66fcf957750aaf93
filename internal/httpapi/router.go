package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sonara-ai/sonara/internal/health"
	"github.com/sonara-ai/sonara/internal/observe"
)

// NewRouter assembles the control-plane engine: request middleware,
// probe and metrics endpoints, and the call API under /api.
func NewRouter(h Handlers, probes *health.Handler, metrics *observe.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observe.GinMiddleware(metrics))

	probes.Routes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		calls := api.Group("/calls")
		calls.POST("", h.CreateCall)
		calls.GET("", h.ListCalls)
		calls.GET("/:id", h.GetCall)
		calls.POST("/:id/start", h.StartCall)
		calls.POST("/:id/end", h.EndCall)
		calls.POST("/:id/turns", h.AppendTurn)
		calls.GET("/:id/turns", h.ListTurns)
		calls.GET("/:id/context", h.GetContext)
		calls.GET("/:id/handoff/evaluate", h.EvaluateHandoff)
		calls.POST("/:id/handoff/request", h.RequestHandoff)
	}
	return r
}
