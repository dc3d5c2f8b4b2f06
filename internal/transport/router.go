package transport

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyang/shard-coordinator/internal/domain/event"
	porteventbus "github.com/alanyang/shard-coordinator/internal/port/eventbus"
	"github.com/alanyang/shard-coordinator/internal/service/coordination"
	clusterhandler "github.com/alanyang/shard-coordinator/internal/transport/cluster"
	mcptransport "github.com/alanyang/shard-coordinator/internal/transport/mcp"
	wshandler "github.com/alanyang/shard-coordinator/internal/transport/ws"
)

type RouterDeps struct {
	Inspector *coordination.Inspector
	EventBus  porteventbus.EventBus
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

func NewRouter(ctx context.Context, deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestLogger(deps.Logger))
	r.Use(CORSMiddleware())

	api := r.Group("/api")
	clusterhandler.Register(api, deps.Inspector)

	hub := wshandler.NewHub(deps.Logger)
	hub.Register(api.Group("/ws"))

	// Every agent event is forwarded; event.Type in the payload lets the
	// client filter.
	if _, err := deps.EventBus.Subscribe(ctx, event.ChannelAgent, func(_ context.Context, e event.Event) {
		hub.Broadcast(e)
	}); err != nil {
		deps.Logger.Error("failed to subscribe agent channel to WS hub", "error", err)
	}

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	mcpHandler := gin.WrapH(mcptransport.New(deps.Inspector, deps.Logger).Handler())
	r.Any("/mcp", mcpHandler)

	return r
}
