package app

import (
	httpx "github.com/BigPharmacist/ChatApp/internal/http"
	httpH "github.com/BigPharmacist/ChatApp/internal/http/handlers"
	httpMW "github.com/BigPharmacist/ChatApp/internal/http/middleware"
	"github.com/BigPharmacist/ChatApp/internal/observability"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
)

func wireRouterConfig(log *logger.Logger, cfg Config, clients Clients, services Services, metrics *observability.Metrics) httpx.RouterConfig {
	log.Info("Wiring handlers...")
	auth := httpMW.NewAuthMiddleware(log, cfg.AuthJWTSecret)
	if !auth.Enabled() {
		log.Warn("AUTH_JWT_SECRET not set; chat and rag endpoints are unauthenticated")
	}
	return httpx.RouterConfig{
		Log:            log,
		ServiceName:    cfg.Otel.ServiceName,
		Tracing:        cfg.Otel.Enabled,
		CORSOrigins:    cfg.CORSOrigins,
		AuthMiddleware: auth,
		Metrics:        metrics,
		// A dedicated METRICS_ADDR takes /metrics off the public port.
		ServeMetrics: cfg.MetricsAddr == "",

		ChatHandler:   httpH.NewChatHandler(log, services.Orchestrator, clients.OpenAI.Configured, cfg.RequestTimeout),
		RAGHandler:    httpH.NewRAGHandler(log, services.Retrieval),
		HealthHandler: httpH.NewHealthHandler(services.Retrieval),
	}
}
