package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/BigPharmacist/ChatApp/internal/http/handlers"
	httpMW "github.com/BigPharmacist/ChatApp/internal/http/middleware"
	"github.com/BigPharmacist/ChatApp/internal/observability"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
)

// legacyPrefix is where the browser client historically reached the chat and
// rag functions.
const legacyPrefix = "/functions/v1"

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	Tracing        bool
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware
	// Metrics is optional. ServeMetrics mounts GET /metrics on this router.
	Metrics      *observability.Metrics
	ServeMetrics bool

	ChatHandler   *httpH.ChatHandler
	RAGHandler    *httpH.RAGHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	if cfg.Metrics != nil && cfg.ServeMetrics {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	root := r.Group("/")
	legacy := r.Group(legacyPrefix)

	registerChat(root, cfg)
	registerChat(legacy.Group("/chat"), cfg)
	registerRAG(root, cfg)
	registerRAG(legacy.Group("/rag"), cfg)

	r.NoRoute(httpH.NotFound)
	return r
}

func registerChat(g *gin.RouterGroup, cfg RouterConfig) {
	if cfg.ChatHandler == nil {
		return
	}
	path := "/chat"
	if g.BasePath() != "/" {
		path = ""
	}
	g.POST(path, authHandlers(cfg, cfg.ChatHandler.Chat)...)
}

func registerRAG(g *gin.RouterGroup, cfg RouterConfig) {
	if cfg.HealthHandler != nil {
		g.GET("/health", cfg.HealthHandler.StoreStatus)
		g.GET("/", cfg.HealthHandler.StoreStatus)
	}
	h := cfg.RAGHandler
	if h == nil {
		return
	}
	g.POST("/index", authHandlers(cfg, h.Index)...)
	g.POST("/query", authHandlers(cfg, h.Query)...)
	g.POST("/delete", authHandlers(cfg, h.Delete)...)
	g.GET("/collections", authHandlers(cfg, h.ListCollections)...)
	g.GET("/collections/:name", authHandlers(cfg, h.CollectionInfo)...)
	g.DELETE("/collections/:name", authHandlers(cfg, h.DeleteCollection)...)
	g.POST("/documents/index", authHandlers(cfg, h.IndexDocument)...)
	g.POST("/documents/reindex", authHandlers(cfg, h.ReindexDocument)...)
	g.POST("/documents/reindex-all", authHandlers(cfg, h.ReindexAll)...)
}

func authHandlers(cfg RouterConfig, h gin.HandlerFunc) []gin.HandlerFunc {
	if cfg.AuthMiddleware.Enabled() {
		return []gin.HandlerFunc{cfg.AuthMiddleware.RequireAuth(), h}
	}
	return []gin.HandlerFunc{h}
}
