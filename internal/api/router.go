package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facegate/internal/api/handlers"
	"github.com/your-org/facegate/internal/api/ws"
	"github.com/your-org/facegate/internal/auth"
	"github.com/your-org/facegate/internal/queue"
	"github.com/your-org/facegate/internal/service"
	"github.com/your-org/facegate/internal/storage"
)

type RouterConfig struct {
	APIKey      string
	DB          *storage.PostgresStore
	Images      *storage.ImageStore
	Producer    *queue.Producer
	Hub         *ws.Hub
	Collections *service.CollectionService
	Enrollment  *service.EnrollmentService
	Match       *service.MatchService
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Images, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.RequireKey(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Collections
	colH := handlers.NewCollectionHandler(cfg.Collections)
	v1.POST("/collections", colH.Create)
	v1.GET("/collections", colH.List)
	v1.DELETE("/collections/:id", colH.Delete)
	v1.GET("/collections/:id/faces", colH.ListFaces)

	// Enrollment
	enrollH := handlers.NewEnrollHandler(cfg.Enrollment)
	v1.POST("/collections/:id/enroll", enrollH.Enroll)
	v1.POST("/collections/:id/faces/:faceId/link", enrollH.Relink)
	v1.DELETE("/collections/:id/faces/:faceId", enrollH.DeleteFace)

	// Match & compare
	matchH := handlers.NewMatchHandler(cfg.Match)
	v1.POST("/collections/:id/match", matchH.Match)
	v1.POST("/compare", matchH.Compare)

	// Image archive
	imageH := handlers.NewImageHandler(cfg.Images)
	v1.POST("/images", imageH.Upload)

	// Identity records
	recordH := handlers.NewRecordHandler(cfg.DB, cfg.Images)
	v1.GET("/records", recordH.List)
	v1.GET("/records/:faceId", recordH.Get)
	v1.GET("/records/:faceId/image", recordH.Image)

	return r
}
