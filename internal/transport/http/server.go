package http

import (
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gopherai-tutor/internal/bootstrap"
	"gopherai-tutor/internal/transport/http/handler"
	"gopherai-tutor/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(
		middleware.RequestLog(app.Logger.Named("http")),
		middleware.Recovery(app.Logger.Named("http")),
		middleware.CORS(app.Config.CORS.AllowOrigins),
	)

	healthHandler := handler.NewHealthHandler(app)
	tutorHandler := handler.NewTutorHandler(app.Tutor, app.Config.Storage.MaxUploadBytes, app.Logger.Named("http"))

	index := filepath.Join(app.Config.App.WebDir, "index.html")
	if info, err := os.Stat(index); err == nil && !info.IsDir() {
		router.StaticFile("/", index)
	}
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Metrics.Registry, promhttp.HandlerOpts{})))

	router.POST("/chat", tutorHandler.Chat)
	router.POST("/chat/stream", tutorHandler.StreamChat)
	router.POST("/analyze", tutorHandler.Analyze)

	v1 := router.Group("/api/v1")
	v1.GET("/tasks", tutorHandler.Tasks)
	subjects := v1.Group("/subjects/:subject")
	subjects.GET("/snippets", tutorHandler.Snippets)
	subjects.GET("/analyses", tutorHandler.Analyses)

	return router
}
