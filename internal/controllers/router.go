package controllers

import (
	"net/url"
	"time"

	"github.com/fsdevblog/shortlinks/internal/controllers/middlewares"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterParams struct {
	Registry    LinkRegistry
	PingService ConnectionChecker
	BaseURL     *url.URL
	Logger      *zap.Logger
	// Timeout ограничение на обработку одного запроса, по умолчанию DefaultRequestTimeout
	Timeout time.Duration
}

func SetupRouter(params RouterParams) *gin.Engine {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r := gin.New()
	r.Use(middlewares.LoggerMiddleware(params.Logger))
	r.Use(gin.Recovery())
	r.Use(middlewares.TimeoutMiddleware(timeout))
	r.Use(middlewares.GzipMiddleware())

	linksController := NewLinksController(params.Registry, params.BaseURL)

	if params.PingService != nil {
		pingController := NewPingController(params.PingService)
		r.GET("/ping", pingController.Ping)
	}

	r.POST("/", linksController.CreateShortURL)
	r.GET("/:shortCode", linksController.Redirect)

	api := r.Group("/api")
	api.POST("/shorten", linksController.CreateShortURL)
	api.GET("/:shortCode", linksController.Resolve)
	api.GET("/:shortCode/stats", linksController.Stats)
	api.DELETE("/:shortCode", linksController.Delete)
	return r
}
