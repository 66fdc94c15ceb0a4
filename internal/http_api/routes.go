package http_api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	if s.feed != nil {
		// Long-lived; kept out of the per-request limit.
		v1.GET("/feed", s.feed.serveWS)
	}

	api := v1.Group("", s.limiter.Middleware())
	api.GET("/scan", s.scan)
	api.GET("/tokens", s.tokens)
	api.GET("/tokens/:chain/:address", s.token)
	api.GET("/scan-history", s.scanHistory)
	api.GET("/deployers", s.deployers)
	api.GET("/stats", s.stats)
	api.GET("/activity", s.activity)
	api.GET("/chains", s.chains)
	api.GET("/gas-prices", s.gasPrices)
	api.POST("/subscriptions", s.subscribe)
	api.DELETE("/subscriptions/:id", s.unsubscribe)

	admin := api.Group("/admin", s.adminAuth())
	admin.GET("/export", s.export)
	admin.POST("/import", s.importData)
	admin.DELETE("/data", s.clearData)
}
