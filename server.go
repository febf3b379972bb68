package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/agromatch_backend/config"
	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/mmdatafocus/agromatch_backend/middlewares"
	"github.com/mmdatafocus/agromatch_backend/models"
	"github.com/mmdatafocus/agromatch_backend/utils"
	"github.com/mmdatafocus/agromatch_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// readinessGate answers 503 until the database and redis are connected.
func readinessGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service not ready"})
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = true
	return cors.New(corsConfig)
}

// newRouter wires the middleware chain and the match routes. The orchestrator
// is resolved per request so routes can be registered before the database is up.
func newRouter(logger *logrus.Logger, api *matchAPI) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(readinessGate())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.Use(corsMiddleware())
	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	if config.RateLimitEnabled() {
		limit := config.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)
		if limit <= 0 {
			limit = 600
		}
		window := config.IntFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)
		if window <= 0 {
			window = 60
		}
		r.Use(middlewares.RateLimitMiddleware(int64(limit), time.Duration(window)*time.Second))
	}
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	protected := r.Group("/")
	if config.BoolFromEnv("MATCH_REQUIRE_AUTH", false) {
		protected.Use(middlewares.RequireRoles(utils.RoleBuyer))
	}
	registerMatchRoutes(protected, api)
	r.NoRoute(customNotFoundHandler)
	return r
}

func newOrchestrator(logger *logrus.Logger) *matching.Orchestrator {
	o := matching.NewOrchestrator(models.NewMatchStore(config.GetDB()), matchSettingsFromEnv(), logger)
	if config.ExclusiveMatchRuns() {
		o.Locker = workflow.NewRedisRunLocker(config.GetRedisLock())
	}
	return o
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	api := &matchAPI{logger: logger}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(logger, api),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !config.SkipMigrations() {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}
	api.setOrchestrator(newOrchestrator(logger))

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if config.MatchEventsEnabled() {
		go func() {
			client, err := config.GetClient(dispatcherCtx)
			if err != nil {
				config.LogError(logger, "server.go", "main", "pubsub client", nil, err)
				return
			}
			if _, err := config.CreateTopicIfNotExists(dispatcherCtx, client, config.MatchEventsTopic()); err != nil {
				config.LogError(logger, "server.go", "main", "create topic", config.MatchEventsTopic(), err)
			}
			workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)
		}()
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on port ", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			username, _ := utils.GetUsernameFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"field":          "http",
				"path":           c.FullPath(),
				"correlation_id": cid,
				"username":       username,
			}).Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
