package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hookbin/internal/api"
	"hookbin/internal/api/handlers"
	"hookbin/internal/api/middleware"
	"hookbin/internal/engine/events"
	"hookbin/internal/engine/hooks"
	"hookbin/internal/pkg/logger"
	"hookbin/internal/platform/auth"
	"hookbin/internal/platform/config"
	"hookbin/internal/platform/database"
	"hookbin/internal/platform/repositories"

	apiContext "hookbin/internal/api/context"

	"github.com/julienschmidt/httprouter"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// The bus has an explicit lifecycle: constructed once here, handed to
	// everything that publishes or subscribes, closed on shutdown.
	bus := events.NewBus(cfg.Bus.BufferSize)
	defer bus.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	webhookRepo := hooks.NewWebhookRepository(db)
	endpointRepo := hooks.NewEndpointRepository(db)
	forwardRepo := hooks.NewForwardRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	hookSvc := hooks.NewService(webhookRepo, endpointRepo, forwardRepo, bus)
	relayer := hooks.NewRelayer(hookSvc)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc, userRepo)
	captureLimiter := middleware.NewRateLimiter()
	captureLimit := captureLimiter.Limit(cfg.Capture.RequestsPerMinute, func(r *http.Request) string {
		params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
		return "capture:" + params.ByName("token")
	})

	// Handlers
	deps := &api.Dependencies{
		AuthHandler:     handlers.NewAuthHandler(userRepo, tokenSvc),
		EndpointHandler: handlers.NewEndpointHandler(endpointRepo, hookSvc),
		WebhookHandler:  handlers.NewWebhookHandler(hookSvc, relayer),
		CaptureHandler:  handlers.NewCaptureHandler(hookSvc, cfg.Capture),
		StreamHandler:   handlers.NewStreamHandler(hookSvc, bus, cfg.Bus),
		HealthHandler:   handlers.NewHealthHandler(db),
		MetricsHandler:  handlers.NewMetricsHandler(bus),
		AuthMiddleware:  authMiddleware,
		CaptureLimit:    captureLimit,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// WriteTimeout stays unset: SSE streams are long-lived responses.
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")

	// Close the bus first so open streams end and release the server.
	bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
