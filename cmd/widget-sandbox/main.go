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

	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/sandbox"
	"github.com/hazlamahedich/shop-widget-go/pkg/config"
)

func main() {
	logger, err := logging.NewChanneledLogger(nil)
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}

	app := sandbox.NewApp(config.SandboxJWTSecret, config.SessionTTL, logger)

	httpServer := &http.Server{
		Addr:        ":" + config.SandboxPort,
		Handler:     app.Router(),
		ReadTimeout: config.ServerReadTimeout,
		// No write timeout: the realtime endpoints hold streams open.
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		logger.Startup().Info("Sandbox backend listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Sandbox server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
	}
	logger.Shutdown().Info("Sandbox backend stopped")
}
