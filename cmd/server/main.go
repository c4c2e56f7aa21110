package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/deck-recovery/api/handlers"
	"github.com/feichai0017/deck-recovery/api/routes"
	"github.com/feichai0017/deck-recovery/config"
	"github.com/feichai0017/deck-recovery/internal/service/recovery"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("DECK_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.FromConfig(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, q, err := recovery.GetService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to get recovery service", logger.Error(err))
	}
	defer q.Close()

	h := handlers.NewHandlers(svc, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, log, routes.Options{
		AllowOrigins: cfg.Server.AllowOrigins,
		MaxBodyBytes: (cfg.Server.MaxUploadMB + 1) << 20,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		log.Info("Server starting", logger.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
			stop()
		}
	}()

	// retention sweep
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := svc.CleanupTasks(ctx); err != nil {
					log.Warn("Cleanup failed", logger.Error(err))
				}
			}
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
