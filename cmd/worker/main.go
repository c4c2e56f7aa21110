package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/feichai0017/deck-recovery/config"
	"github.com/feichai0017/deck-recovery/internal/service/recovery"
	"github.com/feichai0017/deck-recovery/pkg/logger"
	"github.com/feichai0017/deck-recovery/pkg/queue"
	"github.com/feichai0017/deck-recovery/pkg/worker"
)

func main() {
	configPath := flag.String("config", os.Getenv("DECK_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// 初始化日志
	log, err := logger.FromConfig(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 创建恢复服务
	svc, q, err := recovery.GetService(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create recovery service", logger.Error(err))
		os.Exit(1)
	}
	defer q.Close()

	w, err := worker.NewRecoveryWorker(queue.RedisOpt(cfg.Queue), &worker.Config{
		Concurrency: cfg.Queue.Concurrency,
		Queues:      worker.DefaultQueues(),
	}, svc, log)
	if err != nil {
		log.Error("Failed to create recovery worker", logger.Error(err))
		os.Exit(1)
	}

	if err := w.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("Shutting down worker...")
	w.Stop()
	log.Info("Worker stopped")
}
