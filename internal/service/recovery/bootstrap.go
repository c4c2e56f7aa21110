package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/feichai0017/deck-recovery/config"
	"github.com/feichai0017/deck-recovery/internal/agent"
	"github.com/feichai0017/deck-recovery/pkg/logger"
	"github.com/feichai0017/deck-recovery/pkg/queue"
	"github.com/feichai0017/deck-recovery/pkg/storage"
)

// GetService wires storage, queue and text source from cfg. The caller owns
// the returned queue and must Close it.
func GetService(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, *queue.AsynqQueue, error) {
	store, err := storage.NewStorage(ctx, cfg.Storage, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	q, err := queue.NewAsynqQueue(cfg.Queue, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	factory, err := agent.NewProcessorFactory(log)
	if err != nil {
		q.Close()
		return nil, nil, fmt.Errorf("failed to initialize processor factory: %w", err)
	}

	svcCfg := DefaultServiceConfig()
	svcCfg.Pipeline = cfg.Recovery.Pipeline()
	svcCfg.Prefix = cfg.Storage.Prefix
	svcCfg.CleanText = cfg.Recovery.CleanText
	svcCfg.Aggressive = cfg.Recovery.Aggressive
	if cfg.Server.MaxUploadMB > 0 {
		svcCfg.MaxFileSize = cfg.Server.MaxUploadMB << 20
	}
	if cfg.Server.RetentionDays > 0 {
		svcCfg.RetentionPeriod = time.Duration(cfg.Server.RetentionDays) * 24 * time.Hour
	}

	return NewService(factory, q, store, log, svcCfg), q, nil
}
