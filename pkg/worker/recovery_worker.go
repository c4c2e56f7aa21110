package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/deck-recovery/internal/recovery"
	"github.com/feichai0017/deck-recovery/pkg/logger"
	"github.com/feichai0017/deck-recovery/pkg/queue"
)

// Handler performs one recovery task.
type Handler interface {
	HandleRecovery(ctx context.Context, task *queue.Task) error
}

type RecoveryWorker struct {
	BaseWorker
	handler Handler
}

func NewRecoveryWorker(redisOpt asynq.RedisClientOpt, cfg *Config, handler Handler, log logger.Logger) (*RecoveryWorker, error) {
	if handler == nil {
		return nil, errors.New("worker: handler is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	w := &RecoveryWorker{
		BaseWorker: newBaseWorker(redisOpt, cfg, log.Named("worker")),
		handler:    handler,
	}

	// 注册任务处理器
	w.mux.HandleFunc(queue.TaskTypeDeckRecover, w.handleRecover)
	return w, nil
}

func (w *RecoveryWorker) handleRecover(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %v: %w", err, asynq.SkipRetry)
	}
	if err := task.Validate(); err != nil {
		w.logger.Error("Invalid task data", logger.String("taskId", task.ID), logger.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Processing recovery task",
		logger.String("taskId", task.ID),
		logger.String("input", task.Payload.InputName),
	)

	err := w.handler.HandleRecovery(ctx, &task)
	if err == nil {
		if rw := t.ResultWriter(); rw != nil {
			if _, werr := rw.Write([]byte(`{"status":"completed"}`)); werr != nil {
				w.logger.Warn("Failed to write task result", logger.Error(werr))
			}
		}
		return nil
	}

	// 没有可恢复内容的输入重试也无济于事
	if !retryable(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, recovery.ErrNoSlideContent),
		errors.Is(err, recovery.ErrUndecodableText),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
