package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/deck-recovery/config"
	"github.com/feichai0017/deck-recovery/internal/models"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

// TaskType 定义任务类型
const TaskTypeDeckRecover = "deck:recover"

// 队列名称, highest priority first
var queueNames = []string{"critical", "default", "low"}

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskFinished = errors.New("task already finished")
)

// Queue 接口定义
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	SaveStatus(ctx context.Context, status *TaskStatus) error
}

// RecoverPayload locates the uploaded inputs in storage and carries the
// per-request limits. Zero limits mean the worker's configured defaults.
type RecoverPayload struct {
	InputKey      string `json:"inputKey"`
	InputName     string `json:"inputName"`
	TextKey       string `json:"textKey,omitempty"`
	TextName      string `json:"textName,omitempty"`
	MaxSlides     int    `json:"maxSlides,omitempty"`
	SlidesPerFile int    `json:"slidesPerFile,omitempty"`
	MaxFiles      int    `json:"maxFiles,omitempty"`
}

// Task 定义任务结构
type Task struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Payload   RecoverPayload    `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Validate checks the fields a worker needs.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("invalid task: missing id")
	}
	if t.Payload.InputKey == "" && t.Payload.TextKey == "" {
		return errors.New("invalid task: no input key")
	}
	return nil
}

// TaskStatus 定义任务状态
type TaskStatus struct {
	TaskID     string                  `json:"taskId"`
	Status     models.ProcessingStatus `json:"status"`
	Progress   float64                 `json:"progress"`
	Error      string                  `json:"error,omitempty"`
	Hint       string                  `json:"hint,omitempty"`
	Archives   []string                `json:"archives,omitempty"`
	StartedAt  time.Time               `json:"startedAt"`
	FinishedAt time.Time               `json:"finishedAt,omitempty"`
}

// Terminal reports whether the task can no longer change state.
func (s *TaskStatus) Terminal() bool {
	switch s.Status {
	case models.StatusCompleted, models.StatusFailed, models.StatusCancelled:
		return true
	}
	return false
}

// StatusStore keeps task status snapshots in redis under task_status:<id>.
type StatusStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStatusStore(rdb *redis.Client, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StatusStore{redis: rdb, ttl: ttl}
}

func statusKey(taskID string) string {
	return fmt.Sprintf("task_status:%s", taskID)
}

func (s *StatusStore) Save(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := s.redis.Set(ctx, statusKey(status.TaskID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func (s *StatusStore) Load(ctx context.Context, taskID string) (*TaskStatus, error) {
	data, err := s.redis.Get(ctx, statusKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}
	var status TaskStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}

// AsynqQueue 实现
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
	status    *StatusStore
	retry     int
	logger    logger.Logger
}

// RedisOpt returns the asynq connection settings for cfg.
func RedisOpt(cfg config.QueueConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// NewAsynqQueue 创建新的队列实例
func NewAsynqQueue(cfg config.QueueConfig, log logger.Logger) (*AsynqQueue, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("queue: redis address is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	redisOpt := RedisOpt(cfg)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis:     rdb,
		status:    NewStatusStore(rdb, time.Duration(cfg.StatusTTLHrs)*time.Hour),
		retry:     cfg.RetryLimit,
		logger:    log.Named("queue"),
	}, nil
}

// Status exposes the status store shared with workers.
func (q *AsynqQueue) Status() *StatusStore {
	return q.status
}

// NewTask encodes a recovery task for asynq, routed by priority.
func (q *AsynqQueue) NewTask(task *Task) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	opts := []asynq.Option{
		asynq.MaxRetry(q.retry),
		asynq.Timeout(30 * time.Minute),
		asynq.TaskID(task.ID),
		asynq.Queue(queueFor(task.Priority)),
	}
	return asynq.NewTask(task.Type, payload, opts...), nil
}

func queueFor(priority int) string {
	switch priority {
	case 1:
		return "critical"
	case 2:
		return "default"
	default:
		return "low"
	}
}

// Enqueue 将任务加入队列
func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
	t, err := q.NewTask(task)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	task.ID = info.ID
	q.logger.Debug("Task enqueued", logger.String("taskId", info.ID), logger.String("queue", info.Queue))
	return nil
}

// GetTaskStatus prefers the saved snapshot and falls back to asynq's view.
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	status, err := q.status.Load(ctx, taskID)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}

	for _, name := range queueNames {
		info, err := q.inspector.GetTaskInfo(name, taskID)
		if err == nil {
			return convertAsynqStatus(info), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// CancelTask 取消任务. Queued tasks are deleted; running ones are signalled.
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	if status, err := q.status.Load(ctx, taskID); err == nil && status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTaskFinished, status.Status)
	}

	cancelled := false
	for _, name := range queueNames {
		if err := q.inspector.DeleteTask(name, taskID); err == nil {
			cancelled = true
			break
		}
	}
	if !cancelled {
		if err := q.inspector.CancelProcessing(taskID); err != nil {
			return fmt.Errorf("failed to cancel task: %w", err)
		}
	}

	return q.status.Save(ctx, &TaskStatus{
		TaskID:     taskID,
		Status:     models.StatusCancelled,
		FinishedAt: time.Now(),
	})
}

func (q *AsynqQueue) SaveStatus(ctx context.Context, status *TaskStatus) error {
	return q.status.Save(ctx, status)
}

func (q *AsynqQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close(), q.redis.Close())
}

// convertAsynqStatus 将 asynq 状态转换为 TaskStatus
func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		Status:    models.StatusPending,
		StartedAt: info.NextProcessAt,
	}

	switch info.State {
	case asynq.TaskStateActive:
		status.Status = models.StatusRunning
		status.Progress = 0.5
	case asynq.TaskStateRetry:
		status.Status = models.StatusRunning
		status.Error = info.LastErr
	case asynq.TaskStateCompleted:
		status.Status = models.StatusCompleted
		status.Progress = 1.0
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateArchived:
		status.Status = models.StatusFailed
		status.Error = info.LastErr
		status.FinishedAt = info.LastFailedAt
	}
	return status
}
