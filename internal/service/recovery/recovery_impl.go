package recovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/deck-recovery/internal/cleaner"
	"github.com/feichai0017/deck-recovery/internal/models"
	pipeline "github.com/feichai0017/deck-recovery/internal/recovery"
	"github.com/feichai0017/deck-recovery/internal/utils/validator"
	"github.com/feichai0017/deck-recovery/pkg/converters"
	"github.com/feichai0017/deck-recovery/pkg/logger"
	"github.com/feichai0017/deck-recovery/pkg/queue"
	"github.com/feichai0017/deck-recovery/pkg/storage"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotReady           = errors.New("task has not finished")
	ErrInvalidArchiveName = errors.New("invalid archive name")
)

const emptyResultHint = "no slide text could be recovered; resubmit with a text_file " +
	"(a PDF export, outline or screenshots of the deck)"

var archiveName = regexp.MustCompile(`^rebuilt_part_[0-9]+\.pptx$`)

type ServiceConfig struct {
	Pipeline        pipeline.Config
	Prefix          string
	MaxFileSize     int64
	QueuePriority   int
	MaxConcurrent   int
	RetentionPeriod time.Duration
	CleanText       bool
	Aggressive      bool
}

func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Pipeline:        pipeline.DefaultConfig(),
		Prefix:          "recoveries",
		MaxFileSize:     200 << 20,
		QueuePriority:   2,
		MaxConcurrent:   5,
		RetentionPeriod: 7 * 24 * time.Hour,
	}
}

// Service stores uploads, queues recovery tasks and runs them for workers.
type Service struct {
	source  pipeline.TextSource
	queue   queue.Queue
	storage storage.Storage
	logger  logger.Logger
	config  *ServiceConfig
	decks   *validator.FileValidator
	texts   *validator.FileValidator
}

func NewService(
	source pipeline.TextSource,
	q queue.Queue,
	store storage.Storage,
	log logger.Logger,
	cfg *ServiceConfig,
) *Service {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Named("service")
	return &Service{
		source:  source,
		queue:   q,
		storage: store,
		logger:  log,
		config:  cfg,
		decks:   validator.NewFileValidator(log, validator.DeckConfig(cfg.MaxFileSize)),
		texts:   validator.NewFileValidator(log, validator.TextSourceConfig(cfg.MaxFileSize)),
	}
}

func (s *Service) key(taskID string, parts ...string) string {
	return path.Join(append([]string{s.config.Prefix, taskID}, parts...)...)
}

// Submit 提交单个恢复任务
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.RecoveryTask, error) {
	s.logger.Info("Starting submission",
		logger.String("filename", req.Deck.Filename),
		logger.Int64("size", req.Deck.Size),
	)

	taskID := uuid.New().String()
	now := time.Now()

	inputKey, hash, err := s.storeUpload(ctx, s.decks, req.Deck, s.key(taskID, "input"))
	if err != nil {
		return nil, err
	}
	payload := queue.RecoverPayload{
		InputKey:      inputKey,
		InputName:     filepath.Base(req.Deck.Filename),
		MaxSlides:     req.Limits.MaxSlides,
		SlidesPerFile: req.Limits.SlidesPerFile,
		MaxFiles:      req.Limits.MaxFiles,
	}
	if req.Text != nil {
		textKey, _, err := s.storeUpload(ctx, s.texts, *req.Text, s.key(taskID, "text"))
		if err != nil {
			s.discard(ctx, inputKey)
			return nil, err
		}
		payload.TextKey = textKey
		payload.TextName = filepath.Base(req.Text.Filename)
	}

	task := &models.RecoveryTask{
		ID:        taskID,
		Status:    models.StatusPending,
		Type:      queue.TaskTypeDeckRecover,
		Priority:  s.config.QueuePriority,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata: map[string]string{
			"filename": payload.InputName,
			"size":     strconv.FormatInt(req.Deck.Size, 10),
			"sha256":   hash,
		},
	}
	if payload.TextName != "" {
		task.Metadata["textFile"] = payload.TextName
	}

	// 加入处理队列
	if err := s.queue.Enqueue(ctx, &queue.Task{
		ID:        taskID,
		Type:      task.Type,
		Priority:  task.Priority,
		Payload:   payload,
		Metadata:  task.Metadata,
		CreatedAt: now,
	}); err != nil {
		s.logger.Error("Failed to enqueue task", logger.String("taskId", taskID), logger.Error(err))
		s.discard(ctx, payload.InputKey, payload.TextKey)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    taskID,
		Status:    models.StatusPending,
		StartedAt: now,
	})

	s.logger.Info("Recovery task created",
		logger.String("taskId", taskID),
		logger.String("filename", payload.InputName),
	)
	return task, nil
}

// SubmitBatch 批量提交. Tasks keep the order of decks; on error the
// successfully submitted tasks are still returned.
func (s *Service) SubmitBatch(ctx context.Context, decks []Upload, limits Limits) ([]*models.RecoveryTask, error) {
	slots := make([]*models.RecoveryTask, len(decks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.config.MaxConcurrent))
	for i, deck := range decks {
		g.Go(func() error {
			task, err := s.Submit(gctx, SubmitRequest{Deck: deck, Limits: limits})
			if err != nil {
				return fmt.Errorf("failed to submit %s: %w", deck.Filename, err)
			}
			slots[i] = task
			return nil
		})
	}
	err := g.Wait()

	tasks := make([]*models.RecoveryTask, 0, len(decks))
	for _, t := range slots {
		if t != nil {
			tasks = append(tasks, t)
		}
	}
	return tasks, err
}

func (s *Service) storeUpload(ctx context.Context, v *validator.FileValidator, up Upload, prefix string) (string, string, error) {
	f, err := up.Open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open %s: %w", up.Filename, err)
	}
	defer f.Close()

	res, err := v.ValidateFile(up.Filename, up.Size, f)
	if err != nil {
		return "", "", err
	}
	if err := res.Err(); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key, err := s.storage.Store(ctx, f, path.Join(prefix, res.FileInfo.Filename))
	if err != nil {
		s.logger.Error("Failed to store file", logger.String("filename", up.Filename), logger.Error(err))
		return "", "", fmt.Errorf("failed to store file: %w", err)
	}
	return key, res.FileInfo.Hash, nil
}

func (s *Service) discard(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if err := s.storage.Delete(ctx, k); err != nil {
			s.logger.Warn("Failed to remove stored upload", logger.String("key", k), logger.Error(err))
		}
	}
}

func (s *Service) saveStatus(ctx context.Context, status *queue.TaskStatus) {
	// status must land even when the task context was cancelled
	if err := s.queue.SaveStatus(context.WithoutCancel(ctx), status); err != nil {
		s.logger.Error("Failed to save status",
			logger.String("taskId", status.TaskID),
			logger.Error(err),
		)
	}
}

// HandleRecovery 执行恢复任务, run by the worker.
func (s *Service) HandleRecovery(ctx context.Context, task *queue.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	log := s.logger.With(logger.String("taskId", task.ID))
	started := time.Now()
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    models.StatusRunning,
		Progress:  0.1,
		StartedAt: started,
	})

	tmp, err := os.MkdirTemp("", "deck-recovery-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	req := pipeline.Request{OutputDir: filepath.Join(tmp, "out")}
	if task.Payload.InputKey != "" {
		req.InputPath = filepath.Join(tmp, "input", safeName(task.Payload.InputName, "input.pptx"))
		if err := s.fetch(ctx, task.Payload.InputKey, req.InputPath); err != nil {
			return s.fail(ctx, task, started, err)
		}
	}
	if task.Payload.TextKey != "" {
		req.TextPath = filepath.Join(tmp, "text", safeName(task.Payload.TextName, "text.txt"))
		if err := s.fetch(ctx, task.Payload.TextKey, req.TextPath); err != nil {
			return s.fail(ctx, task, started, err)
		}
	}

	rec, err := s.newRecoverer(task.Payload, req.TextPath != "", log)
	if err != nil {
		return s.fail(ctx, task, started, fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}

	res, runErr := rec.Run(ctx, req)
	manifest := converters.NewManifest(task.Payload.InputName, task.Payload.TextName, res, runErr)
	manifest.TaskID = task.ID

	status := &queue.TaskStatus{
		TaskID:     task.ID,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	for i := range manifest.Archives {
		a := &manifest.Archives[i]
		key := s.key(task.ID, "archives", a.Name)
		if err := s.upload(ctx, a.Path, key); err != nil {
			return s.fail(ctx, task, started, err)
		}
		a.Path = key
		status.Archives = append(status.Archives, a.Name)
	}

	var buf bytes.Buffer
	if err := manifest.WriteJSON(&buf); err != nil {
		return s.fail(ctx, task, started, err)
	}
	if _, err := s.storage.Store(context.WithoutCancel(ctx), &buf, s.key(task.ID, "manifest.json")); err != nil {
		return s.fail(ctx, task, started, fmt.Errorf("failed to store manifest: %w", err))
	}

	switch {
	case errors.Is(runErr, context.Canceled):
		status.Status = models.StatusCancelled
	case errors.Is(runErr, pipeline.ErrNoSlideContent):
		status.Status = models.StatusFailed
		status.Error = runErr.Error()
		status.Hint = emptyResultHint
	case runErr != nil:
		status.Status = models.StatusFailed
		status.Error = runErr.Error()
	default:
		status.Status = models.StatusCompleted
		status.Progress = 1
		if manifest.Status == converters.StatusPartial {
			status.Hint = fmt.Sprintf("%d archive(s) failed; see the manifest", len(manifest.Failures))
		}
	}
	s.saveStatus(ctx, status)

	log.Info("Recovery finished",
		logger.String("status", string(status.Status)),
		logger.Int("archives", len(status.Archives)),
		logger.Duration("elapsed", time.Since(started)),
	)
	return runErr
}

func (s *Service) fail(ctx context.Context, task *queue.Task, started time.Time, err error) error {
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     models.StatusFailed,
		Error:      err.Error(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	return err
}

func (s *Service) newRecoverer(p queue.RecoverPayload, withText bool, log logger.Logger) (*pipeline.Recoverer, error) {
	cfg := s.config.Pipeline
	if p.MaxSlides > 0 {
		cfg.MaxSlides = p.MaxSlides
	}
	if p.SlidesPerFile > 0 {
		cfg.SlidesPerFile = p.SlidesPerFile
	}
	if p.MaxFiles > 0 {
		cfg.MaxFiles = p.MaxFiles
	}
	// each task needs its own work dir
	cfg.WorkDir = ""

	var opts []pipeline.Option
	if withText && s.source != nil {
		opts = append(opts, pipeline.WithTextSource(s.source))
	}
	if s.config.CleanText {
		opts = append(opts, pipeline.WithCleaner(cleaner.New(s.config.Aggressive)))
	}
	return pipeline.NewRecoverer(cfg, log, opts...)
}

func (s *Service) fetch(ctx context.Context, key, dest string) error {
	rc, err := s.storage.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	return f.Close()
}

func (s *Service) upload(ctx context.Context, src, key string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := s.storage.Store(context.WithoutCancel(ctx), f, key); err != nil {
		return fmt.Errorf("failed to upload %s: %w", filepath.Base(src), err)
	}
	return nil
}

func safeName(name, fallback string) string {
	base := filepath.Base(name)
	if base == "." || base == "/" || base == "" {
		return fallback
	}
	return base
}

// GetStatus 获取任务状态
func (s *Service) GetStatus(ctx context.Context, taskID string) (*models.RecoveryTask, error) {
	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}
	return &models.RecoveryTask{
		ID:        status.TaskID,
		Status:    status.Status,
		Type:      queue.TaskTypeDeckRecover,
		Progress:  status.Progress,
		Error:     status.Error,
		Hint:      status.Hint,
		Archives:  status.Archives,
		Metadata:  map[string]string{},
		CreatedAt: status.StartedAt,
		UpdatedAt: status.FinishedAt,
	}, nil
}

// GetManifest returns the manifest of a finished task.
func (s *Service) GetManifest(ctx context.Context, taskID string) (*converters.RecoveryManifest, error) {
	status, err := s.GetStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if status.Status != models.StatusCompleted && status.Status != models.StatusFailed {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, status.Status)
	}

	rc, err := s.storage.Get(ctx, s.key(taskID, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}
	defer rc.Close()
	return converters.ParseJSON(rc)
}

// OpenArchive streams one emitted archive.
func (s *Service) OpenArchive(ctx context.Context, taskID, name string) (io.ReadCloser, error) {
	if !archiveName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidArchiveName, name)
	}
	return s.storage.Get(ctx, s.key(taskID, "archives", name))
}

// CancelTask 取消任务
func (s *Service) CancelTask(ctx context.Context, taskID string) error {
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}
	s.logger.Info("Task cancelled", logger.String("taskId", taskID))
	return nil
}

// CleanupTasks 清理过期任务
func (s *Service) CleanupTasks(ctx context.Context) error {
	threshold := time.Now().Add(-s.config.RetentionPeriod)
	if err := s.storage.CleanupBefore(ctx, threshold); err != nil {
		return fmt.Errorf("failed to cleanup storage: %w", err)
	}
	s.logger.Info("Completed tasks cleanup", logger.Time("threshold", threshold))
	return nil
}
