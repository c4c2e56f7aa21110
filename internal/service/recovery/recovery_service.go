package recovery

import (
	"context"
	"io"

	"github.com/feichai0017/deck-recovery/internal/models"
	"github.com/feichai0017/deck-recovery/pkg/converters"
	"github.com/feichai0017/deck-recovery/pkg/queue"
)

// Upload is one submitted file. Open may be called more than once.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadSeekCloser, error)
}

// Limits overrides the configured slide caps for one task. Zero keeps the default.
type Limits struct {
	MaxSlides     int `json:"maxSlides,omitempty"`
	SlidesPerFile int `json:"slidesPerFile,omitempty"`
	MaxFiles      int `json:"maxFiles,omitempty"`
}

type SubmitRequest struct {
	Deck   Upload
	Text   *Upload
	Limits Limits
}

// DeckRecoverer 恢复服务接口
type DeckRecoverer interface {
	Submit(ctx context.Context, req SubmitRequest) (*models.RecoveryTask, error)
	SubmitBatch(ctx context.Context, decks []Upload, limits Limits) ([]*models.RecoveryTask, error)
	GetStatus(ctx context.Context, taskID string) (*models.RecoveryTask, error)
	GetManifest(ctx context.Context, taskID string) (*converters.RecoveryManifest, error)
	OpenArchive(ctx context.Context, taskID, name string) (io.ReadCloser, error)
	CancelTask(ctx context.Context, taskID string) error
	HandleRecovery(ctx context.Context, task *queue.Task) error
	CleanupTasks(ctx context.Context) error
}

var _ DeckRecoverer = (*Service)(nil)
