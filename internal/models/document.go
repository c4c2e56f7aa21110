package models

import (
	"fmt"
	"time"
)

// MediaKind 媒体类型
type MediaKind string

const (
	MediaPNG  MediaKind = "png"
	MediaJPEG MediaKind = "jpeg"
)

// Ext returns the filename extension used for carved media of this kind.
func (k MediaKind) Ext() string {
	switch k {
	case MediaJPEG:
		return "jpg"
	default:
		return "png"
	}
}

// MediaObject is an image recovered from the raw byte stream.
type MediaObject struct {
	ID     int       `json:"id"`
	Kind   MediaKind `json:"kind"`
	Offset int       `json:"offset"`
	Bytes  []byte    `json:"-"`
}

// Filename is the media store key, image_<id>.<ext>.
func (m MediaObject) Filename() string {
	return fmt.Sprintf("image_%d.%s", m.ID, m.Kind.Ext())
}

// SlideGroup 幻灯片分组
type SlideGroup struct {
	Number int      `json:"number" yaml:"number"`
	Title  string   `json:"title" yaml:"title"`
	Body   []string `json:"body" yaml:"body"`
	Images []string `json:"images,omitempty" yaml:"images,omitempty"`
}

// RecoveryTask 恢复任务
type RecoveryTask struct {
	ID        string            `json:"id"`
	Status    ProcessingStatus  `json:"status"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Progress  float64           `json:"progress"`
	Error     string            `json:"error,omitempty"`
	Hint      string            `json:"hint,omitempty"`
	Archives  []string          `json:"archives,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusRunning   ProcessingStatus = "running"
	StatusCompleted ProcessingStatus = "completed"
	StatusFailed    ProcessingStatus = "failed"
	StatusCancelled ProcessingStatus = "cancelled"
)
