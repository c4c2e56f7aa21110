package document

import (
	"context"
	"errors"
)

// ErrNoText is returned when a processor ran but found no text.
var ErrNoText = errors.New("no text extracted")

// Processor 文本提取器接口
type Processor interface {
	// Name 处理器名称, used in logs
	Name() string

	// CanProcess 检查是否可以处理指定扩展名的文件
	CanProcess(ext string) bool

	// Extract 提取文件中的纯文本
	Extract(ctx context.Context, path string) (string, error)
}
