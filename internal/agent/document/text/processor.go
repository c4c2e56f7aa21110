package text

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/feichai0017/deck-recovery/internal/recovery"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

// Processor reads plain text files, trying UTF-8 first and then single-byte
// Western encodings.
type Processor struct {
	logger logger.Logger
}

func NewProcessor(log logger.Logger) *Processor {
	return &Processor{logger: log}
}

func (p *Processor) Name() string { return "text" }

func (p *Processor) CanProcess(ext string) bool {
	switch strings.ToLower(ext) {
	case ".txt", ".text", ".md":
		return true
	}
	return false
}

func (p *Processor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text, enc, err := recovery.DecodeText(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	p.logger.Debug("Decoded text file", logger.String("path", path), logger.String("encoding", enc))
	return text, nil
}
