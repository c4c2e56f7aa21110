//go:build !tesseract

package image

import (
	"context"

	"github.com/feichai0017/deck-recovery/pkg/logger"
)

// Processor is a placeholder for builds without tesseract; every Extract
// call fails with ErrOCRUnavailable.
type Processor struct {
	logger logger.Logger
}

func NewProcessor(log logger.Logger, _ *ProcessOptions) (*Processor, error) {
	return &Processor{logger: log}, nil
}

func (p *Processor) Name() string { return "ocr" }

func (p *Processor) CanProcess(ext string) bool { return canProcess(ext) }

func (p *Processor) Extract(context.Context, string) (string, error) {
	return "", ErrOCRUnavailable
}
