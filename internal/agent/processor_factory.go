package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/feichai0017/deck-recovery/internal/agent/document"
	"github.com/feichai0017/deck-recovery/internal/agent/document/image"
	"github.com/feichai0017/deck-recovery/internal/agent/document/pdf"
	"github.com/feichai0017/deck-recovery/internal/agent/document/pptx"
	"github.com/feichai0017/deck-recovery/internal/agent/document/text"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

// ErrUnsupportedType is returned for extensions no processor accepts.
var ErrUnsupportedType = errors.New("unsupported file type")

// ProcessorFactory 按扩展名选择文本提取策略. Strategies registered for the
// same extension are tried in registration order.
type ProcessorFactory struct {
	processors []document.Processor
	logger     logger.Logger
}

// NewProcessorFactory registers the built-in processors. OCR is included but
// fails with image.ErrOCRUnavailable unless built with -tags tesseract.
func NewProcessorFactory(log logger.Logger) (*ProcessorFactory, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Named("text-source")

	ocr, err := image.NewProcessor(log, image.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create image processor: %w", err)
	}

	return NewProcessorFactoryWith(log,
		text.NewProcessor(log),
		pdf.NewProcessor(log),
		pdf.NewContentProcessor(log),
		pptx.NewProcessor(log),
		ocr,
	), nil
}

// NewProcessorFactoryWith builds a factory over an explicit processor list.
func NewProcessorFactoryWith(log logger.Logger, processors ...document.Processor) *ProcessorFactory {
	if log == nil {
		log = logger.NewNop()
	}
	return &ProcessorFactory{processors: processors, logger: log}
}

// GetProcessors returns the strategies for ext in the order they are tried.
func (f *ProcessorFactory) GetProcessors(ext string) ([]document.Processor, error) {
	ext = strings.ToLower(ext)
	var out []document.Processor
	for _, p := range f.processors {
		if p.CanProcess(ext) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	return out, nil
}

// Extract returns the first non-blank text produced by the strategies for
// path's extension. When all fail, the errors are joined.
func (f *ProcessorFactory) Extract(ctx context.Context, path string) (string, error) {
	processors, err := f.GetProcessors(filepath.Ext(path))
	if err != nil {
		return "", err
	}

	var errs []error
	for _, p := range processors {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := p.Extract(ctx, path)
		if err == nil && strings.TrimSpace(out) == "" {
			err = document.ErrNoText
		}
		if err != nil {
			f.logger.Warn("Text strategy failed",
				logger.String("processor", p.Name()),
				logger.String("path", path),
				logger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		f.logger.Info("Extracted text",
			logger.String("processor", p.Name()),
			logger.String("path", path),
			logger.Int("chars", len(out)))
		return out, nil
	}
	return "", errors.Join(errs...)
}
