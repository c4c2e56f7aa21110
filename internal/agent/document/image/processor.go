//go:build tesseract

package image

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/deck-recovery/internal/agent/document"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

// Processor runs tesseract OCR over slide screenshots.
type Processor struct {
	logger        logger.Logger
	config        *ProcessOptions
	preprocessors []Preprocessor
}

func NewProcessor(log logger.Logger, opts *ProcessOptions) (*Processor, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Processor{
		logger:        log,
		config:        opts,
		preprocessors: DefaultPreprocessors(opts.PreprocessConfig),
	}, nil
}

func (p *Processor) Name() string { return "ocr" }

func (p *Processor) CanProcess(ext string) bool { return canProcess(ext) }

func (p *Processor) Extract(ctx context.Context, path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	processed, err := Apply(img, p.preprocessors)
	if err != nil {
		return "", fmt.Errorf("failed to preprocess image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// 为每个任务创建新的 Tesseract 客户端
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(p.config.Languages...); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if p.config.Whitelist != "" {
		if err := client.SetWhitelist(p.config.Whitelist); err != nil {
			return "", fmt.Errorf("failed to set whitelist: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, processed); err != nil {
		return "", err
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return "", fmt.Errorf("ocr failed: %w", err)
	}

	var lines []string
	for _, b := range boxes {
		if b.Confidence < p.config.MinConfidence {
			continue
		}
		if w := strings.TrimSpace(b.Word); w != "" {
			lines = append(lines, w)
		}
	}
	p.logger.Debug("OCR finished",
		logger.String("path", path),
		logger.Int("lines", len(boxes)),
		logger.Int("kept", len(lines)))
	if len(lines) == 0 {
		return "", document.ErrNoText
	}
	return strings.Join(lines, "\n"), nil
}
