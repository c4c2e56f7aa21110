package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/deck-recovery/internal/agent/document"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

// Processor extracts page text with ledongthuc/pdf.
type Processor struct {
	logger     logger.Logger
	maxWorkers int
}

func NewProcessor(log logger.Logger) *Processor {
	return &Processor{
		logger:     log,
		maxWorkers: 4,
	}
}

func (p *Processor) Name() string { return "pdf-text" }

func (p *Processor) CanProcess(ext string) bool {
	return strings.EqualFold(ext, ".pdf")
}

func (p *Processor) Extract(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	// bytes.Reader 实现了 io.ReaderAt
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := pdfReader.NumPage()
	pages := make([]string, numPages)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)
	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			page := pdfReader.Page(pageNum)
			if page.V.IsNull() {
				return nil
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				return fmt.Errorf("failed to get text from page %d: %w", pageNum, err)
			}
			pages[pageNum-1] = strings.TrimSpace(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	// 每页之间空一行, so pages split into separate paragraphs
	var kept []string
	for _, t := range pages {
		if t != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return "", document.ErrNoText
	}
	p.logger.Debug("Extracted pdf text", logger.Int("pages", numPages), logger.Int("nonEmpty", len(kept)))
	return strings.Join(kept, "\n\n"), nil
}
