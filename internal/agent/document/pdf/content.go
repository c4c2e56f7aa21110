package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/feichai0017/deck-recovery/internal/agent/document"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

var (
	showTextPattern  = regexp.MustCompile(`\((?:\\.|[^\\)])*\)\s*Tj|\[(?:[^\]])*\]\s*TJ`)
	stringLitPattern = regexp.MustCompile(`\((?:\\.|[^\\)])*\)`)
)

// ContentProcessor dumps raw page content streams with pdfcpu and pulls the
// strings out of Tj/TJ operators. It copes with files the page-text reader
// rejects.
type ContentProcessor struct {
	logger logger.Logger
}

func NewContentProcessor(log logger.Logger) *ContentProcessor {
	return &ContentProcessor{logger: log}
}

func (p *ContentProcessor) Name() string { return "pdf-content" }

func (p *ContentProcessor) CanProcess(ext string) bool {
	return strings.EqualFold(ext, ".pdf")
}

func (p *ContentProcessor) Extract(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "pdf-content-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, tmpDir, nil, conf); err != nil {
		return "", fmt.Errorf("pdfcpu content extraction failed: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(tmpDir, "*.txt"))
	if err != nil {
		return "", err
	}
	sort.Strings(files)

	var pages []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := os.ReadFile(f)
		if err != nil {
			p.logger.Warn("Failed to read content stream", logger.String("file", f), logger.Error(err))
			continue
		}
		if t := TextFromContentStream(string(raw)); t != "" {
			pages = append(pages, t)
		}
	}
	if len(pages) == 0 {
		return "", document.ErrNoText
	}
	return strings.Join(pages, "\n\n"), nil
}

// TextFromContentStream returns the text shown by Tj and TJ operators, one
// line per operator.
func TextFromContentStream(stream string) string {
	var lines []string
	for _, op := range showTextPattern.FindAllString(stream, -1) {
		var sb strings.Builder
		for _, lit := range stringLitPattern.FindAllString(op, -1) {
			sb.WriteString(decodePDFString(lit[1 : len(lit)-1]))
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

func decodePDFString(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '(', ')', '\\':
			sb.WriteByte(s[i])
		default:
			// octal escape, up to three digits
			if s[i] >= '0' && s[i] <= '7' {
				v := 0
				j := i
				for ; j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7'; j++ {
					v = v*8 + int(s[j]-'0')
				}
				sb.WriteByte(byte(v))
				i = j - 1
			} else {
				sb.WriteByte(s[i])
			}
		}
	}
	return sb.String()
}
