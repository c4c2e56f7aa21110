package pptx

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/feichai0017/deck-recovery/internal/agent/document"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

const drawingNS = "http://schemas.openxmlformats.org/drawingml/2006/main"

// Processor reads text runs from presentation packages whose zip directory is
// still readable. Slides that fail to parse are skipped.
type Processor struct {
	logger logger.Logger
}

func NewProcessor(log logger.Logger) *Processor {
	return &Processor{logger: log}
}

func (p *Processor) Name() string { return "pptx" }

func (p *Processor) CanProcess(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pptx", ".pptm", ".potx":
		return true
	}
	return false
}

func (p *Processor) Extract(ctx context.Context, filePath string) (string, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open package: %w", err)
	}
	defer r.Close()

	var slides []*zip.File
	for _, f := range r.File {
		if isSlidePart(f.Name) {
			slides = append(slides, f)
		}
	}
	sort.Slice(slides, func(i, j int) bool {
		return slideIndex(slides[i].Name) < slideIndex(slides[j].Name)
	})

	var paragraphs []string
	for _, f := range slides {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := readSlide(f)
		if err != nil {
			p.logger.Warn("Skipping unreadable slide", logger.String("part", f.Name), logger.Error(err))
			continue
		}
		paragraphs = append(paragraphs, text...)
	}
	if len(paragraphs) == 0 {
		return "", document.ErrNoText
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func isSlidePart(name string) bool {
	dir, file := path.Split(name)
	return dir == "ppt/slides/" && strings.HasPrefix(file, "slide") && strings.HasSuffix(file, ".xml")
}

func slideIndex(name string) int {
	base := strings.TrimSuffix(strings.TrimPrefix(path.Base(name), "slide"), ".xml")
	n, err := strconv.Atoi(base)
	if err != nil {
		return 1 << 30
	}
	return n
}

func readSlide(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ParagraphTexts(rc)
}

// ParagraphTexts walks a slide part and returns the concatenated a:t runs of
// each a:p paragraph, skipping empty ones.
func ParagraphTexts(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		out    []string
		cur    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// keep what parsed before the damage
			if len(out) > 0 {
				return out, nil
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != drawingNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				cur.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			if t.Name.Space != drawingNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(cur.String()); s != "" {
					out = append(out, s)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return out, nil
}
