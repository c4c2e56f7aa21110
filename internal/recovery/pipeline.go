package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/feichai0017/deck-recovery/internal/models"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

// HardSlideCap bounds the total slide count regardless of configuration.
const HardSlideCap = 100

// Config holds the numeric limits of a run.
type Config struct {
	MaxSlides     int
	SlidesPerFile int
	MaxFiles      int
	// WorkDir, when set, is used instead of a temporary directory and is left
	// in place together with the per-part directories.
	WorkDir string
}

func DefaultConfig() Config {
	return Config{MaxSlides: HardSlideCap, SlidesPerFile: 15, MaxFiles: 10}
}

func (c Config) Validate() error {
	if c.MaxSlides < 1 || c.SlidesPerFile < 1 || c.MaxFiles < 1 {
		return fmt.Errorf("invalid limits (max slides %d, slides per file %d, max files %d): all must be >= 1",
			c.MaxSlides, c.SlidesPerFile, c.MaxFiles)
	}
	return nil
}

// TextSource turns a pre-extracted text file of any supported format into text.
type TextSource interface {
	Extract(ctx context.Context, path string) (string, error)
}

// TextCleaner normalizes text before it is split into paragraphs.
type TextCleaner interface {
	Clean(text string) string
}

// Request describes one recovery run.
type Request struct {
	InputPath string
	TextPath  string
	OutputDir string
}

// Archive is one written output package.
type Archive struct {
	Part         int      `json:"part" yaml:"part"`
	Path         string   `json:"path" yaml:"path"`
	FirstSlide   int      `json:"firstSlide" yaml:"first_slide"`
	LastSlide    int      `json:"lastSlide" yaml:"last_slide"`
	Slides       int      `json:"slides" yaml:"slides"`
	Titles       []string `json:"titles" yaml:"titles"`
	Placeholders []string `json:"placeholders,omitempty" yaml:"placeholders,omitempty"`
}

// Result reports everything a run produced, including partial failures.
type Result struct {
	Images    int
	Rejected  int
	Fragments int
	Slides    []models.SlideGroup
	Archives  []Archive
	Failures  []ArchiveFailure
}

// Recoverer runs the carve, extract, segment, distribute and assemble stages.
type Recoverer struct {
	cfg       Config
	logger    logger.Logger
	source    TextSource
	cleaner   TextCleaner
	assembler *Assembler
}

type Option func(*Recoverer)

func WithTextSource(s TextSource) Option {
	return func(r *Recoverer) { r.source = s }
}

func WithCleaner(c TextCleaner) Option {
	return func(r *Recoverer) { r.cleaner = c }
}

func NewRecoverer(cfg Config, log logger.Logger, opts ...Option) (*Recoverer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	r := &Recoverer{
		cfg:       cfg,
		logger:    log.Named("recovery"),
		assembler: NewAssembler(log),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run recovers req.InputPath into rebuilt_part_<n>.pptx archives in req.OutputDir.
// It returns ErrNoSlideContent when nothing could be segmented into slides and
// ErrNoArchives when every archive failed; other per-archive failures are
// reported on the result.
func (r *Recoverer) Run(ctx context.Context, req Request) (*Result, error) {
	if req.InputPath == "" && req.TextPath == "" {
		return nil, errors.New("no input given")
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	workDir, release, err := r.acquireWorkDir()
	if err != nil {
		return nil, err
	}
	defer release()

	store, err := NewMediaStore(workDir)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var data []byte
	var media []models.MediaObject
	if req.InputPath != "" {
		if data, err = os.ReadFile(req.InputPath); err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		carver := NewCarver(r.logger)
		if media, err = carver.Carve(data, store); err != nil {
			return nil, err
		}
		res.Images = len(media)
		res.Rejected = len(carver.Rejections())
	}

	fragments, err := r.fragments(ctx, data, req.TextPath)
	if err != nil {
		return nil, err
	}
	res.Fragments = len(fragments)
	res.Slides = Segment(fragments, min(HardSlideCap, r.cfg.MaxSlides))
	DistributeImages(res.Slides, MediaNames(media))

	r.logger.Info("Segmented slides",
		logger.Int("images", res.Images),
		logger.Int("fragments", res.Fragments),
		logger.Int("slides", len(res.Slides)),
	)
	if len(res.Slides) == 0 {
		return res, ErrNoSlideContent
	}

	for _, p := range SplitSlides(res.Slides, r.cfg.SlidesPerFile, r.cfg.MaxFiles) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		archive, err := r.emit(workDir, req.OutputDir, p, store)
		if err != nil {
			r.logger.Error("Failed to write archive", logger.Int("part", p.Part), logger.Error(err))
			res.Failures = append(res.Failures, ArchiveFailure{Part: p.Part, Err: err})
			continue
		}
		res.Archives = append(res.Archives, *archive)
	}

	if len(res.Archives) == 0 {
		return res, ErrNoArchives
	}
	return res, nil
}

func (r *Recoverer) fragments(ctx context.Context, data []byte, textPath string) ([]string, error) {
	if textPath == "" {
		return ExtractFragments(data), nil
	}

	var text string
	if r.source != nil {
		t, err := r.source.Extract(ctx, textPath)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text source: %w", err)
		}
		text = t
	} else {
		raw, err := os.ReadFile(textPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read text source: %w", err)
		}
		if text, _, err = DecodeText(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", textPath, err)
		}
	}
	if r.cleaner != nil {
		text = r.cleaner.Clean(text)
	}
	return SplitParagraphs(text), nil
}

func (r *Recoverer) emit(workDir, outDir string, p Partition, store *MediaStore) (*Archive, error) {
	partDir := filepath.Join(workDir, fmt.Sprintf("part_%d", p.Part))
	if err := os.RemoveAll(partDir); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", partDir, err)
	}
	stats, err := r.assembler.Build(partDir, p, store)
	if err != nil {
		return nil, err
	}

	dest := filepath.Join(outDir, fmt.Sprintf("rebuilt_part_%d.pptx", p.Part))
	if err := WriteArchive(partDir, dest); err != nil {
		return nil, err
	}
	if r.cfg.WorkDir == "" {
		if err := os.RemoveAll(partDir); err != nil {
			r.logger.Warn("Failed to remove part dir", logger.String("dir", partDir), logger.Error(err))
		}
	}

	titles := make([]string, len(p.Slides))
	for i, g := range p.Slides {
		titles[i] = g.Title
	}
	r.logger.Info("Archive written",
		logger.Int("part", p.Part),
		logger.String("path", dest),
		logger.Int("slides", stats.Slides),
		logger.Int("placeholders", len(stats.Placeholders)),
	)
	return &Archive{
		Part:         p.Part,
		Path:         dest,
		FirstSlide:   p.FirstSlide,
		LastSlide:    p.LastSlide,
		Slides:       stats.Slides,
		Titles:       titles,
		Placeholders: stats.Placeholders,
	}, nil
}

func (r *Recoverer) acquireWorkDir() (string, func(), error) {
	if r.cfg.WorkDir != "" {
		if err := os.MkdirAll(r.cfg.WorkDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create work dir: %w", err)
		}
		return r.cfg.WorkDir, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "deck-recovery-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("Failed to remove work dir", logger.String("dir", dir), logger.Error(err))
		}
	}, nil
}
