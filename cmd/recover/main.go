package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/feichai0017/deck-recovery/config"
	"github.com/feichai0017/deck-recovery/internal/agent"
	"github.com/feichai0017/deck-recovery/internal/cleaner"
	"github.com/feichai0017/deck-recovery/internal/recovery"
	"github.com/feichai0017/deck-recovery/pkg/converters"
	"github.com/feichai0017/deck-recovery/pkg/logger"
	"github.com/feichai0017/deck-recovery/pkg/storage"
)

const (
	exitOK    = 0
	exitError = 1
	exitEmpty = 2
)

type options struct {
	outputDir     string
	maxSlides     int
	slidesPerFile int
	maxFiles      int
	extractDir    string
	textFile      string
	clean         bool
	configPath    string
	publish       bool
	verbose       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (*options, string, error) {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: recover [flags] <input.pptx>")
		fs.PrintDefaults()
	}

	o := &options{}
	def := recovery.DefaultConfig()
	for _, name := range []string{"o", "output-dir"} {
		fs.StringVar(&o.outputDir, name, "", "directory for rebuilt_part_<n>.pptx (default from config)")
	}
	for _, name := range []string{"m", "max-slides"} {
		fs.IntVar(&o.maxSlides, name, 0, fmt.Sprintf("total slide cap, at most %d (default %d)", recovery.HardSlideCap, def.MaxSlides))
	}
	for _, name := range []string{"s", "slides-per-file"} {
		fs.IntVar(&o.slidesPerFile, name, 0, fmt.Sprintf("slides per output file (default %d)", def.SlidesPerFile))
	}
	for _, name := range []string{"f", "max-files"} {
		fs.IntVar(&o.maxFiles, name, 0, fmt.Sprintf("maximum output files (default %d)", def.MaxFiles))
	}
	for _, name := range []string{"e", "extract-dir"} {
		fs.StringVar(&o.extractDir, name, "", "keep carved media and part directories here")
	}
	for _, name := range []string{"t", "text-file"} {
		fs.StringVar(&o.textFile, name, "", "pre-extracted text (.txt, .pdf, .pptx or an image with OCR)")
	}
	fs.BoolVar(&o.clean, "clean", false, "normalize text before segmenting")
	fs.StringVar(&o.configPath, "config", "", "path to config file")
	fs.BoolVar(&o.publish, "publish", false, "upload archives and manifest to configured storage")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, "", errors.New("expected exactly one input file")
	}
	return o, fs.Arg(0), nil
}

// apply layers explicit flags over the loaded config.
func (o *options) apply(cfg *config.Config) error {
	r := &cfg.Recovery
	if o.outputDir != "" {
		r.OutputDir = o.outputDir
	}
	if o.maxSlides != 0 {
		r.MaxSlides = o.maxSlides
	}
	if o.slidesPerFile != 0 {
		r.SlidesPerFile = o.slidesPerFile
	}
	if o.maxFiles != 0 {
		r.MaxFiles = o.maxFiles
	}
	if o.extractDir != "" {
		r.WorkDir = o.extractDir
	}
	if o.clean {
		r.CleanText = true
	}
	if o.verbose {
		cfg.Logger.Level = "debug"
	}
	return cfg.Validate()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, input, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}
	if err := o.apply(cfg); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}

	log, err := logger.FromConfig(cfg.Logger)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}
	defer log.Sync()

	var opts []recovery.Option
	if o.textFile != "" {
		factory, err := agent.NewProcessorFactory(log)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return exitError
		}
		opts = append(opts, recovery.WithTextSource(factory))
	}
	if cfg.Recovery.CleanText {
		opts = append(opts, recovery.WithCleaner(cleaner.New(cfg.Recovery.Aggressive)))
	}

	rec, err := recovery.NewRecoverer(cfg.Recovery.Pipeline(), log, opts...)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}

	res, runErr := rec.Run(ctx, recovery.Request{
		InputPath: input,
		TextPath:  o.textFile,
		OutputDir: cfg.Recovery.OutputDir,
	})

	manifest := converters.NewManifest(input, o.textFile, res, runErr)
	if res != nil {
		if err := manifest.SaveYAML(filepath.Join(cfg.Recovery.OutputDir, "manifest.yaml")); err != nil {
			log.Warn("Failed to write manifest", logger.Error(err))
		}
	}
	report(stdout, manifest)

	if runErr == nil && o.publish {
		if err := publish(ctx, cfg, manifest, log); err != nil {
			fmt.Fprintln(stderr, "error: publish:", err)
			return exitError
		}
	}

	switch {
	case errors.Is(runErr, recovery.ErrNoSlideContent):
		fmt.Fprintln(stderr, "no slide content could be recovered; try --text-file with text extracted from the deck")
		return exitEmpty
	case runErr != nil:
		fmt.Fprintln(stderr, "error:", runErr)
		return exitError
	}
	return exitOK
}

func report(w io.Writer, m *converters.RecoveryManifest) {
	fmt.Fprintf(w, "images: %d (rejected %d)  fragments: %d  slides: %d\n",
		m.Counts.Images, m.Counts.Rejected, m.Counts.Fragments, m.Counts.Slides)
	for _, a := range m.Archives {
		fmt.Fprintf(w, "  %s  slides %d-%d\n", a.Path, a.FirstSlide, a.LastSlide)
	}
	for _, f := range m.Failures {
		fmt.Fprintf(w, "  part %d failed: %s\n", f.Part, f.Error)
	}
}

// publish uploads the archives and a JSON manifest under <prefix>/<run id>/.
func publish(ctx context.Context, cfg *config.Config, m *converters.RecoveryManifest, log logger.Logger) error {
	store, err := storage.NewStorage(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	runID := uuid.New().String()
	m.TaskID = runID

	for i := range m.Archives {
		a := &m.Archives[i]
		f, err := os.Open(a.Path)
		if err != nil {
			return err
		}
		key, err := store.Store(ctx, f, path.Join(cfg.Storage.Prefix, runID, a.Name))
		f.Close()
		if err != nil {
			return err
		}
		a.Path = key
	}

	pr, pw := io.Pipe()
	go func() { pw.CloseWithError(m.WriteJSON(pw)) }()
	if _, err := store.Store(ctx, pr, path.Join(cfg.Storage.Prefix, runID, "manifest.json")); err != nil {
		pr.CloseWithError(err)
		return err
	}
	log.Info("Published recovery", logger.String("runId", runID), logger.Int("archives", len(m.Archives)))
	return nil
}
