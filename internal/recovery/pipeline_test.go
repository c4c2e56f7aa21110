package recovery

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/deck-recovery/pkg/logger"
)

// filler is binary junk with no printable runs and no image signatures.
func filler(n int) []byte {
	return bytes.Repeat([]byte{0x00, 0x01, 0x80, 0x02}, n/4+1)[:n]
}

func damagedDeck(t *testing.T) []byte {
	return bytes.Join([][]byte{
		filler(128),
		[]byte(`<p:sp><a:t>Agenda:</a:t></p:sp><p:sp><a:t>Budget planning for the next year</a:t></p:sp>`),
		filler(64),
		pngBytes(t, 4, 4, color.NRGBA{R: 200, G: 10, B: 10, A: 255}),
		filler(64),
		[]byte(`<a:t>Results:</a:t><a:t>Revenue grew in every region we track</a:t>`),
		filler(32),
	}, nil)
}

func writeInput(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broken.pptx")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestRecoverer(t *testing.T, cfg Config, opts ...Option) *Recoverer {
	t.Helper()
	r, err := NewRecoverer(cfg, logger.NewTestLogger(), opts...)
	require.NoError(t, err)
	return r
}

func TestRunRebuildsArchives(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlidesPerFile = 1
	out := t.TempDir()

	res, err := newTestRecoverer(t, cfg).Run(context.Background(), Request{
		InputPath: writeInput(t, damagedDeck(t)),
		OutputDir: out,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Images)
	assert.Equal(t, 4, res.Fragments)
	require.Len(t, res.Slides, 2)
	assert.Equal(t, "Agenda:", res.Slides[0].Title)
	assert.Equal(t, []string{"image_1.png"}, res.Slides[0].Images)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Archives, 2)

	for i, a := range res.Archives {
		assert.Equal(t, filepath.Join(out, fmt.Sprintf("rebuilt_part_%d.pptx", i+1)), a.Path)
		assert.Equal(t, 1, a.Slides)
		assert.Equal(t, i+1, a.FirstSlide)

		entries := zipEntries(t, a.Path)
		for _, name := range []string{contentTypesPart, "_rels/.rels", "ppt/presentation.xml",
			"ppt/_rels/presentation.xml.rels", "ppt/slides/slide1.xml", "ppt/slides/_rels/slide1.xml.rels"} {
			assert.Contains(t, entries, name)
		}
		assert.NotContains(t, entries, "ppt/slides/slide2.xml")
	}

	first := zipEntries(t, res.Archives[0].Path)
	assert.Contains(t, first, "ppt/media/image_1.png")
	assert.Len(t, embedPattern.FindAllString(string(first["ppt/slides/slide1.xml"]), -1), 1)
	assert.Contains(t, string(first["ppt/slides/slide1.xml"]), "Budget planning for the next year")

	second := zipEntries(t, res.Archives[1].Path)
	assert.Contains(t, string(second["ppt/slides/slide1.xml"]), "Results:")
	assert.NotContains(t, second, "ppt/media/image_1.png")
}

func TestRunNoContentIsTerminal(t *testing.T) {
	out := t.TempDir()
	work := filepath.Join(t.TempDir(), "work")
	cfg := DefaultConfig()
	cfg.WorkDir = work

	res, err := newTestRecoverer(t, cfg).Run(context.Background(), Request{
		InputPath: writeInput(t, filler(4096)),
		OutputDir: out,
	})
	require.ErrorIs(t, err, ErrNoSlideContent)
	assert.Empty(t, res.Archives)
	assert.Zero(t, res.Images)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunContinuesAfterArchiveFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlidesPerFile = 1
	out := t.TempDir()
	// a directory in the way makes part 1 fail to serialize
	require.NoError(t, os.Mkdir(filepath.Join(out, "rebuilt_part_1.pptx"), 0o755))

	res, err := newTestRecoverer(t, cfg).Run(context.Background(), Request{
		InputPath: writeInput(t, damagedDeck(t)),
		OutputDir: out,
	})
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Part)
	require.Len(t, res.Archives, 1)
	assert.Equal(t, 2, res.Archives[0].Part)
	assert.FileExists(t, res.Archives[0].Path)
}

func TestRunAllArchivesFail(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(out, "rebuilt_part_1.pptx"), 0o755))

	_, err := newTestRecoverer(t, DefaultConfig()).Run(context.Background(), Request{
		InputPath: writeInput(t, damagedDeck(t)),
		OutputDir: out,
	})
	assert.ErrorIs(t, err, ErrNoArchives)
}

func TestRunWithTextSource(t *testing.T) {
	textPath := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(textPath,
		[]byte("Overview:\nIntro line.\n\nDetails:\nMore text here that is long enough."), 0o644))

	cfg := DefaultConfig()
	cfg.MaxSlides = 10
	res, err := newTestRecoverer(t, cfg).Run(context.Background(), Request{
		InputPath: writeInput(t, damagedDeck(t)),
		TextPath:  textPath,
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)

	require.Len(t, res.Slides, 2)
	assert.Equal(t, "Overview:", res.Slides[0].Title)
	assert.Equal(t, "Details:", res.Slides[1].Title)
	assert.Equal(t, []string{"image_1.png"}, res.Slides[0].Images)
	require.Len(t, res.Archives, 1)
	assert.Equal(t, []string{"Overview:", "Details:"}, res.Archives[0].Titles)
}

type headingCleaner struct{}

func (headingCleaner) Clean(text string) string {
	return "EXTRA HEADING\n\n" + text
}

type staticSource struct{ text string }

func (s staticSource) Extract(context.Context, string) (string, error) {
	return s.text, nil
}

func TestRunUsesCollaborators(t *testing.T) {
	r := newTestRecoverer(t, DefaultConfig(),
		WithTextSource(staticSource{text: "Agenda:\nfirst point of the meeting"}),
		WithCleaner(headingCleaner{}),
	)

	res, err := r.Run(context.Background(), Request{TextPath: "ignored.pdf", OutputDir: t.TempDir()})
	require.NoError(t, err)

	require.Len(t, res.Slides, 1)
	assert.Equal(t, "Agenda:", res.Slides[0].Title)
	assert.Zero(t, res.Images)
}

func TestRunKeepsPersistentWorkDir(t *testing.T) {
	work := filepath.Join(t.TempDir(), "work")
	cfg := DefaultConfig()
	cfg.WorkDir = work

	_, err := newTestRecoverer(t, cfg).Run(context.Background(), Request{
		InputPath: writeInput(t, damagedDeck(t)),
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(work, "media", "image_1.png"))
	assert.DirExists(t, filepath.Join(work, "part_1"))
}

func TestRunReusedWorkDirStartsClean(t *testing.T) {
	work := filepath.Join(t.TempDir(), "work")
	cfg := DefaultConfig()
	cfg.WorkDir = work

	var sections []string
	for i := 1; i <= 8; i++ {
		sections = append(sections, fmt.Sprintf("SECTION %d\n\nnotes for section number %d", i, i))
	}
	first, err := newTestRecoverer(t, cfg, WithTextSource(staticSource{text: strings.Join(sections, "\n\n")})).
		Run(context.Background(), Request{
			InputPath: writeInput(t, damagedDeck(t)),
			TextPath:  "outline.txt",
			OutputDir: t.TempDir(),
		})
	require.NoError(t, err)
	require.Len(t, first.Slides, 8)
	require.FileExists(t, filepath.Join(work, "media", "image_1.png"))

	text := "Overview:\nIntro line.\n\nDetails:\nMore text here that is long enough."
	second, err := newTestRecoverer(t, cfg, WithTextSource(staticSource{text: text})).
		Run(context.Background(), Request{TextPath: "outline.txt", OutputDir: t.TempDir()})
	require.NoError(t, err)
	require.Len(t, second.Archives, 1)
	assert.Equal(t, 2, second.Archives[0].Slides)

	var slides, media []string
	for name := range zipEntries(t, second.Archives[0].Path) {
		switch {
		case strings.HasPrefix(name, "ppt/slides/slide"):
			slides = append(slides, name)
		case strings.HasPrefix(name, "ppt/media/") && !strings.HasSuffix(name, "/"):
			media = append(media, name)
		}
	}
	assert.ElementsMatch(t, []string{"ppt/slides/slide1.xml", "ppt/slides/slide2.xml"}, slides)
	assert.Empty(t, media)
	assert.NoFileExists(t, filepath.Join(work, "media", "image_1.png"))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := t.TempDir()

	res, err := newTestRecoverer(t, DefaultConfig()).Run(ctx, Request{
		InputPath: writeInput(t, damagedDeck(t)),
		OutputDir: out,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Archives)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxFiles = 0
	_, err := NewRecoverer(cfg, nil)
	assert.Error(t, err)
}
