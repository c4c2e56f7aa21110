package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/deck-recovery/internal/agent/document"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

type fakeProcessor struct {
	name  string
	ext   string
	out   string
	err   error
	calls int
}

func (p *fakeProcessor) Name() string               { return p.name }
func (p *fakeProcessor) CanProcess(ext string) bool { return ext == p.ext }
func (p *fakeProcessor) Extract(context.Context, string) (string, error) {
	p.calls++
	return p.out, p.err
}

func TestFactoryFallsThroughStrategies(t *testing.T) {
	failing := &fakeProcessor{name: "first", ext: ".pdf", err: errors.New("broken xref")}
	blank := &fakeProcessor{name: "second", ext: ".pdf", out: "  \n "}
	good := &fakeProcessor{name: "third", ext: ".pdf", out: "Title\n\nBody text"}
	unused := &fakeProcessor{name: "fourth", ext: ".pdf", out: "never"}

	log := logger.NewTestLogger()
	f := NewProcessorFactoryWith(log, failing, blank, good, unused)

	out, err := f.Extract(context.Background(), "/tmp/deck.PDF")
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nBody text", out)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, blank.calls)
	assert.Equal(t, 0, unused.calls)
	assert.Len(t, log.Find("Text strategy failed"), 2)
}

func TestFactoryJoinsErrorsWhenAllFail(t *testing.T) {
	cause := errors.New("bad header")
	f := NewProcessorFactoryWith(nil,
		&fakeProcessor{name: "a", ext: ".txt", err: cause},
		&fakeProcessor{name: "b", ext: ".txt"},
	)

	_, err := f.Extract(context.Background(), "notes.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, document.ErrNoText)
}

func TestFactoryRejectsUnknownExtension(t *testing.T) {
	f := NewProcessorFactoryWith(nil, &fakeProcessor{name: "a", ext: ".txt"})

	_, err := f.Extract(context.Background(), "deck.key")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDefaultFactoryReadsTextFiles(t *testing.T) {
	f, err := NewProcessorFactory(nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Agenda\n\nCaf\xe9 opening hours"), 0o644))

	out, err := f.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Agenda\n\nCafé opening hours", out)

	procs, err := f.GetProcessors(".pdf")
	require.NoError(t, err)
	require.Len(t, procs, 2)
	assert.Equal(t, "pdf-text", procs[0].Name())
	assert.Equal(t, "pdf-content", procs[1].Name())
}

func TestFactoryHonoursCancellation(t *testing.T) {
	p := &fakeProcessor{name: "a", ext: ".txt", out: "text"}
	f := NewProcessorFactoryWith(nil, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Extract(ctx, "a.txt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.calls)
}
