package recovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestExtractFragmentsFromMixedBytes(t *testing.T) {
	data := []byte("\x00\x01PK\x03\x04<?xml version=\"1.0\"?><p:sld><a:t>Quarterly Review</a:t>" +
		"\xff\xfe<a:t xml:space=\"preserve\">  R&amp;D budget  </a:t><a:t>ok</a:t>" +
		"<a:t>Quarterly Review</a:t>\x02\x03the numbers went up this year\x9c\x00")

	got := ExtractFragments(data)

	require.NotEmpty(t, got)
	assert.Equal(t, "Quarterly Review", got[0])
	assert.Equal(t, "R&D budget", got[1])
	assert.NotContains(t, got, "ok")
	assert.Contains(t, got, "the numbers went up this year")

	seen := map[string]bool{}
	for _, f := range got {
		assert.False(t, seen[f], "duplicate fragment %q", f)
		seen[f] = true
	}
}

func TestExtractFragmentsIsIdempotent(t *testing.T) {
	data := []byte("<a:t>Alpha Title</a:t>junk\x00\x01<a:t>Alpha Title</a:t> repeated sentence here. repeated sentence here.")

	first := ExtractFragments(data)
	second := ExtractFragments(data)
	assert.Equal(t, first, second)
	assert.Equal(t, first, dedupe(first))
}

func TestExtractFragmentsShortRunsIgnored(t *testing.T) {
	assert.Empty(t, ExtractFragments([]byte("\x00abc\x00defghi\x00")))
}

func TestSplitParagraphs(t *testing.T) {
	text := "First paragraph\nstill first.\r\n\r\n  \n Second one \n\n\n\nThird"
	assert.Equal(t, []string{"First paragraph\nstill first.", "Second one", "Third"}, SplitParagraphs(text))
	assert.Empty(t, SplitParagraphs("  \n\n  "))
}

func TestDecodeTextFallsBackToLegacyEncodings(t *testing.T) {
	utf, enc, err := DecodeText([]byte("caf\xc3\xa9"))
	require.NoError(t, err)
	assert.Equal(t, "café", utf)
	assert.Equal(t, "utf-8", enc)

	latin, err := charmap.ISO8859_1.NewEncoder().String("naïve résumé")
	require.NoError(t, err)
	text, enc, err := DecodeText([]byte(latin))
	require.NoError(t, err)
	assert.Equal(t, "naïve résumé", text)
	assert.Equal(t, "latin-1", enc)

	// 0x93/0x94 are C1 controls in latin-1 but curly quotes in cp1252
	text, enc, err = DecodeText([]byte("\x93quoted\x94"))
	require.NoError(t, err)
	assert.Equal(t, "“quoted”", text)
	assert.Equal(t, "cp1252", enc)
}

func TestDecodeTextRejectsBinary(t *testing.T) {
	_, _, err := DecodeText([]byte("text\x00with\x00nulls"))
	assert.ErrorIs(t, err, ErrUndecodableText)
}

func TestLoadParagraphs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbfOne\n\nTwo\n"), 0o644))

	got, err := LoadParagraphs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Two"}, got)

	_, err = LoadParagraphs(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
