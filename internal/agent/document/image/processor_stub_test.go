//go:build !tesseract

package image

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubReportsMissingOCR(t *testing.T) {
	p, err := NewProcessor(nil, nil)
	require.NoError(t, err)
	assert.True(t, p.CanProcess(".TIFF"))
	_, err = p.Extract(context.Background(), "slide.png")
	assert.ErrorIs(t, err, ErrOCRUnavailable)
}
