package image

import (
	"errors"
	"strings"
)

// ErrOCRUnavailable is returned by builds without tesseract support.
var ErrOCRUnavailable = errors.New("ocr support not compiled in (build with -tags tesseract)")

// ProcessOptions 处理选项
type ProcessOptions struct {
	Languages        []string
	Whitelist        string
	MinConfidence    float64
	PreprocessConfig PreprocessConfig
}

type PreprocessConfig struct {
	AdaptiveBlockSize int
	AdaptiveConstant  float64
	Denoise           bool
	DenoiseStrength   float64
	Sharpen           bool
	SharpenStrength   float64
	ContrastNormalize bool
	Binarize          bool
}

func DefaultOptions() *ProcessOptions {
	return &ProcessOptions{
		Languages:     []string{"eng"},
		MinConfidence: 60,
		PreprocessConfig: PreprocessConfig{
			AdaptiveBlockSize: 15,
			AdaptiveConstant:  10,
			Denoise:           true,
			DenoiseStrength:   0.5,
			Sharpen:           true,
			SharpenStrength:   0.5,
			ContrastNormalize: true,
		},
	}
}

func canProcess(ext string) bool {
	switch strings.ToLower(ext) {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return true
	}
	return false
}
