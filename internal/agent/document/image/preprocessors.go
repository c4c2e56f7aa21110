package image

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var errNilImage = errors.New("input image is nil")

// Preprocessor transforms an image before OCR.
type Preprocessor interface {
	Process(img image.Image) (image.Image, error)
}

// 灰度处理器
type GrayscaleProcessor struct{}

func NewGrayscaleProcessor() *GrayscaleProcessor {
	return &GrayscaleProcessor{}
}

func (p *GrayscaleProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, errNilImage
	}
	return imaging.Grayscale(img), nil
}

// 降噪处理器
type DenoiseProcessor struct {
	strength float64
}

func NewDenoiseProcessor(strength float64) *DenoiseProcessor {
	return &DenoiseProcessor{strength: strength}
}

func (p *DenoiseProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, errNilImage
	}
	if p.strength <= 0 {
		return img, nil
	}
	// 使用高斯模糊进行降噪
	return imaging.Blur(img, p.strength), nil
}

// 锐化处理器
type SharpenProcessor struct {
	strength float64
}

func NewSharpenProcessor(strength float64) *SharpenProcessor {
	return &SharpenProcessor{strength: strength}
}

func (p *SharpenProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, errNilImage
	}
	if p.strength <= 0 {
		return img, nil
	}
	return imaging.Sharpen(img, p.strength), nil
}

// 对比度处理器
type ContrastProcessor struct {
	percentage float64
}

func NewContrastProcessor(percentage float64) *ContrastProcessor {
	return &ContrastProcessor{percentage: percentage}
}

func (p *ContrastProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, errNilImage
	}
	return imaging.AdjustContrast(img, p.percentage), nil
}

// 自适应阈值处理器
type AdaptiveThresholdProcessor struct {
	blockSize int
	constant  float64
}

func NewAdaptiveThresholdProcessor(blockSize int, constant float64) *AdaptiveThresholdProcessor {
	if blockSize < 3 {
		blockSize = 3
	}
	return &AdaptiveThresholdProcessor{
		blockSize: blockSize,
		constant:  constant,
	}
}

// Process marks a pixel black when it is darker than its local mean minus the
// constant. Local sums come from an integral image.
func (p *AdaptiveThresholdProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, errNilImage
	}

	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(gray.Pix[y*gray.Stride+x*4])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + row
		}
	}

	result := image.NewGray(image.Rect(0, 0, w, h))
	half := p.blockSize / 2
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-half), min(h, y+half+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-half), min(w, x+half+1)
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			count := int64((y1 - y0) * (x1 - x0))
			mean := float64(sum) / float64(count)
			pixel := float64(gray.Pix[y*gray.Stride+x*4])
			if pixel < mean-p.constant {
				result.SetGray(x, y, color.Gray{Y: 0})
			} else {
				result.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return result, nil
}

// Apply runs the preprocessors in order.
func Apply(img image.Image, steps []Preprocessor) (image.Image, error) {
	var err error
	for _, s := range steps {
		if img, err = s.Process(img); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// DefaultPreprocessors builds the pipeline described by cfg.
func DefaultPreprocessors(cfg PreprocessConfig) []Preprocessor {
	steps := []Preprocessor{NewGrayscaleProcessor()}
	if cfg.Denoise {
		steps = append(steps, NewDenoiseProcessor(cfg.DenoiseStrength))
	}
	if cfg.ContrastNormalize {
		steps = append(steps, NewContrastProcessor(20))
	}
	if cfg.Sharpen {
		steps = append(steps, NewSharpenProcessor(cfg.SharpenStrength))
	}
	if cfg.Binarize {
		steps = append(steps, NewAdaptiveThresholdProcessor(cfg.AdaptiveBlockSize, cfg.AdaptiveConstant))
	}
	return steps
}
