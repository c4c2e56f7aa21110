package recovery

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/feichai0017/deck-recovery/internal/models"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

var (
	pngStart  = []byte("\x89PNG\r\n\x1a\n")
	pngEnd    = []byte("IEND\xaeB\x60\x82")
	jpegStart = []byte{0xff, 0xd8, 0xff}
	jpegEnd   = []byte{0xff, 0xd9}
)

// maxCandidatePixels bounds the declared size of a carved image before it is
// fully decoded.
const maxCandidatePixels = 50_000_000

var errImageTooLarge = errors.New("declared image size exceeds pixel budget")

type signature struct {
	kind  models.MediaKind
	start []byte
	end   []byte
}

var signatures = []signature{
	{kind: models.MediaPNG, start: pngStart, end: pngEnd},
	{kind: models.MediaJPEG, start: jpegStart, end: jpegEnd},
}

// Rejection describes a signature match that did not decode as an image.
type Rejection struct {
	Kind   models.MediaKind
	Offset int
	Length int
	Err    error
}

// Carver recovers PNG and JPEG images from an opaque byte buffer.
type Carver struct {
	logger     logger.Logger
	rejections []Rejection
}

func NewCarver(log logger.Logger) *Carver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Carver{logger: log.Named("carver")}
}

// Rejections returns candidates dropped by the last Carve call.
func (c *Carver) Rejections() []Rejection {
	return c.rejections
}

// Carve scans data for every supported signature and writes each image that
// decodes cleanly to the store. PNG images are numbered first, then JPEG.
func (c *Carver) Carve(data []byte, store *MediaStore) ([]models.MediaObject, error) {
	c.rejections = nil

	var media []models.MediaObject
	for _, sig := range signatures {
		for _, cand := range c.scan(data, sig) {
			cand.ID = len(media) + 1
			if err := store.Put(cand.Filename(), cand.Bytes); err != nil {
				return media, fmt.Errorf("failed to store %s: %w", cand.Filename(), err)
			}
			media = append(media, cand)
		}
	}

	c.logger.Info("Carved media",
		logger.Int("images", len(media)),
		logger.Int("rejected", len(c.rejections)),
	)
	return media, nil
}

// scan walks data leftmost-first without overlap. A candidate with no end
// marker ends the scan for that format since no later start can close either.
func (c *Carver) scan(data []byte, sig signature) []models.MediaObject {
	var found []models.MediaObject
	pos := 0
	for pos < len(data) {
		rel := bytes.Index(data[pos:], sig.start)
		if rel < 0 {
			break
		}
		start := pos + rel
		endRel := bytes.Index(data[start+len(sig.start):], sig.end)
		if endRel < 0 {
			c.logger.Debug("Signature without end marker",
				logger.String("kind", string(sig.kind)),
				logger.Int("offset", start),
			)
			break
		}
		end := start + len(sig.start) + endRel + len(sig.end)
		candidate := data[start:end]

		if err := validateImage(candidate); err != nil {
			c.rejections = append(c.rejections, Rejection{
				Kind:   sig.kind,
				Offset: start,
				Length: len(candidate),
				Err:    err,
			})
			pos = start + 1
			continue
		}

		found = append(found, models.MediaObject{
			Kind:   sig.kind,
			Offset: start,
			Bytes:  bytes.Clone(candidate),
		})
		pos = end
	}
	return found
}

func validateImage(b []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("empty image size %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxCandidatePixels {
		return fmt.Errorf("%w: %dx%d", errImageTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(b))
	if err != nil {
		return err
	}
	if r := img.Bounds(); r.Dx() == 0 || r.Dy() == 0 {
		return fmt.Errorf("empty image bounds %v", r)
	}
	return nil
}
