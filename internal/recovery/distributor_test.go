package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/deck-recovery/internal/models"
)

func TestDistributeImagesRoundRobin(t *testing.T) {
	groups := []models.SlideGroup{{Number: 1}, {Number: 2}, {Number: 3}}
	media := []models.MediaObject{
		{ID: 1, Kind: models.MediaPNG},
		{ID: 2, Kind: models.MediaPNG},
		{ID: 3, Kind: models.MediaJPEG},
		{ID: 4, Kind: models.MediaJPEG},
	}

	DistributeImages(groups, MediaNames(media))

	assert.Equal(t, []string{"image_1.png", "image_4.jpg"}, groups[0].Images)
	assert.Equal(t, []string{"image_2.png"}, groups[1].Images)
	assert.Equal(t, []string{"image_3.jpg"}, groups[2].Images)
}

func TestDistributeImagesFollowsSlideNumbers(t *testing.T) {
	groups := []models.SlideGroup{{Number: 2}, {Number: 1}}

	DistributeImages(groups, []string{"a.png", "b.png", "c.png"})

	assert.Equal(t, []string{"a.png", "c.png"}, groups[1].Images)
	assert.Equal(t, []string{"b.png"}, groups[0].Images)
}

func TestDistributeImagesNoSlides(t *testing.T) {
	assert.NotPanics(t, func() { DistributeImages(nil, []string{"a.png"}) })
}
