package recovery

import (
	"sort"

	"github.com/feichai0017/deck-recovery/internal/models"
)

// DistributeImages deals image filenames round-robin across the slides in
// slide-number order: image i goes to slide index i mod len(groups).
func DistributeImages(groups []models.SlideGroup, images []string) {
	if len(groups) == 0 || len(images) == 0 {
		return
	}
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return groups[order[a]].Number < groups[order[b]].Number
	})
	for i, name := range images {
		g := &groups[order[i%len(order)]]
		g.Images = append(g.Images, name)
	}
}

// MediaNames returns the store filenames of carved media in id order.
func MediaNames(media []models.MediaObject) []string {
	names := make([]string, len(media))
	for i, m := range media {
		names[i] = m.Filename()
	}
	return names
}
