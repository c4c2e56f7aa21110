package recovery

import "github.com/feichai0017/deck-recovery/internal/models"

// Partition is one output archive's contiguous run of slides, renumbered 1..len.
type Partition struct {
	Part       int
	FirstSlide int
	LastSlide  int
	Slides     []models.SlideGroup
}

// PlanPartitions balances the per-file slide cap against the file cap and
// returns the slides per file and the resulting file count.
func PlanPartitions(total, slideCap, fileCap int) (perFile, files int) {
	if total <= 0 {
		return 0, 0
	}
	slideCap = max(slideCap, 1)
	fileCap = max(fileCap, 1)

	perFile = min(slideCap, total)
	target := min(fileCap, ceilDiv(total, perFile))
	perFile = ceilDiv(total, target)
	return perFile, ceilDiv(total, perFile)
}

// SplitSlides cuts groups into partitions with local slide numbering.
func SplitSlides(groups []models.SlideGroup, slideCap, fileCap int) []Partition {
	perFile, files := PlanPartitions(len(groups), slideCap, fileCap)
	parts := make([]Partition, 0, files)
	for i := 0; i < files; i++ {
		block := groups[i*perFile : min((i+1)*perFile, len(groups))]
		p := Partition{
			Part:       i + 1,
			FirstSlide: block[0].Number,
			LastSlide:  block[len(block)-1].Number,
			Slides:     make([]models.SlideGroup, len(block)),
		}
		for j, g := range block {
			g.Number = j + 1
			g.Body = append([]string(nil), g.Body...)
			g.Images = append([]string(nil), g.Images...)
			p.Slides[j] = g
		}
		parts = append(parts, p)
	}
	return parts
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
