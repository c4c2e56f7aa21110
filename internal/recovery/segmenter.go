package recovery

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/feichai0017/deck-recovery/internal/models"
)

const (
	minFragmentLen   = 5
	fragmentsPerSlot = 8
	titleMaxLen      = 60
	maxChunkSize     = 8
	maxChunkDivisor  = 15
	strongBoundaries = 5
)

var slideNumberPattern = regexp.MustCompile(`(?i)^slide\s+\d+`)

type fragment struct {
	text       string
	afterShort bool
}

// Segment groups ordered text fragments into numbered slides. Title-like
// fragments start a new slide; with too few of them the fragments are chunked
// into fixed-size groups instead. Slides are numbered 1..K with K <= maxSlides.
func Segment(fragments []string, maxSlides int) []models.SlideGroup {
	if maxSlides < 1 {
		maxSlides = 1
	}
	frags := prepareFragments(fragments, maxSlides*fragmentsPerSlot)
	n := len(frags)
	if n == 0 {
		return nil
	}

	boundary := make([]bool, n)
	count := 0
	for i, f := range frags {
		if isTitle(f.text) || f.afterShort {
			boundary[i] = true
			count++
		}
	}

	// 标题信号太少时放宽边界条件
	if count < min(maxSlides/2, n/2) {
		for i, f := range frags {
			if !boundary[i] && (strings.HasSuffix(f.text, ":") || strings.HasSuffix(f.text, ".")) {
				boundary[i] = true
				count++
			}
		}
	}

	var groups []models.SlideGroup
	if count < min(strongBoundaries, max(1, n/2)) {
		groups = chunkFragments(frags, maxSlides)
	} else {
		groups = splitAtBoundaries(frags, boundary)
	}

	if len(groups) > maxSlides {
		groups = groups[:maxSlides]
	}
	return groups
}

// prepareFragments drops short and repeated fragments, separates a title-like
// first line from the rest of its paragraph, and caps the working set.
func prepareFragments(in []string, limit int) []fragment {
	seen := make(map[string]struct{}, len(in))
	out := make([]fragment, 0, min(len(in), limit))
	afterShort := false

	add := func(s string) {
		if utf8.RuneCountInString(s) < minFragmentLen {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, fragment{text: s, afterShort: afterShort})
		afterShort = false
	}

	for _, raw := range in {
		if len(out) >= limit {
			break
		}
		s := strings.TrimSpace(raw)
		if utf8.RuneCountInString(s) < 3 {
			afterShort = true
			continue
		}
		if head, rest, ok := splitTitleLine(s); ok {
			add(head)
			if len(out) < limit {
				add(rest)
			}
		} else {
			add(s)
		}
		// dropped fragments still end the run after a short token
		afterShort = false
	}
	return out
}

func splitTitleLine(s string) (string, string, bool) {
	head, rest, ok := strings.Cut(s, "\n")
	if !ok {
		return "", "", false
	}
	head, rest = strings.TrimSpace(head), strings.TrimSpace(rest)
	if !isTitle(head) || rest == "" {
		return "", "", false
	}
	return head, rest, true
}

func isTitle(s string) bool {
	if slideNumberPattern.MatchString(s) {
		return true
	}
	if utf8.RuneCountInString(s) >= titleMaxLen {
		return false
	}
	if strings.HasSuffix(s, ":") {
		return true
	}
	if strings.ToUpper(s) == s && strings.ToLower(s) != s {
		return true
	}
	words := strings.Fields(s)
	if len(words) < 2 {
		return false
	}
	capitalized := 0
	for _, w := range words {
		if r, _ := utf8.DecodeRuneInString(w); unicode.IsUpper(r) {
			capitalized++
		}
	}
	return capitalized*10 >= len(words)*7
}

func splitAtBoundaries(frags []fragment, boundary []bool) []models.SlideGroup {
	var groups []models.SlideGroup
	var cur *models.SlideGroup

	flush := func() {
		if cur != nil && len(cur.Body) > 0 {
			cur.Number = len(groups) + 1
			if cur.Title == "" {
				cur.Title = fmt.Sprintf("Slide %d", cur.Number)
			}
			groups = append(groups, *cur)
		}
		cur = nil
	}

	for i, f := range frags {
		if boundary[i] {
			flush()
			cur = &models.SlideGroup{Title: f.text}
			continue
		}
		if cur == nil {
			// text ahead of the first boundary gets a generated title
			cur = &models.SlideGroup{}
		}
		cur.Body = append(cur.Body, f.text)
	}
	flush()
	return groups
}

func chunkFragments(frags []fragment, maxSlides int) []models.SlideGroup {
	size := len(frags) / clamp(maxSlides, 1, maxChunkDivisor)
	size = clamp(size, 1, maxChunkSize)

	var groups []models.SlideGroup
	for start := 0; start < len(frags); start += size {
		chunk := frags[start:min(start+size, len(frags))]
		number := len(groups) + 1
		g := models.SlideGroup{Number: number}

		if first := chunk[0].text; utf8.RuneCountInString(first) < titleMaxLen && len(chunk) > 1 {
			g.Title = first
			chunk = chunk[1:]
		} else {
			g.Title = fmt.Sprintf("Slide %d", number)
		}
		for _, f := range chunk {
			g.Body = append(g.Body, f.text)
		}
		groups = append(groups, g)
	}
	return groups
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
