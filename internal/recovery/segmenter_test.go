package recovery

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/deck-recovery/internal/models"
)

func assertDenseNumbers(t *testing.T, groups []models.SlideGroup, maxSlides int) {
	t.Helper()
	assert.LessOrEqual(t, len(groups), maxSlides)
	for i, g := range groups {
		assert.Equal(t, i+1, g.Number)
		assert.NotEmpty(t, g.Title)
		assert.NotEmpty(t, g.Body, "slide %d has no body", g.Number)
	}
}

func TestSegmentTitledParagraphs(t *testing.T) {
	text := "Overview:\nIntro line.\n\nDetails:\nMore text here that is long enough."

	groups := Segment(SplitParagraphs(text), 10)

	require.Len(t, groups, 2)
	assert.Equal(t, "Overview:", groups[0].Title)
	assert.Equal(t, []string{"Intro line."}, groups[0].Body)
	assert.Equal(t, "Details:", groups[1].Title)
	assert.Equal(t, []string{"More text here that is long enough."}, groups[1].Body)
	assertDenseNumbers(t, groups, 10)
}

func TestSegmentLineFragments(t *testing.T) {
	frags := []string{"Overview:", "Intro line.", "Details:", "More text here that is long enough."}

	groups := Segment(frags, 10)

	require.Len(t, groups, 2)
	assert.Equal(t, "Overview:", groups[0].Title)
	assert.Equal(t, "Details:", groups[1].Title)
}

func TestSegmentExplicitSlideMarkers(t *testing.T) {
	var frags []string
	for i := 1; i <= 6; i++ {
		frags = append(frags, fmt.Sprintf("slide %d", i), fmt.Sprintf("body text number %d goes here", i))
	}

	groups := Segment(frags, 20)

	require.Len(t, groups, 6)
	for i, g := range groups {
		assert.Equal(t, fmt.Sprintf("slide %d", i+1), g.Title)
		assert.Equal(t, []string{fmt.Sprintf("body text number %d goes here", i+1)}, g.Body)
	}
}

func TestSegmentShortTokenMarksBoundary(t *testing.T) {
	frags := []string{
		"intro paragraph without any title signal",
		"--",
		"this follows a separator token",
		"and continues with more prose",
		"*",
		"second section starts right here",
		"still second section content",
	}

	groups := Segment(frags, 4)

	require.Len(t, groups, 3)
	assert.Equal(t, "Slide 1", groups[0].Title)
	assert.Equal(t, []string{"intro paragraph without any title signal"}, groups[0].Body)
	assert.Equal(t, "this follows a separator token", groups[1].Title)
	assert.Equal(t, []string{"and continues with more prose"}, groups[1].Body)
	assert.Equal(t, "second section starts right here", groups[2].Title)
}

func TestSegmentDroppedTokenEndsShortRun(t *testing.T) {
	frags := []string{
		"--",
		"this follows a separator token",
		"and continues with more prose",
		"*",
		"abcd",
		"still part of the same section",
		"CLOSING NOTES",
		"final words of the deck here",
		"NEXT STEPS",
		"ship the rebuilt decks soon",
	}

	groups := Segment(frags, 4)

	require.Len(t, groups, 3)
	assert.Equal(t, "this follows a separator token", groups[0].Title)
	assert.Equal(t, []string{"and continues with more prose", "still part of the same section"}, groups[0].Body)
	assert.Equal(t, "CLOSING NOTES", groups[1].Title)
	assert.Equal(t, "NEXT STEPS", groups[2].Title)
}

func TestSegmentWidensBoundariesWithFewTitles(t *testing.T) {
	var frags []string
	for i := 1; i <= 10; i++ {
		frags = append(frags,
			fmt.Sprintf("point number %d is settled.", i),
			fmt.Sprintf("details for point %d follow here", i),
		)
	}

	groups := Segment(frags, 10)

	require.Len(t, groups, 10)
	for i, g := range groups {
		assert.Equal(t, fmt.Sprintf("point number %d is settled.", i+1), g.Title)
		assert.Equal(t, []string{fmt.Sprintf("details for point %d follow here", i+1)}, g.Body)
	}
}

func TestSegmentKeepsTitlesAtHalfMaxSlides(t *testing.T) {
	// five titles reach maxSlides/2 though not half the fragments
	var frags []string
	for i := 1; i <= 5; i++ {
		frags = append(frags, fmt.Sprintf("SECTION %d", i))
		for j := 1; j <= 3; j++ {
			frags = append(frags, fmt.Sprintf("item %d of section %d is done.", j, i))
		}
	}

	groups := Segment(frags, 10)

	require.Len(t, groups, 5)
	for i, g := range groups {
		assert.Equal(t, fmt.Sprintf("SECTION %d", i+1), g.Title)
		assert.Len(t, g.Body, 3)
	}
}

func TestSegmentFallsBackToChunks(t *testing.T) {
	var frags []string
	for i := 0; i < 40; i++ {
		frags = append(frags, fmt.Sprintf("plain lowercase sentence number %d without any title shape at all here", i))
	}

	groups := Segment(frags, 10)

	// 40 fragments / 10 slides gives chunks of 4
	require.Len(t, groups, 10)
	for i, g := range groups {
		assert.Equal(t, fmt.Sprintf("Slide %d", i+1), g.Title)
		assert.Len(t, g.Body, 4)
	}
	assertDenseNumbers(t, groups, 10)
}

func TestSegmentChunkUsesShortFirstFragmentAsTitle(t *testing.T) {
	frags := []string{"lower words a", "follow up text", "more lower text", "yet another one"}

	groups := Segment(frags, 2)

	require.Len(t, groups, 2)
	assert.Equal(t, "lower words a", groups[0].Title)
	assert.Equal(t, []string{"follow up text"}, groups[0].Body)
	assert.Equal(t, "more lower text", groups[1].Title)
}

func TestSegmentSingleFragmentChunkGetsGeneratedTitle(t *testing.T) {
	groups := Segment([]string{"only one lonely fragment"}, 5)

	require.Len(t, groups, 1)
	assert.Equal(t, "Slide 1", groups[0].Title)
	assert.Equal(t, []string{"only one lonely fragment"}, groups[0].Body)
}

func TestSegmentTruncatesToMaxSlides(t *testing.T) {
	var frags []string
	for i := 1; i <= 30; i++ {
		frags = append(frags, fmt.Sprintf("SECTION %d", i), fmt.Sprintf("detail line for section %d", i))
	}

	groups := Segment(frags, 5)

	require.Len(t, groups, 5)
	assert.Equal(t, "SECTION 1", groups[0].Title)
	assert.Equal(t, "SECTION 5", groups[4].Title)
	assertDenseNumbers(t, groups, 5)
}

func TestSegmentEmptyInput(t *testing.T) {
	assert.Empty(t, Segment(nil, 10))
	assert.Empty(t, Segment([]string{"a", "bb", "ccc", "dddd"}, 10))
}

func TestSegmentNumberingIsDenseForRandomInput(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	words := []string{"Alpha", "beta", "GAMMA", "delta:", "Slide 4", "x", "end.", "lorem", "ipsum", "Dolor"}

	for run := 0; run < 50; run++ {
		var frags []string
		for i := r.Intn(120); i > 0; i-- {
			n := 1 + r.Intn(8)
			parts := make([]string, n)
			for j := range parts {
				parts[j] = words[r.Intn(len(words))]
			}
			frags = append(frags, strings.Join(parts, " "))
		}
		maxSlides := 1 + r.Intn(30)
		assertDenseNumbers(t, Segment(frags, maxSlides), maxSlides)
	}
}

func TestIsTitle(t *testing.T) {
	cases := map[string]bool{
		"Slide 12 recap of the quarter":  true,
		"Agenda:":                        true,
		"KEY RESULTS":                    true,
		"Market Share By Region":         true,
		"Revenue":                        false,
		"REVENUE":                        true,
		"Revenue:":                       true,
		"the market grew by ten percent": false,
		"12345":                          false,
		strings.Repeat("Long Title ", 8): false,
	}
	for in, want := range cases {
		assert.Equal(t, want, isTitle(in), in)
	}
}
