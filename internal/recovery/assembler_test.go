package recovery

import (
	"encoding/xml"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/deck-recovery/internal/models"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

var embedPattern = regexp.MustCompile(`r:embed="(rId\d+)"`)

func readPart(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func readRels(t *testing.T, dir, name string) relationships {
	t.Helper()
	var rels relationships
	require.NoError(t, xml.Unmarshal([]byte(readPart(t, dir, name)), &rels))
	return rels
}

func testPartition() Partition {
	body := make([]string, 10)
	for i := range body {
		body[i] = fmt.Sprintf("body line %d", i+1)
	}
	return Partition{
		Part: 1,
		Slides: []models.SlideGroup{
			{
				Number: 1,
				Title:  "R&D <draft> results",
				Body:   body,
				Images: []string{"image_1.png", "image_2.jpg", "image_3.png", "image_4.png", "image_5.png"},
			},
			{Number: 2, Title: "Second", Body: []string{"only body"}},
		},
	}
}

func TestAssemblerBuildsResolvablePackage(t *testing.T) {
	store, err := NewMediaStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put("image_1.png", pngBytes(t, 2, 2, color.NRGBA{R: 9, A: 255})))

	log := logger.NewTestLogger()
	dir := filepath.Join(t.TempDir(), "part_1")
	stats, err := NewAssembler(log).Build(dir, testPartition(), store)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Slides)
	assert.Equal(t, 4, stats.Images)
	assert.Equal(t, []string{"image_2.jpg", "image_3.png", "image_4.png"}, stats.Placeholders)
	assert.Len(t, log.Find("placeholder"), 3)

	entries, err := os.ReadDir(filepath.Join(dir, "ppt", "media"))
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.NoFileExists(t, filepath.Join(dir, "ppt", "media", "image_5.png"))

	for _, n := range []int{1, 2} {
		slideXML := readPart(t, dir, fmt.Sprintf("ppt/slides/slide%d.xml", n))
		rels := readRels(t, dir, fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n))

		byID := map[string]relationship{}
		for _, r := range rels.Items {
			_, dup := byID[r.ID]
			assert.False(t, dup, "duplicate id %s", r.ID)
			byID[r.ID] = r
		}

		refs := embedPattern.FindAllStringSubmatch(slideXML, -1)
		assert.Len(t, refs, len(rels.Items))
		for _, ref := range refs {
			rel, ok := byID[ref[1]]
			require.True(t, ok, "unresolved %s", ref[1])
			assert.FileExists(t, filepath.Join(dir, "ppt", "slides", filepath.FromSlash(rel.Target)))
		}
	}

	slide1 := readPart(t, dir, "ppt/slides/slide1.xml")
	assert.True(t, strings.HasPrefix(slide1, xmlProlog))
	assert.Contains(t, slide1, "R&amp;D &lt;draft&gt; results")
	assert.Equal(t, 8, strings.Count(slide1, `name="Text `))
	assert.Equal(t, 4, strings.Count(slide1, "<p:pic>"))
	assert.NotContains(t, slide1, "body line 9")
}

func TestAssemblerPackageParts(t *testing.T) {
	store, err := NewMediaStore(t.TempDir())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "part_1")
	_, err = NewAssembler(nil).Build(dir, testPartition(), store)
	require.NoError(t, err)

	ct := readPart(t, dir, contentTypesPart)
	assert.Contains(t, ct, `<Default Extension="png" ContentType="image/png">`)
	assert.Contains(t, ct, `<Default Extension="jpg" ContentType="image/jpeg">`)
	assert.Contains(t, ct, `PartName="/ppt/slides/slide1.xml"`)
	assert.Contains(t, ct, `PartName="/ppt/slides/slide2.xml"`)
	assert.NotContains(t, ct, "slide3.xml")

	root := readRels(t, dir, "_rels/.rels")
	require.Len(t, root.Items, 1)
	assert.Equal(t, "ppt/presentation.xml", root.Items[0].Target)

	pres := readPart(t, dir, "ppt/presentation.xml")
	assert.Contains(t, pres, `<p:sldId id="256" r:id="rId1">`)
	assert.Contains(t, pres, `<p:sldId id="257" r:id="rId2">`)
	assert.Contains(t, pres, `cx="12192000" cy="6858000" type="screen4x3"`)

	presRels := readRels(t, dir, "ppt/_rels/presentation.xml.rels")
	require.Len(t, presRels.Items, 2)
	for i, r := range presRels.Items {
		assert.Equal(t, relID(i+1), r.ID)
		assert.Equal(t, relSlide, r.Type)
		assert.FileExists(t, filepath.Join(dir, "ppt", filepath.FromSlash(r.Target)))
	}
}

func TestPlaceholderMatchesExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"image_7.jpg", "image_8.png"} {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, WritePlaceholder(f, name))
		require.NoError(t, f.Close())

		img, err := imaging.Open(path)
		require.NoError(t, err)
		assert.Equal(t, placeholderWidth, img.Bounds().Dx())
		assert.Equal(t, placeholderHeight, img.Bounds().Dy())
	}

	img := RenderPlaceholder("x.png")
	assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, placeholderBackground, img.NRGBAAt(400, 500))
}

func TestTruncateText(t *testing.T) {
	long := strings.Repeat("é", 150)
	got := truncateText(long, maxTitleLen)
	assert.Equal(t, maxTitleLen, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "short", truncateText("short", maxTitleLen))
	assert.Equal(t, strings.Repeat("a", 100), truncateText(strings.Repeat("a", 100), maxTitleLen))
}
