package recovery

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/feichai0017/deck-recovery/internal/models"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

const (
	maxTitleLen     = 100
	maxBodyLen      = 1000
	maxBodyShapes   = 8
	maxSlideImages  = 4
	firstSlideID    = 256
	slideWidthEMU   = 12192000
	slideHeightEMU  = 6858000
	notesWidthEMU   = 6858000
	notesHeightEMU  = 9144000
	textLeftEMU     = 1388800
	textWidthEMU    = 8636000
	titleTopEMU     = 571500
	titleHeightEMU  = 762000
	bodyTopEMU      = 1500000
	bodyStrideEMU   = 600000
	imageTopEMU     = 5000000
	imageColEMU     = 4000000
	imageWidthEMU   = 3000000
	imageHeightEMU  = 2000000
	imageShapeIDMin = 20
)

var mediaContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
}

// PartStats summarizes one assembled package directory.
type PartStats struct {
	Slides       int
	Images       int
	Placeholders []string
}

// Assembler renders a partition into a package directory tree.
type Assembler struct {
	logger logger.Logger
}

func NewAssembler(log logger.Logger) *Assembler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Assembler{logger: log.Named("assembler")}
}

// Build writes every part of a presentation package for p under dir, copying
// referenced media from store and substituting placeholders for missing files.
func (a *Assembler) Build(dir string, p Partition, store *MediaStore) (*PartStats, error) {
	for _, sub := range []string{"_rels", "ppt/_rels", "ppt/slides/_rels", "ppt/media"} {
		if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(sub)), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	stats := &PartStats{Slides: len(p.Slides)}
	mediaExts := make(map[string]struct{})
	placed := make(map[string]struct{})

	for _, g := range p.Slides {
		images := g.Images[:min(len(g.Images), maxSlideImages)]
		for _, name := range images {
			if _, ok := placed[name]; ok {
				continue
			}
			placed[name] = struct{}{}
			generated, err := a.placeMedia(dir, name, store)
			if err != nil {
				return nil, err
			}
			if generated {
				stats.Placeholders = append(stats.Placeholders, name)
			}
			mediaExts[mediaExt(name)] = struct{}{}
		}

		if err := a.writeSlide(dir, g, images); err != nil {
			return nil, err
		}
	}
	stats.Images = len(placed)

	parts := []struct {
		name string
		v    any
	}{
		{contentTypesPart, buildContentTypes(len(p.Slides), mediaExts)},
		{"_rels/.rels", buildRootRels()},
		{"ppt/presentation.xml", buildPresentation(len(p.Slides))},
		{"ppt/_rels/presentation.xml.rels", buildPresentationRels(len(p.Slides))},
	}
	for _, part := range parts {
		if err := writePart(dir, part.name, part.v); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (a *Assembler) placeMedia(dir, name string, store *MediaStore) (bool, error) {
	dest := filepath.Join(dir, "ppt", "media", name)
	if store != nil && store.Has(name) {
		return false, copyFile(store.Path(name), dest)
	}

	a.logger.Warn("Media missing, generating placeholder", logger.String("image", name))
	f, err := os.Create(dest)
	if err != nil {
		return false, err
	}
	if err := WritePlaceholder(f, name); err != nil {
		f.Close()
		return false, fmt.Errorf("failed to render placeholder for %s: %w", name, err)
	}
	return true, f.Close()
}

func (a *Assembler) writeSlide(dir string, g models.SlideGroup, images []string) error {
	rels := relationships{Xmlns: nsRelationships}
	for i, name := range images {
		rels.Items = append(rels.Items, relationship{
			ID:     relID(i + 1),
			Type:   relImage,
			Target: path.Join("..", "media", name),
		})
	}
	base := fmt.Sprintf("slide%d.xml", g.Number)
	if err := writePart(dir, "ppt/slides/_rels/"+base+".rels", rels); err != nil {
		return err
	}
	return writePart(dir, "ppt/slides/"+base, buildSlide(g, len(images)))
}

func buildSlide(g models.SlideGroup, images int) slide {
	tree := shapeTree{
		NvGrpSpPr: nvGrpSpPr{CNvPr: cNvPr{ID: 1}},
	}

	tree.Shapes = append(tree.Shapes, textShape(2, "Title 1",
		xfrm{Off: point{X: textLeftEMU, Y: titleTopEMU}, Ext: extent{Cx: textWidthEMU, Cy: titleHeightEMU}},
		truncateText(g.Title, maxTitleLen), true))

	body := g.Body[:min(len(g.Body), maxBodyShapes)]
	for i, text := range body {
		tree.Shapes = append(tree.Shapes, textShape(i+3, fmt.Sprintf("Text %d", i+1),
			xfrm{
				Off: point{X: textLeftEMU, Y: int64(bodyTopEMU + i*bodyStrideEMU)},
				Ext: extent{Cx: textWidthEMU, Cy: bodyStrideEMU},
			},
			truncateText(text, maxBodyLen), false))
	}

	for i := 0; i < images; i++ {
		tree.Pictures = append(tree.Pictures, picture{
			NvPicPr: nvPicPr{
				CNvPr:    cNvPr{ID: imageShapeIDMin + i, Name: fmt.Sprintf("Picture %d", i+1)},
				CNvPicPr: cNvPicPr{Locks: picLocks{NoChangeAspect: "1"}},
			},
			BlipFill: blipFill{Blip: blip{Embed: relID(i + 1)}},
			SpPr: spPr{
				Xfrm: xfrm{
					Off: point{X: int64(textLeftEMU + (i%2)*imageColEMU), Y: int64(imageTopEMU + (i/2)*imageHeightEMU)},
					Ext: extent{Cx: imageWidthEMU, Cy: imageHeightEMU},
				},
				Geom: prstGeom{Prst: "rect"},
			},
		})
	}

	return slide{
		XmlnsA: nsDrawingML,
		XmlnsR: nsOfficeRels,
		XmlnsP: nsPresentation,
		Tree:   tree,
	}
}

func textShape(id int, name string, pos xfrm, text string, title bool) shape {
	props := runProps{Lang: "en-US", Dirty: "0"}
	if title {
		props.Size = 3200
		props.Bold = "1"
	}
	return shape{
		NvSpPr: nvSpPr{
			CNvPr:   cNvPr{ID: id, Name: name},
			CNvSpPr: cNvSpPr{TxBox: "1"},
		},
		SpPr: spPr{Xfrm: pos, Geom: prstGeom{Prst: "rect"}},
		TxBody: txtBody{
			BodyPr: bodyPr{Wrap: "square"},
			Paras:  []para{{Runs: []run{{RPr: props, Text: text}}}},
		},
	}
}

func buildContentTypes(slides int, mediaExts map[string]struct{}) contentTypes {
	ct := contentTypes{
		Xmlns: nsContentTypes,
		Defaults: []ctDefault{
			{Extension: "rels", ContentType: ctRelationships},
			{Extension: "xml", ContentType: ctXML},
		},
		Overrides: []ctOverride{
			{PartName: "/ppt/presentation.xml", ContentType: ctPresentation},
		},
	}

	exts := make([]string, 0, len(mediaExts))
	for ext := range mediaExts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		ct.Defaults = append(ct.Defaults, ctDefault{Extension: ext, ContentType: mediaContentType(ext)})
	}

	for i := 1; i <= slides; i++ {
		ct.Overrides = append(ct.Overrides, ctOverride{
			PartName:    fmt.Sprintf("/ppt/slides/slide%d.xml", i),
			ContentType: ctSlide,
		})
	}
	return ct
}

func buildRootRels() relationships {
	return relationships{
		Xmlns: nsRelationships,
		Items: []relationship{{ID: relID(1), Type: relOfficeDocument, Target: "ppt/presentation.xml"}},
	}
}

func buildPresentation(slides int) presentation {
	p := presentation{
		XmlnsA:  nsDrawingML,
		XmlnsR:  nsOfficeRels,
		XmlnsP:  nsPresentation,
		SlideSz: slideSize{Cx: slideWidthEMU, Cy: slideHeightEMU, Type: "screen4x3"},
		NotesSz: notesSize{Cx: notesWidthEMU, Cy: notesHeightEMU},
	}
	for i := 0; i < slides; i++ {
		p.SlideIDs = append(p.SlideIDs, slideID{ID: firstSlideID + i, RelID: relID(i + 1)})
	}
	return p
}

func buildPresentationRels(slides int) relationships {
	rels := relationships{Xmlns: nsRelationships}
	for i := 1; i <= slides; i++ {
		rels.Items = append(rels.Items, relationship{
			ID:     relID(i),
			Type:   relSlide,
			Target: fmt.Sprintf("slides/slide%d.xml", i),
		})
	}
	return rels
}

func writePart(dir, name string, v any) error {
	data, err := marshalPart(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), data, 0o644)
}

// truncateText cuts s to limit runes, ending with an ellipsis when shortened.
func truncateText(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}

func mediaExt(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func mediaContentType(ext string) string {
	if ct, ok := mediaContentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
