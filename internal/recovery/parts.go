package recovery

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

const xmlProlog = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const (
	nsContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
	nsRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsDrawingML     = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsOfficeRels    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPresentation  = "http://schemas.openxmlformats.org/presentationml/2006/main"

	relOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relSlide          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relImage          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	ctRelationships = "application/vnd.openxmlformats-package.relationships+xml"
	ctXML           = "application/xml"
	ctPresentation  = "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"
	ctSlide         = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
)

// [Content_Types].xml

type contentTypes struct {
	XMLName   xml.Name     `xml:"Types"`
	Xmlns     string       `xml:"xmlns,attr"`
	Defaults  []ctDefault  `xml:"Default"`
	Overrides []ctOverride `xml:"Override"`
}

type ctDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type ctOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// *.rels

type relationships struct {
	XMLName xml.Name       `xml:"Relationships"`
	Xmlns   string         `xml:"xmlns,attr"`
	Items   []relationship `xml:"Relationship"`
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

// ppt/presentation.xml

type presentation struct {
	XMLName  xml.Name  `xml:"p:presentation"`
	XmlnsA   string    `xml:"xmlns:a,attr"`
	XmlnsR   string    `xml:"xmlns:r,attr"`
	XmlnsP   string    `xml:"xmlns:p,attr"`
	SlideIDs []slideID `xml:"p:sldIdLst>p:sldId"`
	SlideSz  slideSize `xml:"p:sldSz"`
	NotesSz  notesSize `xml:"p:notesSz"`
}

type slideID struct {
	ID    int    `xml:"id,attr"`
	RelID string `xml:"r:id,attr"`
}

type slideSize struct {
	Cx   int64  `xml:"cx,attr"`
	Cy   int64  `xml:"cy,attr"`
	Type string `xml:"type,attr"`
}

type notesSize struct {
	Cx int64 `xml:"cx,attr"`
	Cy int64 `xml:"cy,attr"`
}

// ppt/slides/slideN.xml

type slide struct {
	XMLName xml.Name  `xml:"p:sld"`
	XmlnsA  string    `xml:"xmlns:a,attr"`
	XmlnsR  string    `xml:"xmlns:r,attr"`
	XmlnsP  string    `xml:"xmlns:p,attr"`
	Tree    shapeTree `xml:"p:cSld>p:spTree"`
	ClrMap  clrMapOvr `xml:"p:clrMapOvr"`
}

type clrMapOvr struct {
	Master struct{} `xml:"a:masterClrMapping"`
}

type shapeTree struct {
	NvGrpSpPr nvGrpSpPr `xml:"p:nvGrpSpPr"`
	GrpSpPr   grpSpPr   `xml:"p:grpSpPr"`
	Shapes    []shape   `xml:"p:sp"`
	Pictures  []picture `xml:"p:pic"`
}

type nvGrpSpPr struct {
	CNvPr      cNvPr    `xml:"p:cNvPr"`
	CNvGrpSpPr struct{} `xml:"p:cNvGrpSpPr"`
	NvPr       struct{} `xml:"p:nvPr"`
}

type cNvPr struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type grpSpPr struct {
	Xfrm groupXfrm `xml:"a:xfrm"`
}

type groupXfrm struct {
	Off   point  `xml:"a:off"`
	Ext   extent `xml:"a:ext"`
	ChOff point  `xml:"a:chOff"`
	ChExt extent `xml:"a:chExt"`
}

type point struct {
	X int64 `xml:"x,attr"`
	Y int64 `xml:"y,attr"`
}

type extent struct {
	Cx int64 `xml:"cx,attr"`
	Cy int64 `xml:"cy,attr"`
}

type xfrm struct {
	Off point  `xml:"a:off"`
	Ext extent `xml:"a:ext"`
}

type spPr struct {
	Xfrm xfrm     `xml:"a:xfrm"`
	Geom prstGeom `xml:"a:prstGeom"`
}

type prstGeom struct {
	Prst  string   `xml:"prst,attr"`
	AvLst struct{} `xml:"a:avLst"`
}

type shape struct {
	NvSpPr nvSpPr  `xml:"p:nvSpPr"`
	SpPr   spPr    `xml:"p:spPr"`
	TxBody txtBody `xml:"p:txBody"`
}

type nvSpPr struct {
	CNvPr   cNvPr    `xml:"p:cNvPr"`
	CNvSpPr cNvSpPr  `xml:"p:cNvSpPr"`
	NvPr    struct{} `xml:"p:nvPr"`
}

type cNvSpPr struct {
	TxBox string `xml:"txBox,attr"`
}

type txtBody struct {
	BodyPr   bodyPr   `xml:"a:bodyPr"`
	LstStyle struct{} `xml:"a:lstStyle"`
	Paras    []para   `xml:"a:p"`
}

type bodyPr struct {
	Wrap string `xml:"wrap,attr"`
}

type para struct {
	Runs []run `xml:"a:r"`
}

type run struct {
	RPr  runProps `xml:"a:rPr"`
	Text string   `xml:"a:t"`
}

type runProps struct {
	Lang  string `xml:"lang,attr"`
	Size  int    `xml:"sz,attr,omitempty"`
	Bold  string `xml:"b,attr,omitempty"`
	Dirty string `xml:"dirty,attr"`
}

type picture struct {
	NvPicPr  nvPicPr  `xml:"p:nvPicPr"`
	BlipFill blipFill `xml:"p:blipFill"`
	SpPr     spPr     `xml:"p:spPr"`
}

type nvPicPr struct {
	CNvPr    cNvPr    `xml:"p:cNvPr"`
	CNvPicPr cNvPicPr `xml:"p:cNvPicPr"`
	NvPr     struct{} `xml:"p:nvPr"`
}

type cNvPicPr struct {
	Locks picLocks `xml:"a:picLocks"`
}

type picLocks struct {
	NoChangeAspect string `xml:"noChangeAspect,attr"`
}

type blipFill struct {
	Blip    blip `xml:"a:blip"`
	Stretch struct {
		FillRect struct{} `xml:"a:fillRect"`
	} `xml:"a:stretch"`
}

type blip struct {
	Embed string `xml:"r:embed,attr"`
}

func marshalPart(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xmlProlog)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode part: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func relID(n int) string {
	return fmt.Sprintf("rId%d", n)
}
