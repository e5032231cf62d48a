package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

const (
	nsContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
	nsRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsWordMain      = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	relTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	mainDocumentType      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

	docxDocumentPath = "word/document.xml"
)

// DOCX packages text as a Word document with a single paragraph. Newlines in
// text become line breaks inside that paragraph.
func DOCX(text string) ([]byte, error) {
	parts := []struct {
		name string
		doc  *etree.Document
	}{
		{"[Content_Types].xml", contentTypesPart()},
		{"_rels/.rels", packageRelsPart()},
		{docxDocumentPath, documentPart(text)},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", p.name, err)
		}
		if _, err := p.doc.WriteTo(w); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize docx: %w", err)
	}
	return buf.Bytes(), nil
}

func newXMLPart() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	return doc
}

func contentTypesPart() *etree.Document {
	doc := newXMLPart()
	types := doc.CreateElement("Types")
	types.CreateAttr("xmlns", nsContentTypes)

	rels := types.CreateElement("Default")
	rels.CreateAttr("Extension", "rels")
	rels.CreateAttr("ContentType", "application/vnd.openxmlformats-package.relationships+xml")

	xmlDefault := types.CreateElement("Default")
	xmlDefault.CreateAttr("Extension", "xml")
	xmlDefault.CreateAttr("ContentType", "application/xml")

	override := types.CreateElement("Override")
	override.CreateAttr("PartName", "/"+docxDocumentPath)
	override.CreateAttr("ContentType", mainDocumentType)
	return doc
}

func packageRelsPart() *etree.Document {
	doc := newXMLPart()
	rels := doc.CreateElement("Relationships")
	rels.CreateAttr("xmlns", nsRelationships)

	rel := rels.CreateElement("Relationship")
	rel.CreateAttr("Id", "rId1")
	rel.CreateAttr("Type", relTypeOfficeDocument)
	rel.CreateAttr("Target", docxDocumentPath)
	return doc
}

func documentPart(text string) *etree.Document {
	doc := newXMLPart()
	document := doc.CreateElement("w:document")
	document.CreateAttr("xmlns:w", nsWordMain)

	body := document.CreateElement("w:body")
	run := body.CreateElement("w:p").CreateElement("w:r")

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i > 0 {
			run.CreateElement("w:br")
		}
		t := run.CreateElement("w:t")
		t.CreateAttr("xml:space", "preserve")
		t.SetText(line)
	}
	return doc
}
