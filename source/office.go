package source

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/docrag/core"
	"github.com/xuri/excelize/v2"
)

// LoadXLSX loads a workbook as one document per non-empty sheet. Rows are
// tab-separated lines.
func LoadXLSX(ctx context.Context, path string) ([]core.SourceDocument, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []core.SourceDocument
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}

		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if strings.TrimSpace(line) == "" {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}

		docs = append(docs, core.SourceDocument{
			Text:     strings.Join(lines, "\n"),
			Metadata: core.Metadata{MetaSheet: sheet},
		})
	}
	return docs, nil
}

// docxBody is the main part of a WordprocessingML package.
const docxBody = "word/document.xml"

// LoadDOCX loads the paragraph text of a Word document as a single
// document. Paragraphs are separated by blank lines.
func LoadDOCX(ctx context.Context, path string) ([]core.SourceDocument, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	body, err := zr.Open(docxBody)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", docxBody, err)
	}
	defer body.Close()

	paragraphs, err := docxParagraphs(body)
	if err != nil {
		return nil, err
	}
	return []core.SourceDocument{{
		Text:     strings.Join(paragraphs, "\n\n"),
		Metadata: core.Metadata{},
	}}, nil
}

// docxParagraphs streams the document part and collects the text runs of
// each w:p element.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", docxBody, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
