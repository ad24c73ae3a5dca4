package source

import (
	"context"
	"os"

	"github.com/poiesic/docrag/core"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// LoadText loads a UTF-8 text file as a single document.
func LoadText(ctx context.Context, path string) ([]core.SourceDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return nil, err
	}
	return fromSchema(docs), nil
}

// LoadCSV loads a CSV file as one document per data row. Each document
// holds "column: value" lines and the 1-based row number.
func LoadCSV(ctx context.Context, path string) ([]core.SourceDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := documentloaders.NewCSV(f).Load(ctx)
	if err != nil {
		return nil, err
	}

	out := fromSchema(docs)
	for i := range out {
		out[i].Metadata[MetaRow] = i + 1
	}
	return out, nil
}

// LoadPDF loads a PDF file as one document per page.
func LoadPDF(ctx context.Context, path string) ([]core.SourceDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, err
	}

	out := fromSchema(docs)
	for i := range out {
		if _, ok := out[i].Metadata[MetaPage]; !ok {
			out[i].Metadata[MetaPage] = i + 1
		}
		if _, ok := out[i].Metadata[MetaTotalPages]; !ok {
			out[i].Metadata[MetaTotalPages] = len(out)
		}
	}
	return out, nil
}

func fromSchema(docs []schema.Document) []core.SourceDocument {
	out := make([]core.SourceDocument, len(docs))
	for i, doc := range docs {
		md := make(core.Metadata, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			md[k] = v
		}
		out[i] = core.SourceDocument{Text: doc.PageContent, Metadata: md}
	}
	return out
}
