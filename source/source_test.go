package source

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/docrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeDOCX(t *testing.T, path string, paragraphs ...string) string {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	require.NoError(t, err)

	var body strings.Builder
	body.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`<w:p></w:p></w:body></w:document>`)

	w, err = zw.Create(docxBody)
	require.NoError(t, err)
	_, err = w.Write([]byte(body.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func writeXLSX(t *testing.T, path string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetCellValue("Sheet1", "A1", "course"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "credits"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Algebra"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 4))
	_, err := f.NewSheet("Empty")
	require.NoError(t, err)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{".csv", ".docx", ".json", ".pdf", ".txt", ".xlsx"}, r.Extensions())

	_, ok := r.Lookup("TXT")
	assert.True(t, ok, "lookup is case-insensitive and tolerates a missing dot")
	_, ok = r.Lookup(".md")
	assert.False(t, ok)

	assert.True(t, r.Supports("notes/README.TXT"))
	assert.False(t, r.Supports("notes/README.md"))

	r.Register("md", LoaderFunc(LoadText))
	assert.True(t, r.Supports("notes/README.md"))
}

func TestLoadFile_Text(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "paris.txt"), "Paris is the capital of France.")

	docs, err := DefaultRegistry().LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Paris is the capital of France.", docs[0].Text)
	assert.Equal(t, path, docs[0].Metadata[core.MetaSource])
	assert.Equal(t, "txt", docs[0].Metadata[core.MetaFormat])
}

func TestLoadFile_CSV(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "cities.csv"), "city,country\nParis,France\nTokyo,Japan\n")

	docs, err := DefaultRegistry().LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0].Text, "France")
	assert.Contains(t, docs[1].Text, "Japan")
	assert.Equal(t, 1, docs[0].Metadata[MetaRow])
	assert.Equal(t, 2, docs[1].Metadata[MetaRow])
	assert.Equal(t, "csv", docs[1].Metadata[core.MetaFormat])
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "course.json"),
		`{"course": {"name": "Algebra", "credits": 4, "tags": ["math", "core"], "prereq": null}}`)

	docs, err := DefaultRegistry().LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, strings.Join([]string{
		"course.name: Algebra",
		"course.credits: 4",
		"course.tags[0]: math",
		"course.tags[1]: core",
		"course.prereq: null",
	}, "\n"), docs[0].Text)
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "broken.json"), `{"course": `)

	_, err := DefaultRegistry().LoadFile(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrSourceLoad)
	assert.ErrorIs(t, err, errInvalidJSON)
}

func TestLoadFile_DOCX(t *testing.T) {
	path := writeDOCX(t, filepath.Join(t.TempDir(), "policy.docx"), "First paragraph.", "Second paragraph.")

	docs, err := DefaultRegistry().LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", docs[0].Text)
	assert.Equal(t, "docx", docs[0].Metadata[core.MetaFormat])
}

func TestLoadFile_XLSX(t *testing.T) {
	path := writeXLSX(t, filepath.Join(t.TempDir(), "courses.xlsx"))

	docs, err := DefaultRegistry().LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1, "empty sheets produce no document")
	assert.Equal(t, "course\tcredits\nAlgebra\t4", docs[0].Text)
	assert.Equal(t, "Sheet1", docs[0].Metadata[MetaSheet])
}

func TestLoadFile_FormatMismatch(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	r := DefaultRegistry()

	t.Run("spreadsheet renamed to csv", func(t *testing.T) {
		xlsx := writeXLSX(t, filepath.Join(dir, "courses.xlsx"))
		path := filepath.Join(dir, "courses.csv")
		require.NoError(t, os.Rename(xlsx, path))

		_, err := r.LoadFile(ctx, path)
		assert.ErrorIs(t, err, core.ErrSourceLoad)
		assert.ErrorIs(t, err, core.ErrSourceFormatMismatch)
	})

	t.Run("text renamed to pdf", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "notes.pdf"), "just some text")
		_, err := r.LoadFile(ctx, path)
		assert.ErrorIs(t, err, core.ErrSourceFormatMismatch)
	})

	t.Run("text renamed to docx", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "notes.docx"), "just some text")
		_, err := r.LoadFile(ctx, path)
		assert.ErrorIs(t, err, core.ErrSourceFormatMismatch)
	})

	t.Run("pdf renamed to txt", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "report.txt"), "%PDF-1.4\n%fake\n")
		_, err := r.LoadFile(ctx, path)
		assert.ErrorIs(t, err, core.ErrSourceFormatMismatch)
	})
}

func TestLoadFile_Unsupported(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "README.md"), "# hi")
	_, err := DefaultRegistry().LoadFile(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrSourceLoad)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestMatchSignature(t *testing.T) {
	assert.NoError(t, matchSignature(detect(nil), nil), "empty files are text")
	assert.NoError(t, matchSignature(detect([]byte("hello")), nil))
	assert.NoError(t, matchSignature(detect([]byte("%PDF-1.7")), []string{"pdf"}))
	assert.ErrorIs(t, matchSignature(detect([]byte("%PDF-1.7")), nil), core.ErrSourceFormatMismatch)
	assert.ErrorIs(t, matchSignature(detect([]byte("hello")), []string{"pdf"}), core.ErrSourceFormatMismatch)
}

func TestDirectory_Load(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "tokyo.txt"), "Tokyo is the capital of Japan.")
	writeFile(t, filepath.Join(root, "a.txt"), "Paris is the capital of France.")
	writeFile(t, filepath.Join(root, "c", "d", "dogs.txt"), "Dogs are mammals.")
	writeFile(t, filepath.Join(root, "ignored.md"), "not loaded")
	writeFile(t, filepath.Join(root, "broken.json"), "{")

	dir, err := NewDirectory(root, WithWorkers(4))
	require.NoError(t, err)

	docs, report, err := dir.Load(context.Background())
	require.NoError(t, err)

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	assert.Equal(t, []string{
		"Paris is the capital of France.",
		"Tokyo is the capital of Japan.",
		"Dogs are mammals.",
	}, texts)

	assert.Equal(t, 4, report.Files)
	assert.Equal(t, 3, report.Documents)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, filepath.Join(root, "broken.json"), report.Skipped[0].Path)
	assert.ErrorIs(t, report.Skipped[0].Err, core.ErrSourceLoad)
}

func TestDirectory_Files(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "z.csv"), "a\n1\n")
	writeFile(t, filepath.Join(root, "m", "x.TXT"), "x")
	writeFile(t, filepath.Join(root, "a.bin"), "x")

	dir, err := NewDirectory(root)
	require.NoError(t, err)

	files, err := dir.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "m", "x.TXT"),
		filepath.Join(root, "z.csv"),
	}, files)
	assert.Equal(t, root, dir.Root())
}

func TestDirectory_Empty(t *testing.T) {
	dir, err := NewDirectory(t.TempDir())
	require.NoError(t, err)

	docs, report, err := dir.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, report.Files)
}

func TestDirectory_MissingRoot(t *testing.T) {
	dir, err := NewDirectory(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)

	_, _, err = dir.Load(context.Background())
	assert.ErrorIs(t, err, core.ErrSourceLoad)
}

func TestDirectory_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")

	dir, err := NewDirectory(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = dir.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirectory_CustomRegistry(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "b.log"), "b")

	r := NewRegistry()
	r.Register(".log", LoaderFunc(func(ctx context.Context, path string) ([]core.SourceDocument, error) {
		return []core.SourceDocument{{Text: "log:" + filepath.Base(path)}}, nil
	}))

	dir, err := NewDirectory(root, WithRegistry(r))
	require.NoError(t, err)

	docs, _, err := dir.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "log:b.log", docs[0].Text)
	assert.Equal(t, "log", docs[0].Metadata[core.MetaFormat])

	_, err = NewDirectory(root, WithRegistry(nil))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestDirectory_LoaderPanic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "fine")
	writeFile(t, filepath.Join(root, "b.txt"), "boom")

	r := NewRegistry()
	r.Register(".txt", LoaderFunc(func(ctx context.Context, path string) ([]core.SourceDocument, error) {
		if filepath.Base(path) == "b.txt" {
			panic("loader exploded")
		}
		return LoadText(ctx, path)
	}))

	dir, err := NewDirectory(root, WithRegistry(r), WithWorkers(2))
	require.NoError(t, err)

	docs, report, err := dir.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "fine", docs[0].Text)

	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 1, report.Documents)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, filepath.Join(root, "b.txt"), report.Skipped[0].Path)
	assert.ErrorIs(t, report.Skipped[0].Err, core.ErrSourceLoad)
	assert.Contains(t, report.Skipped[0].Err.Error(), "loader exploded")
}
