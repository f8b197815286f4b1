package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tech-vaibhav/RAG-API/internal/core"
)

func TestExtractTextPlainFormats(t *testing.T) {
	content := []byte("plain contents, unchanged")
	for _, name := range []string{"a.txt", "b.md", "c.csv", "d.json"} {
		text, err := ExtractText(content, name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if text != string(content) {
			t.Errorf("%s: content was altered", name)
		}
	}
}

func TestSupportedExtensionsAreDispatched(t *testing.T) {
	// Every listed extension must route to an extractor. Garbage bytes
	// may fail to parse, but never as an unsupported format.
	for _, ext := range SupportedExtensions {
		_, err := ExtractText([]byte("payload"), "doc"+ext)
		var formatErr *core.UnsupportedFormatError
		if errors.As(err, &formatErr) {
			t.Errorf("%s is listed as supported but the dispatch rejects it", ext)
		}
	}
}

func TestExtractTextUnsupportedExtension(t *testing.T) {
	_, err := ExtractText([]byte("x"), "malware.exe")

	var formatErr *core.UnsupportedFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
	if formatErr.Ext != ".exe" {
		t.Errorf("error names extension %q, want .exe", formatErr.Ext)
	}
	if !strings.Contains(err.Error(), ".exe") {
		t.Errorf("error message %q does not name the extension", err.Error())
	}
}

func TestExtractTextCaseInsensitiveExtension(t *testing.T) {
	if _, err := ExtractText([]byte("x"), "NOTES.TXT"); err != nil {
		t.Errorf("uppercase extension should be accepted: %v", err)
	}
}

func TestExtractTextHTML(t *testing.T) {
	html := []byte(`<html><head><style>p{color:red}</style></head><body><p>visible text</p><script>var hidden = 1;</script></body></html>`)
	text, err := ExtractText(html, "page.html")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !strings.Contains(text, "visible text") {
		t.Errorf("expected body text, got %q", text)
	}
	if strings.Contains(text, "hidden") || strings.Contains(text, "color:red") {
		t.Errorf("script/style content leaked into %q", text)
	}
}

func TestExtractTextDOCX(t *testing.T) {
	docXML := `<?xml version="1.0"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` +
		`<w:p><w:r><w:t>first paragraph</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>second paragraph</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(docXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	text, err := ExtractText(buf.Bytes(), "report.docx")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !strings.Contains(text, "first paragraph") || !strings.Contains(text, "second paragraph") {
		t.Errorf("missing paragraph text in %q", text)
	}
}

func TestExtractTextDOCXWithoutDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("something/else.xml"); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := ExtractText(buf.Bytes(), "broken.docx"); err == nil {
		t.Error("expected error for docx without word/document.xml")
	}
}
