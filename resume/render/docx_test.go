package render

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"tailor-backend/resume/model"
)

var testContent = model.TailoredResume{
	Header:  model.Header{Name: "Ada Example", Title: "Backend Engineer"},
	Summary: "Go engineer focused on data plumbing & reliability.",
	Skills:  []string{"Go", "Postgres"},
	Experience: []model.Experience{
		{Company: "Acme", Title: "Engineer", Start: "2019", End: "2024", Bullets: []string{"Shipped the thing"}},
	},
	Education: []model.Education{{School: "State U", Degree: "BSc", Year: "2015"}},
}

func documentXML(t *testing.T, docxBytes []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(docxBytes), int64(len(docxBytes)))
	if err != nil {
		t.Fatalf("open rendered docx: %v", err)
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open document.xml: %v", err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read document.xml: %v", err)
			}
			return string(data)
		}
	}
	t.Fatal("rendered docx has no word/document.xml")
	return ""
}

func TestDOCXDefaultTemplate(t *testing.T) {
	out, err := DOCX(nil, testContent)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	doc := documentXML(t, out)
	if strings.Contains(doc, ContentToken) {
		t.Fatal("token should be replaced")
	}
	for _, want := range []string{"SUMMARY", "- Go", "Ada Example"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("expected %q in rendered document:\n%s", want, doc)
		}
	}
	// Ampersand must be escaped for the XML to stay well-formed.
	if !strings.Contains(doc, "&amp; reliability") {
		t.Fatalf("expected escaped ampersand in:\n%s", doc)
	}
}

func TestDOCXTemplateWithoutToken(t *testing.T) {
	// Build a template whose document.xml has no placeholder.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range []struct{ name, body string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Existing</w:t></w:r></w:p></w:body></w:document>`},
	} {
		w, _ := zw.Create(e.name)
		w.Write([]byte(e.body))
	}
	zw.Close()

	out, err := DOCX(buf.Bytes(), testContent)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	doc := documentXML(t, out)
	if !strings.Contains(doc, "Existing") {
		t.Fatal("template content should be preserved")
	}
	existingIdx := strings.Index(doc, "Existing")
	summaryIdx := strings.Index(doc, "SUMMARY")
	if summaryIdx < existingIdx {
		t.Fatal("appended content should follow existing paragraphs")
	}
}

func TestDOCXInvalidTemplate(t *testing.T) {
	if _, err := DOCX([]byte("not a zip"), testContent); err == nil {
		t.Fatal("expected error for invalid template bytes")
	}
}

func TestPDF(t *testing.T) {
	out := PDF("Line one (with parens)\nLine two \\ backslash")
	if !bytes.HasPrefix(out, []byte("%PDF-1.4")) {
		t.Fatalf("expected PDF header, got %q", out[:16])
	}
	if !bytes.HasSuffix(out, []byte("%%EOF")) {
		t.Fatal("expected EOF trailer")
	}
	body := string(out)
	if !strings.Contains(body, `Line one \(with parens\)`) {
		t.Fatalf("expected escaped parens in:\n%s", body)
	}
	if !strings.Contains(body, `Line two \\ backslash`) {
		t.Fatalf("expected escaped backslash in:\n%s", body)
	}
	if !strings.Contains(body, "T*") {
		t.Fatal("expected line advance operator for second line")
	}
}

func TestPDFCapsLength(t *testing.T) {
	out := PDF(strings.Repeat("a", 5000))
	if len(out) > 4000 {
		t.Fatalf("expected capped output, got %d bytes", len(out))
	}
}
