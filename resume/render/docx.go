package render

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"tailor-backend/resume/model"
)

// ContentToken is the placeholder a template marks for tailored content.
const ContentToken = "{{TAILORED_CONTENT}}"

const documentPath = "word/document.xml"

// DOCX renders tailored content into a DOCX template. The template's
// ContentToken is replaced with the flattened section lines; a template
// without the token gets the content appended at the end of the body.
// Empty templateBytes falls back to the built-in default template.
func DOCX(templateBytes []byte, content model.TailoredResume) ([]byte, error) {
	if len(templateBytes) == 0 {
		templateBytes = DefaultTemplate()
	}

	zr, err := zip.NewReader(bytes.NewReader(templateBytes), int64(len(templateBytes)))
	if err != nil {
		return nil, fmt.Errorf("open docx template: %w", err)
	}

	docXML, err := readZipEntry(zr, documentPath)
	if err != nil {
		return nil, err
	}

	rendered, err := injectContent(docXML, content.SectionLines())
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, f := range zr.File {
		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("write docx entry %s: %w", f.Name, err)
		}
		if f.Name == documentPath {
			if _, err := w.Write([]byte(rendered)); err != nil {
				return nil, fmt.Errorf("write docx document: %w", err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("copy docx entry %s: %w", f.Name, err)
		}
		if _, err := io.Copy(w, rc); err != nil {
			rc.Close()
			return nil, fmt.Errorf("copy docx entry %s: %w", f.Name, err)
		}
		rc.Close()
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize docx: %w", err)
	}
	return out.Bytes(), nil
}

func readZipEntry(zr *zip.Reader, name string) (string, error) {
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return string(data), nil
	}
	return "", errors.New("template has no " + name)
}

// injectContent replaces the token in place, splitting the enclosing run so
// each content line lands on its own visual line. Token-less templates get
// full paragraphs appended before the body close.
func injectContent(docXML string, lines []string) (string, error) {
	if strings.Contains(docXML, ContentToken) {
		return strings.Replace(docXML, ContentToken, inlineRuns(lines), 1), nil
	}

	const bodyClose = "</w:body>"
	idx := strings.LastIndex(docXML, bodyClose)
	if idx < 0 {
		return "", errors.New("template document.xml has no body element")
	}
	return docXML[:idx] + paragraphs(lines) + docXML[idx:], nil
}

// inlineRuns assumes the token sits inside <w:r><w:t>...</w:t></w:r> and
// stitches line breaks by closing and reopening the run around <w:br/>.
func inlineRuns(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	escaped := make([]string, 0, len(lines))
	for _, line := range lines {
		escaped = append(escaped, escapeXML(line))
	}
	sep := `</w:t></w:r><w:r><w:br/></w:r><w:r><w:t xml:space="preserve">`
	return strings.Join(escaped, sep)
}

func paragraphs(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		b.WriteString(escapeXML(line))
		b.WriteString(`</w:t></w:r></w:p>`)
	}
	return b.String()
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
