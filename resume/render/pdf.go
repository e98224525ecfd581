package render

import (
	"fmt"
	"strings"
)

const (
	pdfMaxChars    = 2000
	pdfFontSize    = 11
	pdfLineLeading = 14
)

// PDF renders plain text into a minimal single-page PDF. One text object,
// Helvetica, one line per source line, capped at pdfMaxChars of content.
func PDF(text string) []byte {
	if len(text) > pdfMaxChars {
		text = text[:pdfMaxChars]
	}

	var stream strings.Builder
	fmt.Fprintf(&stream, "BT /F1 %d Tf %d TL 72 720 Td\n", pdfFontSize, pdfLineLeading)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			stream.WriteString("T*\n")
		}
		fmt.Fprintf(&stream, "(%s) Tj\n", escapePDF(line))
	}
	stream.WriteString("ET")
	content := stream.String()

	objects := []string{
		"1 0 obj<< /Type /Catalog /Pages 2 0 R >>endobj\n",
		"2 0 obj<< /Type /Pages /Kids [3 0 R] /Count 1 >>endobj\n",
		"3 0 obj<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>endobj\n",
		"4 0 obj<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>endobj\n",
		fmt.Sprintf("5 0 obj<< /Length %d >>stream\n%s\nendstream\nendobj\n", len(content), content),
	}

	var pdf []byte
	pdf = append(pdf, "%PDF-1.4\n"...)
	offsets := make([]int, 0, len(objects))
	for _, obj := range objects {
		offsets = append(offsets, len(pdf))
		pdf = append(pdf, obj...)
	}

	xrefOffset := len(pdf)
	pdf = append(pdf, "xref\n0 6\n0000000000 65535 f \n"...)
	for _, offset := range offsets {
		pdf = append(pdf, fmt.Sprintf("%010d 00000 n \n", offset)...)
	}
	pdf = append(pdf, "trailer<< /Size 6 /Root 1 0 R >>\nstartxref\n"...)
	pdf = append(pdf, fmt.Sprintf("%d\n", xrefOffset)...)
	pdf = append(pdf, "%%EOF"...)
	return pdf
}

func escapePDF(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	s = strings.ReplaceAll(s, ")", `\)`)
	return s
}
