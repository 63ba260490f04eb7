package resolver

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
)

const pdfTrailerWindow = 1024

type artifactInfo struct {
	Entries int
	Pages   int
}

// inspectArtifact checks that body really is the expected binary type, so a
// truncated or mislabeled payload is never persisted.
func inspectArtifact(kind domain.JobKind, body []byte) (artifactInfo, error) {
	if len(body) == 0 {
		return artifactInfo{}, fmt.Errorf("empty body")
	}
	switch kind.ExpectedMime() {
	case domain.PDFMimeType:
		return inspectPDF(body)
	default:
		return inspectZip(body)
	}
}

func inspectZip(body []byte) (artifactInfo, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return artifactInfo{}, fmt.Errorf("open zip: %w", err)
	}
	return artifactInfo{Entries: len(zr.File)}, nil
}

func inspectPDF(body []byte) (artifactInfo, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(body, "\x00\r\n\t "), []byte("%PDF-")) {
		return artifactInfo{}, fmt.Errorf("missing pdf header")
	}
	tail := body
	if len(tail) > pdfTrailerWindow {
		tail = tail[len(tail)-pdfTrailerWindow:]
	}
	if !bytes.Contains(tail, []byte("%%EOF")) {
		return artifactInfo{}, fmt.Errorf("missing pdf trailer")
	}
	return artifactInfo{Pages: countPDFPages(body)}, nil
}

// countPDFPages is best effort; zero means the page tree could not be read.
func countPDFPages(body []byte) (pages int) {
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return 0
	}
	return reader.NumPage()
}
