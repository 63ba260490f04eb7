package domain

import (
	"path"
	"strings"
)

const ArchiveMimeType = "application/zip"

// SelectedEntry is one file picked by the user, addressed by its path
// relative to the selection root.
type SelectedEntry struct {
	RelativePath string
	Bytes        []byte
}

// IsArchive reports whether the entry is a pre-built zip supplied directly.
func (e SelectedEntry) IsArchive() bool {
	return strings.EqualFold(path.Ext(e.RelativePath), ".zip")
}

// Archive is an immutable zip payload ready for submission.
type Archive struct {
	Name      string
	MimeType  string
	Bytes     []byte
	SizeBytes int64
}

// NewArchive wraps raw zip bytes. The byte slice is not copied; callers hand
// over ownership.
func NewArchive(name string, data []byte) *Archive {
	return &Archive{
		Name:      name,
		MimeType:  ArchiveMimeType,
		Bytes:     data,
		SizeBytes: int64(len(data)),
	}
}

// ArchiveName normalizes a selection name into a file name ending in .zip.
func ArchiveName(name string) string {
	base := strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if base == "" || base == "." || base == "/" {
		base = "selected_files"
	}
	if !strings.EqualFold(path.Ext(base), ".zip") {
		base += ".zip"
	}
	return base
}
