package zipbuilder

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
	"github.com/kirillkom/code-explainer-uploader/internal/core/ports"
)

const defaultChunkSize = 32 * 1024

type Builder struct {
	chunkSize int
	now       func() time.Time
}

func New() *Builder {
	return NewWithChunkSize(defaultChunkSize)
}

// NewWithChunkSize controls how often progress is reported inside large files.
func NewWithChunkSize(chunkSize int) *Builder {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Builder{chunkSize: chunkSize, now: time.Now}
}

// Build deflates entries into one zip archive. Progress tracks uncompressed
// bytes consumed; 100 is reported only once the central directory is written.
func (b *Builder) Build(
	ctx context.Context,
	name string,
	entries []domain.SelectedEntry,
	onProgress ports.ProgressFunc,
) (*domain.Archive, error) {
	if len(entries) == 0 {
		return nil, domain.WrapError(domain.ErrArchive, "build archive", domain.ErrInvalidInput)
	}

	var total int64
	for _, entry := range entries {
		if strings.TrimSpace(entry.RelativePath) == "" {
			return nil, domain.WrapError(domain.ErrArchive, "build archive", fmt.Errorf("%w: empty relative path", domain.ErrInvalidInput))
		}
		total += int64(len(entry.Bytes))
	}

	progress := newTracker(total, onProgress)
	progress.report(0)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := b.now()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return nil, domain.WrapError(domain.ErrArchive, "build archive", err)
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entry.RelativePath,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			_ = zw.Close()
			return nil, domain.WrapError(domain.ErrArchive, "create entry "+entry.RelativePath, err)
		}
		if err := b.copyChunks(ctx, w, entry.Bytes, progress); err != nil {
			_ = zw.Close()
			return nil, domain.WrapError(domain.ErrArchive, "write entry "+entry.RelativePath, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, domain.WrapError(domain.ErrArchive, "finalize archive", err)
	}
	progress.finish()

	return domain.NewArchive(domain.ArchiveName(name), buf.Bytes()), nil
}

func (b *Builder) copyChunks(ctx context.Context, w io.Writer, data []byte, progress *tracker) error {
	for start := 0; start < len(data); start += b.chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + b.chunkSize
		if end > len(data) {
			end = len(data)
		}
		n, err := w.Write(data[start:end])
		progress.add(int64(n))
		if err != nil {
			return err
		}
	}
	return nil
}
