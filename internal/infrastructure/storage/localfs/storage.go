package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
)

// Storage writes artifacts into a single output directory.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "."
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// Save writes data under a sanitized key and returns the final path. Data is
// staged in a temporary file and renamed, so a failed write leaves nothing
// behind under the target name.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader) (string, error) {
	name := sanitizeFilename(key)
	target := filepath.Join(s.basePath, name)
	operation := "save " + name

	tmp, err := os.CreateTemp(s.basePath, "."+name+".*.part")
	if err != nil {
		return "", domain.WrapError(domain.ErrStorage, operation, fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if err := ctx.Err(); err != nil {
		cleanup()
		return "", domain.WrapError(domain.ErrStorage, operation, err)
	}
	if _, err := io.Copy(tmp, data); err != nil {
		cleanup()
		return "", domain.WrapError(domain.ErrStorage, operation, fmt.Errorf("write file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", domain.WrapError(domain.ErrStorage, operation, fmt.Errorf("close file: %w", err))
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", domain.WrapError(domain.ErrStorage, operation, fmt.Errorf("rename file: %w", err))
	}
	return target, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	base = strings.TrimLeft(base, ".")
	if base == "" {
		return "artifact.bin"
	}
	return base
}
