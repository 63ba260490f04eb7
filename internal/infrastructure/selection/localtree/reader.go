package localtree

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
)

// Reader turns files on disk into selected entries. It stands in for the
// browser file picker when the orchestrator is driven from a terminal.
type Reader struct {
	exclude map[string]struct{}
}

func New(excludeDirs []string) *Reader {
	exclude := make(map[string]struct{}, len(excludeDirs))
	for _, dir := range excludeDirs {
		dir = strings.TrimSpace(dir)
		if dir != "" {
			exclude[dir] = struct{}{}
		}
	}
	return &Reader{exclude: exclude}
}

// ReadDir walks root and returns every regular file with a slash-separated
// path relative to root. Excluded directory names are skipped at any depth.
func (r *Reader) ReadDir(ctx context.Context, root string) ([]domain.SelectedEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat selection root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, root)
	}

	var entries []domain.SelectedEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && r.excluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		entries = append(entries, domain.SelectedEntry{
			RelativePath: filepath.ToSlash(rel),
			Bytes:        data,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk selection: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no files found under %s", domain.ErrInvalidInput, root)
	}
	return entries, nil
}

// ReadFile loads a single file, typically a pre-built zip.
func (r *Reader) ReadFile(_ context.Context, path string) (domain.SelectedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SelectedEntry{}, fmt.Errorf("read selected file: %w", err)
	}
	return domain.SelectedEntry{
		RelativePath: filepath.Base(path),
		Bytes:        data,
	}, nil
}

func (r *Reader) excluded(name string) bool {
	_, ok := r.exclude[name]
	return ok
}
