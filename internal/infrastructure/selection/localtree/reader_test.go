package localtree

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestReadDirKeepsRelativePathsAndSkipsExcluded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", "print(1)")
	writeFile(t, root, "pkg/util/helpers.js", "export {}")
	writeFile(t, root, "node_modules/left-pad/index.js", "module.exports = 1")
	writeFile(t, root, "pkg/.git/HEAD", "ref")

	entries, err := New([]string{"node_modules", ".git"}).ReadDir(context.Background(), root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.RelativePath)
	}
	sort.Strings(paths)
	want := []string{"app.py", "pkg/util/helpers.js"}
	if len(paths) != len(want) {
		t.Fatalf("expected %v, got %v", want, paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, paths)
		}
	}
}

func TestReadDirEmptyTreeIsInvalid(t *testing.T) {
	root := t.TempDir()
	_, err := New(nil).ReadDir(context.Background(), root)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestReadFileUsesBaseName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bundle.zip", "PK")

	entry, err := New(nil).ReadFile(context.Background(), filepath.Join(root, "bundle.zip"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if entry.RelativePath != "bundle.zip" || !entry.IsArchive() {
		t.Fatalf("unexpected entry %+v", entry)
	}
}
