package io

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirSink writes artifacts as files into Dir, creating it if needed.
type DirSink struct {
	Dir string
}

// Write stages every artifact under a temporary name and renames them into
// place once all were written. Staging failures leave the previous artifacts
// untouched. The dump is renamed last, so a failed rename never pairs a new
// dump with old lookup tables; it may leave new tables next to the old dump.
func (s DirSink) Write(ctx context.Context, a Artifacts) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.Dir, err)
	}

	fs := a.files()
	staged := make([]string, 0, len(fs))
	defer func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}()

	for _, f := range fs {
		if err := ctx.Err(); err != nil {
			return err
		}
		tmp, err := writeTemp(s.Dir, f.name, f.data)
		if err != nil {
			return err
		}
		staged = append(staged, tmp)
	}

	for i, f := range fs {
		if err := os.Rename(staged[i], filepath.Join(s.Dir, f.name)); err != nil {
			return fmt.Errorf("rename %s: %w", f.name, err)
		}
	}
	staged = staged[:0]
	return nil
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return f.Name(), nil
}

// WriteFileAtomic writes data to path through a temporary file in the same
// directory.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := writeTemp(filepath.Dir(path), filepath.Base(path), data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ReadDir loads the artifacts written by [DirSink]. A missing last_updated
// file leaves LastUpdated empty.
func ReadDir(dir string) (Artifacts, error) {
	var a Artifacts
	for _, f := range []struct {
		name string
		dst  *[]byte
	}{
		{DumpName, &a.Dump},
		{KeywordsName, &a.Keywords},
		{CategoriesName, &a.Categories},
	} {
		b, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			return Artifacts{}, fmt.Errorf("read %s: %w", f.name, err)
		}
		*f.dst = b
	}

	b, err := os.ReadFile(filepath.Join(dir, LastUpdatedName))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Artifacts{}, fmt.Errorf("read %s: %w", LastUpdatedName, err)
	default:
		a.LastUpdated = strings.TrimSpace(string(b))
	}
	return a, nil
}
