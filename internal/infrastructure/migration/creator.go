package migration

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Files in /migrations carry a six digit zero padded version
const versionWidth = 6

// MigrationFile is a freshly written up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	UpPath      string
	DownPath    string
}

// CreateMigration writes empty up and down files numbered one past the newest
// migration already in dir. Existing files are never overwritten.
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	existing, err := ListMigrations(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	var last uint64
	if n := len(existing); n > 0 {
		last, _ = versionOf(existing[n-1])
	}

	version := fmt.Sprintf("%0*d", versionWidth, last+1)
	stem := filepath.Join(dir, version+"_"+slug)
	mf := &MigrationFile{
		Version:     version,
		Name:        slug,
		Description: description,
		UpPath:      stem + ".up.sql",
		DownPath:    stem + ".down.sql",
	}

	created := time.Now().Format(time.RFC3339)
	up := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n-- Description: %s\n\n", slug, created, description)
	if err := writeNew(mf.UpPath, up); err != nil {
		return nil, err
	}
	down := fmt.Sprintf("-- Migration: %s (Rollback)\n-- Created: %s\n\n", slug, created)
	if err := writeNew(mf.DownPath, down); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

func writeNew(path, body string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(body)
	return errors.Join(werr, f.Close())
}

// sanitizeName keeps lowercase letters and digits, turning runs of spaces,
// dashes and underscores into one underscore.
func sanitizeName(name string) string {
	kept := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return ' '
		}
		return -1
	}, strings.ToLower(name))
	return strings.Join(strings.Fields(kept), "_")
}

// ListMigrations names every up migration in fsys without its suffix, oldest
// first. A missing directory lists nothing.
func ListMigrations(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	var names []string
	for _, e := range entries {
		if stem, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok && !e.IsDir() {
			names = append(names, stem)
		}
	}
	slices.SortStableFunc(names, func(a, b string) int {
		va, _ := versionOf(a)
		vb, _ := versionOf(b)
		return cmp.Compare(va, vb)
	})
	return names, nil
}

func versionOf(stem string) (uint64, error) {
	prefix, _, _ := strings.Cut(stem, "_")
	return strconv.ParseUint(prefix, 10, 64)
}
