// Package voices lists the reference voice samples available for narration.
package voices

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Voice is one reference sample on disk.
type Voice struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// Catalog lists .wav samples in Dir.
type Catalog struct {
	Dir string
}

// List returns the .wav files in the catalog directory sorted by name.
// A missing directory yields an empty list.
func (c Catalog) List() ([]Voice, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading voices directory %s: %w", c.Dir, err)
	}

	var out []Voice
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Voice{
			Name:      entry.Name(),
			Path:      filepath.Join(c.Dir, entry.Name()),
			SizeBytes: info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Resolve turns a voice reference into a sample path. Existing paths are
// returned as-is; bare names are looked up in the catalog, with or without
// the .wav extension.
func (c Catalog) Resolve(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("no voice selected")
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, nil
	}

	list, err := c.List()
	if err != nil {
		return "", err
	}
	for _, v := range list {
		if v.Name == ref || strings.TrimSuffix(v.Name, filepath.Ext(v.Name)) == ref {
			return v.Path, nil
		}
	}
	return "", fmt.Errorf("voice %q not found in %s", ref, c.Dir)
}
