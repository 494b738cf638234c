// Package layout derives where narration outputs go and how they are named.
//
// Every name produced here is a pure function of its inputs, so re-running a
// job against an empty folder reproduces the same file set.
package layout

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ReportFileName is the document listing paragraphs that hit the engine's limits.
const ReportFileName = "paragraphs_with_limit_warnings.docx"

var (
	illegalChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Layout roots every job folder under Base.
type Layout struct {
	Base string
}

// SanitizeName makes a display name safe as a single path component.
func SanitizeName(name string) string {
	name = illegalChars.ReplaceAllString(name, "_")
	name = whitespace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// DeriveFolder returns <base>/<language>_<name>, where name is the sanitized
// display name without its extension. It performs no I/O.
func (l Layout) DeriveFolder(language, displayName string) string {
	name := SanitizeName(displayName)
	name = strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name)))
	if name == "" || name == "." || name == ".." {
		name = "document"
	}
	return filepath.Join(l.Base, fmt.Sprintf("%s_%s", language, name))
}

// EnsureFolder creates path and its parents if missing. Existing contents are
// never touched, and concurrent callers racing on the same path both succeed.
func EnsureFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating output folder %s: %w", path, err)
	}
	return nil
}

// AudioFileName is the default clip name for the 1-based paragraph index.
func AudioFileName(index int) string {
	return fmt.Sprintf("audio_%d.wav", index)
}

// FlaggedFileName is the clip name for a paragraph the engine warned about.
func FlaggedFileName(index int) string {
	return fmt.Sprintf("audio_%d__may_have_limit_warning.wav", index)
}

// AudioPath joins folder and the default clip name.
func AudioPath(folder string, index int) string {
	return filepath.Join(folder, AudioFileName(index))
}

// FlaggedPath joins folder and the flagged clip name.
func FlaggedPath(folder string, index int) string {
	return filepath.Join(folder, FlaggedFileName(index))
}

// ReportPath is where the error report for folder is written.
func ReportPath(folder string) string {
	return filepath.Join(folder, ReportFileName)
}

// CopySource stores the source document inside folder under its sanitized
// name and returns the new path. Copying a file onto itself is a no-op.
func CopySource(src, folder, displayName string) (string, error) {
	name := SanitizeName(displayName)
	if name == "" {
		name = filepath.Base(src)
	}
	dst := filepath.Join(folder, name)

	srcAbs, _ := filepath.Abs(src)
	dstAbs, _ := filepath.Abs(dst)
	if srcAbs == dstAbs {
		return dst, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening source document: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(folder, ".source-*")
	if err != nil {
		return "", fmt.Errorf("creating source copy: %w", err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copying source document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copying source document: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storing source document: %w", err)
	}
	return dst, nil
}

// Confine resolves path against root and rejects results outside root.
// Relative paths are taken relative to root.
func Confine(root, path string) (string, error) {
	base, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", root, err)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	clean := filepath.Clean(path)

	rel, err := filepath.Rel(base, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", path, base)
	}
	return clean, nil
}
