package jobs

import "strings"

// Normalize prepares a paragraph for synthesis by turning every '.' into
// ",.". The extra pause keeps XTTS from running sentences together.
func Normalize(paragraph string) string {
	return strings.ReplaceAll(paragraph, ".", ",.")
}

// NormalizeAll applies Normalize to every paragraph and drops blank ones.
func NormalizeAll(paragraphs []string) []string {
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, Normalize(p))
	}
	return out
}
