// Package segment splits paragraph text into sentence-length units for synthesis.
//
// Synthesis backends receive a Segmenter at construction and must route their
// internal sentence splitting through it. TrailingDot wraps any Segmenter with
// the trailing-stop normalization; backends never need to know it is there.
package segment

import (
	"strings"
	"unicode"
)

// Segmenter turns text into ordered sentence units.
type Segmenter interface {
	Segment(text string) []string
}

// Func adapts a plain function to Segmenter.
type Func func(text string) []string

// Segment calls f.
func (f Func) Segment(text string) []string { return f(text) }

// abbreviations never end a sentence. Lowercase, without the trailing dot.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "sr": true,
	"sra": true, "st": true, "vs": true, "etc": true, "e.g": true, "i.e": true,
	"no": true, "jr": true, "av": true,
}

// Rules is a rule-based sentence splitter. A sentence ends after a run of
// '.', '!', '?' or '…' that is followed by whitespace or the end of the text,
// unless the word before a single '.' is a known abbreviation.
type Rules struct{}

// Default returns the stock rule-based segmenter.
func Default() Segmenter { return Rules{} }

// Segment implements Segmenter.
func (Rules) Segment(text string) []string {
	runes := []rune(text)
	var (
		units []string
		start int
	)

	emit := func(end int) {
		unit := strings.TrimSpace(string(runes[start:end]))
		if unit != "" {
			units = append(units, unit)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		// Consume the whole punctuation run plus closing quotes/brackets.
		j := i
		for j+1 < len(runes) && (isTerminal(runes[j+1]) || isCloser(runes[j+1])) {
			j++
		}
		atEnd := j+1 >= len(runes)
		if !atEnd && !unicode.IsSpace(runes[j+1]) {
			i = j
			continue
		}
		if j == i && runes[i] == '.' && isAbbreviation(runes[start:i]) {
			i = j
			continue
		}
		emit(j + 1)
		i = j
	}
	emit(len(runes))
	return units
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '»' || r == '”' || r == '’'
}

// isAbbreviation reports whether the last word of sentence is a known abbreviation.
func isAbbreviation(sentence []rune) bool {
	fields := strings.Fields(string(sentence))
	if len(fields) == 0 {
		return false
	}
	word := strings.ToLower(strings.TrimLeft(fields[len(fields)-1], `"'([«“`))
	return abbreviations[word]
}

// TrailingDot strips a single sentence-final '.' from every unit Base produces.
// Units ending in an ellipsis ("...") are left alone. With Enabled false it
// passes Base's output through unchanged.
type TrailingDot struct {
	Base    Segmenter
	Enabled bool
}

// WithTrailingDotPolicy wraps base with the trailing-dot rule.
func WithTrailingDotPolicy(base Segmenter, enabled bool) Segmenter {
	if base == nil {
		base = Default()
	}
	return TrailingDot{Base: base, Enabled: enabled}
}

// Segment implements Segmenter.
func (p TrailingDot) Segment(text string) []string {
	units := p.Base.Segment(text)
	if !p.Enabled {
		return units
	}
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, StripTrailingDot(u))
	}
	return out
}

// StripTrailingDot removes one trailing '.' unless s ends with "...".
func StripTrailingDot(s string) string {
	if strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "...") {
		return s[:len(s)-1]
	}
	return s
}
