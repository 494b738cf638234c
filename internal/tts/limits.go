package tts

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// charLimits are the per-language sentence lengths XTTS accepts before it
// warns about truncated audio.
var charLimits = map[string]int{
	"en":    250,
	"de":    253,
	"fr":    273,
	"es":    239,
	"it":    213,
	"pt":    203,
	"pl":    224,
	"zh":    82,
	"zh-cn": 82,
	"ar":    166,
	"cs":    186,
	"ru":    182,
	"nl":    251,
	"tr":    226,
	"ja":    71,
	"hu":    224,
	"ko":    95,
}

// DefaultCharLimit applies to languages without a specific entry.
const DefaultCharLimit = 250

// CharLimit returns the per-sentence character limit for language.
func CharLimit(language string) int {
	if n, ok := charLimits[strings.ToLower(language)]; ok {
		return n
	}
	return DefaultCharLimit
}

// LimitWarning is the engine warning emitted for an over-long sentence. The
// wording matches XTTS so every backend is classified the same way.
func LimitWarning(limit int, language string) string {
	return fmt.Sprintf("[!] Warning: The text length exceeds the character limit of %d for language '%s', this might cause truncated audio.", limit, language)
}

// CheckUnits returns one LimitWarning line per unit longer than the
// language's character limit.
func CheckUnits(units []string, language string) []string {
	limit := CharLimit(language)
	var warnings []string
	for _, u := range units {
		if utf8.RuneCountInString(u) > limit {
			warnings = append(warnings, LimitWarning(limit, language))
		}
	}
	return warnings
}
