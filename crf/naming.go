package crf

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Public constants (alphabetical)
const (
	// FallbackStem replaces a stem that sanitizes to nothing.
	FallbackStem = "untitled"

	// MaxStemBytes bounds the sanitized stem so that stem, tag and extension
	// stay below the 255 byte limit common to most filesystems.
	MaxStemBytes = 200

	// SkipTag marks files that were already inside the target range.
	SkipTag = "skip"
)

// Private variables (alphabetical)

// fileNameReplacer maps characters that are illegal on at least one major
// filesystem to safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// tagSuffixRegex matches one trailing tag added by this tool or by older
// releases ("predicted crf 23", "crf 23.5", "skip").
var tagSuffixRegex = regexp.MustCompile(`(?i)(^|\s+)(predicted\s+)?(crf\s*\d{1,3}(\.\d+)?|skip)\s*$`)

// Public functions (alphabetical)

// CRFTag returns the tag inserted before the extension, e.g. "crf 26".
func CRFTag(formatted string) string {
	return "crf " + formatted
}

// Sanitize makes a filename stem safe to use on disk.
//
// Reserved characters are replaced or removed, control characters are
// dropped, runs of whitespace collapse to one space, the result is
// NFC-normalized and trailing dots or spaces are trimmed. The result never
// exceeds MaxStemBytes. Sanitize(Sanitize(s)) == Sanitize(s) for every s.
func Sanitize(stem string) string {
	stem = fileNameReplacer.Replace(stem)

	var b strings.Builder
	b.Grow(len(stem))
	space := false
	for _, r := range stem {
		switch {
		case r == utf8.RuneError:
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	return trimStem(truncateBytes(norm.NFC.String(b.String()), MaxStemBytes))
}

// StripTags removes any trailing tags previously added to stem so re-running
// the tool replaces a tag instead of stacking a second one. A stem made only
// of a tag ("Skip", "crf 5") is a title and is kept.
func StripTags(stem string) string {
	stem = strings.TrimSpace(stem)
	for {
		stripped := strings.TrimSpace(tagSuffixRegex.ReplaceAllString(stem, ""))
		if stripped == stem || stripped == "" {
			return stem
		}
		stem = stripped
	}
}

// TaggedName returns filename with its stem sanitized, previous tags removed
// and tag inserted before the original extension.
//
//	TaggedName("a.mp4", "crf 26") == "a crf 26.mp4"
func TaggedName(filename, tag string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	clean := trimStem(StripTags(Sanitize(stem)))
	if clean == "" {
		clean = FallbackStem
	}
	return clean + " " + tag + ext
}

// Private functions (alphabetical)

func trimStem(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ". ")
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
