// Package normalize provides utilities for normalizing and sanitizing catalog input.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/text/unicode/norm"
)

// languageNameToCode maps common English language names to ISO 639-1 codes.
//
//nolint:gochecknoglobals // Static lookup table for language normalization
var languageNameToCode = map[string]string{
	"english": "en", "spanish": "es", "french": "fr", "german": "de",
	"italian": "it", "portuguese": "pt", "dutch": "nl", "russian": "ru",
	"japanese": "ja", "chinese": "zh", "korean": "ko", "arabic": "ar",
	"hindi": "hi", "polish": "pl", "swedish": "sv", "norwegian": "no",
	"danish": "da", "finnish": "fi", "turkish": "tr", "greek": "el",
	"hebrew": "he", "czech": "cs", "hungarian": "hu", "romanian": "ro",
	"ukrainian": "uk", "catalan": "ca", "persian": "fa", "farsi": "fa",
	"mandarin": "zh", "cantonese": "zh", "filipino": "tl", "tagalog": "tl",
}

// bibliographicCodes maps ISO 639-2/B codes to their ISO 639-1 form.
//
//nolint:gochecknoglobals // Static lookup table for language normalization
var bibliographicCodes = map[string]string{
	"ger": "de", "fre": "fr", "dut": "nl", "chi": "zh", "cze": "cs",
	"gre": "el", "per": "fa", "rum": "ro", "slo": "sk", "alb": "sq",
	"arm": "hy", "baq": "eu", "bur": "my", "geo": "ka", "ice": "is",
	"mac": "mk", "may": "ms", "tib": "bo", "wel": "cy",
}

//nolint:gochecknoglobals // cases.Caser is safe for reuse after construction
var folder = cases.Fold()

// Key folds s into the form used for case-insensitive uniqueness checks.
// "Science Fiction", "SCIENCE FICTION" and "science  fiction " all map to the same key.
func Key(s string) string {
	s = norm.NFKC.String(sanitizeString(s))
	s = strings.Join(strings.Fields(s), " ")
	return folder.String(s)
}

// Name trims and collapses interior whitespace in a display name.
func Name(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(sanitizeString(s))), " ")
}

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ISBN strips hyphens and spaces and uppercases the check digit.
// "978-0-441-17271-9" -> "9780441172719", "0-8044-2957-x" -> "080442957X".
func ISBN(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '-' || unicode.IsSpace(r):
			return -1
		case r == 'x':
			return 'X'
		}
		return r
	}, s)
}

// LanguageCode converts various language representations to ISO 639-1 codes.
// It handles:
//   - ISO 639-1 codes: "en" -> "en"
//   - ISO 639-2 codes: "eng", "ger" -> "en", "de"
//   - Locale codes: "en-US", "en_GB" -> "en"
//   - Language names: "English", "ENGLISH" -> "en"
//
// Returns empty string for unrecognized values.
func LanguageCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(sanitizeString(raw)))
	if s == "" {
		return ""
	}

	if code, ok := languageNameToCode[s]; ok {
		return code
	}

	if idx := strings.IndexAny(s, "-_"); idx > 0 {
		s = s[:idx]
	}
	if code, ok := bibliographicCodes[s]; ok {
		return code
	}
	if len(s) != 2 && len(s) != 3 {
		return ""
	}

	base, err := language.ParseBase(s)
	if err != nil {
		return ""
	}
	code := base.String()
	if len(code) != 2 {
		// Valid ISO 639 language without a two-letter form.
		return ""
	}
	return code
}

// Language converts various language representations to English display names.
// "en" -> "English", "german" -> "German", "deu" -> "German".
// Returns empty string for unrecognized values.
func Language(raw string) string {
	code := LanguageCode(raw)
	if code == "" {
		return ""
	}
	return display.English.Languages().Name(language.Make(code))
}

// sanitizeString removes null bytes, which break JSON and some SQL drivers.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
