package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var rxKeepNums = regexp.MustCompile(`[^\d\.\-]`)

// ParseNumber parses human-typed numbers such as "1,234", "1 234,50" or
// "¥1,200". With decimalComma the comma is the decimal separator and dots
// group thousands; otherwise commas group thousands.
func ParseNumber(s string, decimalComma bool) (float64, bool) {
	clean, ok := CleanNumber(s, decimalComma)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	return f, err == nil
}

// CleanNumber strips grouping, currency marks and spaces from s and returns
// the plain numeric text ParseNumber would parse, for callers that need
// the exact decimal rather than a float.
func CleanNumber(s string, decimalComma bool) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	repl := strings.NewReplacer(" ", "", "\u00A0", "", "\u202F", "", "\u2009", "", "\u3000", "", "\t", "", "'", "")
	s = repl.Replace(s)
	if decimalComma {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	s = rxKeepNums.ReplaceAllString(s, "")
	if s == "" || s == "-" || s == "." {
		return "", false
	}
	return s, true
}

var commaLocales = map[string]bool{
	"ru": true, "uk": true, "de": true, "fr": true, "es": true, "it": true,
	"pt": true, "nl": true, "pl": true, "cs": true, "tr": true, "sv": true,
}

// DecimalComma reports whether the locale writes decimals with a comma.
// Region suffixes ("de-AT", "pt_BR") are ignored.
func DecimalComma(locale string) bool {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	return commaLocales[l]
}
