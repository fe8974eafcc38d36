package service

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// OCR lookalikes that NFKC leaves alone: dash variants, multiplication signs,
// and word separators seen on Japanese fax forms.
var lookalikes = map[rune]rune{
	'‐': '-', '‑': '-', '‒': '-', '–': '-', '—': '-', '―': '-', '−': '-', '─': '-', '━': '-',
	'×': 'x', '✕': 'x', '╳': 'x',
	'・': ' ', '･': ' ', '、': ' ', '，': ' ', '。': ' ',
}

// symbols allowed inside product codes
const codeSymbols = "-/._#+"

// katakana prolonged sound mark typed in place of a hyphen: "M6ー20"
var reKanaDash = regexp.MustCompile(`([a-z0-9])ー([a-z0-9])`)

// letter o / l read instead of a digit: "1o0" -> "100", "2l" stays
var reDigitO = regexp.MustCompile(`(\d)o(\d)`)
var reDigitL = regexp.MustCompile(`(\d)[li](\d)`)

// Normalize canonicalizes raw OCR text into the form used for every
// comparison. It is pure and idempotent; empty or fully stripped input
// yields "".
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	// 1) full-width -> half-width, half-width kana -> full-width kana
	out := width.Fold.String(norm.NFKC.String(s))

	// 2) lookalikes, ASCII lowercase, allow-list
	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		if rr, ok := lookalikes[r]; ok {
			r = rr
		}
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune(codeSymbols, r):
			b.WriteRune(r)
		}
	}

	// 3) whitespace
	out = collapseSpaces(b.String())

	// 4) context substitutions until nothing changes
	return fixOCRContext(out)
}

func fixOCRContext(s string) string {
	prev := ""
	for s != prev {
		prev = s
		s = reKanaDash.ReplaceAllString(s, "$1-$2")
		s = reDigitO.ReplaceAllString(s, "${1}0$2")
		s = reDigitL.ReplaceAllString(s, "${1}1$2")
	}
	return s
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
