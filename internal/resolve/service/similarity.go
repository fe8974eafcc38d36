package service

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// similarity is 1 - distance/max(len) over runes, in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	m := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return 1 - float64(damerauLevenshtein(a, b))/float64(m)
}

// bestSimilarity also compares token-sorted forms so "m6 ボルト" and
// "ボルト m6" score as equal.
func bestSimilarity(a, b string) float64 {
	x := similarity(a, b)
	if !strings.Contains(a, " ") && !strings.Contains(b, " ") {
		return x
	}
	return max(x, similarity(tokenSort(a), tokenSort(b)))
}

// contains reports whether the shorter of a, b (at least minRunes long)
// is a substring of the other.
func contains(a, b string, minRunes int) bool {
	if a == "" || b == "" {
		return false
	}
	short, long := a, b
	if utf8.RuneCountInString(short) > utf8.RuneCountInString(long) {
		short, long = long, short
	}
	if utf8.RuneCountInString(short) < minRunes {
		return false
	}
	return strings.Contains(long, short)
}

// tokenSort sorts whitespace-separated tokens so word order does not matter.
func tokenSort(s string) string {
	f := strings.Fields(s)
	sort.Strings(f)
	return strings.Join(f, " ")
}
