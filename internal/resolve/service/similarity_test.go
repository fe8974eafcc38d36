package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDamerauLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"ca", "ac", 1},
		{"ボルト", "ボトル", 1},
		{"ワッシャー特大", "ワッシャー特小m10", 4},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, damerauLevenshtein(tc.a, tc.b), "%s / %s", tc.a, tc.b)
		assert.Equal(t, tc.want, damerauLevenshtein(tc.b, tc.a), "symmetric %s / %s", tc.a, tc.b)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("ボルト", "ボルト"))
	assert.Equal(t, 0.0, similarity("", "ボルト"))
	assert.InDelta(t, 0.6, similarity("ワッシャー特大", "ワッシャー特小m10"), 1e-9)
	assert.Equal(t, 1.0, bestSimilarity("m6 ボルト", "ボルト m6"))
	assert.Less(t, similarity("m6 ボルト", "ボルト m6"), 1.0)
}

func TestContains(t *testing.T) {
	assert.True(t, contains("六角ボルト", "六角ボルトm6", 2))
	assert.True(t, contains("六角ボルトm6", "六角ボルト", 2))
	assert.False(t, contains("m", "m6", 2), "too short to count")
	assert.False(t, contains("", "m6", 0))
	assert.False(t, contains("ナット", "ボルト", 2))
}

func TestTokenSort(t *testing.T) {
	assert.Equal(t, "m6 ボルト 六角", tokenSort("六角 ボルト m6"))
}
