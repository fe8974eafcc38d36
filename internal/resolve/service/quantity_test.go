package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faxorder-service/internal/resolve/model"
)

func TestQuantitySanitizer(t *testing.T) {
	q := NewQuantitySanitizer(model.DefaultOptions())

	ok := []struct {
		in     string
		locale string
		want   int
	}{
		{"12", "ja", 12},
		{"１２", "ja", 12},
		{"12個", "ja", 12},
		{"50 pcs", "en", 50},
		{"1,200", "ja", 1200},
		{"1.200", "de", 1200},
		{"12.0", "ja", 12},
		{"3.0004", "ja", 3},
		{"1o0", "ja", 100},
		{"+7", "ja", 7},
		{"1000000", "ja", 1_000_000},
	}
	for _, tc := range ok {
		got, err := q.SanitizeLocale(tc.in, tc.locale)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	bad := []struct {
		in     string
		locale string
	}{
		{"", "ja"},
		{"   ", "ja"},
		{"abc", "ja"},
		{"-3", "ja"},
		{"ー3", "ja"},
		{"0", "ja"},
		{"2.5", "ja"},
		{"2,5", "ru"},
		{"1000001", "ja"},
		{"12個 3", "ja"},
	}
	for _, tc := range bad {
		_, err := q.SanitizeLocale(tc.in, tc.locale)
		require.Error(t, err, tc.in)
		assert.True(t, errors.Is(err, model.ErrInvalidQuantity), tc.in)
	}
}

func TestQuantitySanitizer_DefaultsToJapanese(t *testing.T) {
	q := NewQuantitySanitizer(model.DefaultOptions())
	got, err := q.Sanitize("2,000")
	require.NoError(t, err)
	assert.Equal(t, 2000, got)
}
