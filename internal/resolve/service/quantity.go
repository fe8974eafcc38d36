package service

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"faxorder-service/internal/resolve/model"
	"faxorder-service/internal/utils"
)

// leading number, then an optional unit word: "12個", "1,200 pcs", "2,5 шт"
var reQuantity = regexp.MustCompile(`^([+\-]?)\s*(\d[\d\s.,']*)(.*)$`)

// QuantitySanitizer turns an OCR quantity token into a positive integer.
type QuantitySanitizer struct {
	tolerance float64
	max       int
}

func NewQuantitySanitizer(opts model.Options) QuantitySanitizer {
	return QuantitySanitizer{tolerance: opts.DecimalTolerance, max: opts.MaxQuantity}
}

// Sanitize parses token with Japanese conventions (comma groups thousands).
func (q QuantitySanitizer) Sanitize(token string) (int, error) {
	return q.SanitizeLocale(token, "ja")
}

// SanitizeLocale parses token using the customer's locale for the decimal
// separator. It never defaults: every failure is model.ErrInvalidQuantity.
func (q QuantitySanitizer) SanitizeLocale(token, locale string) (int, error) {
	s := strings.TrimSpace(norm.NFKC.String(token))
	if s == "" {
		return 0, invalidQuantity(token, "absent")
	}
	s = strings.NewReplacer("−", "-", "ー", "-").Replace(s)
	s = fixOCRContext(strings.ToLower(s))

	m := reQuantity.FindStringSubmatch(s)
	if m == nil {
		return 0, invalidQuantity(token, "not a number")
	}
	if strings.IndexFunc(m[3], unicode.IsDigit) >= 0 {
		return 0, invalidQuantity(token, "unexpected trailing digits")
	}

	v, ok := utils.ParseNumber(m[2], utils.DecimalComma(locale))
	if !ok {
		return 0, invalidQuantity(token, "not a number")
	}
	if m[1] == "-" {
		v = -v
	}

	rounded := math.Round(v)
	switch {
	case v <= 0 || rounded <= 0:
		return 0, invalidQuantity(token, "not positive")
	case math.Abs(v-rounded) > q.tolerance:
		return 0, invalidQuantity(token, "not an integer")
	case q.max > 0 && rounded > float64(q.max):
		return 0, invalidQuantity(token, fmt.Sprintf("exceeds %d", q.max))
	}
	return int(rounded), nil
}

func invalidQuantity(token, why string) error {
	return model.Errorf(model.ErrInvalidQuantity, fmt.Sprintf("invalid quantity %q: %s", token, why))
}
