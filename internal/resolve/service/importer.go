package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"faxorder-service/internal/resolve/model"
	"faxorder-service/internal/utils"
)

// ImportMapping names the spreadsheet columns of a catalog sheet. Each key
// may list alternatives separated by "|", e.g. "品名|商品名|Name".
type ImportMapping struct {
	NameKey        string
	PriceKey       string
	AliasKey       string
	DescriptionKey string
}

// DefaultImportMapping matches the headers of typical Japanese order sheets.
func DefaultImportMapping() ImportMapping {
	return ImportMapping{
		NameKey:        "品名|商品名|製品名|品目|name|product",
		PriceKey:       "単価|価格|base_price|price",
		AliasKey:       "別名|エイリアス|alias|aliases",
		DescriptionKey: "備考|説明|description",
	}
}

type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportReport struct {
	Rows              int              `json:"rows"`
	ProductsCreated   int              `json:"products_created"`
	PricesUpdated     int              `json:"prices_updated"`
	AliasesRegistered int              `json:"aliases_registered"`
	Errors            []ImportRowError `json:"errors,omitempty"`
}

// ImportCatalog upserts products from spreadsheet rows. Existing products
// (same canonical name) get their base price updated; aliases in the alias
// column are "|"-separated. Row failures are reported, not fatal.
func (e *Engine) ImportCatalog(ctx context.Context, rows []map[string]string, m ImportMapping) (ImportReport, error) {
	rep := ImportReport{}
	for i, rec := range rows {
		if looksLikeHeaderMap(rec) {
			continue
		}
		name := strings.TrimSpace(rec[resolveKey(rec, m.NameKey)])
		if name == "" {
			continue
		}
		rep.Rows++
		if err := e.importRow(ctx, rec, name, m, &rep); err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			rep.Errors = append(rep.Errors, ImportRowError{Row: i + 1, Error: err.Error()})
		}
	}
	e.logger.Info().
		Int("rows", rep.Rows).
		Int("created", rep.ProductsCreated).
		Int("prices", rep.PricesUpdated).
		Int("aliases", rep.AliasesRegistered).
		Int("errors", len(rep.Errors)).
		Msg("catalog imported")
	return rep, nil
}

func (e *Engine) importRow(ctx context.Context, rec map[string]string, name string, m ImportMapping, rep *ImportReport) error {
	var price *decimal.Decimal
	if key := resolveKey(rec, m.PriceKey); key != "" && strings.TrimSpace(rec[key]) != "" {
		clean, ok := utils.CleanNumber(rec[key], false)
		if !ok {
			return fmt.Errorf("invalid price %q", rec[key])
		}
		d, err := decimal.NewFromString(clean)
		if err != nil || d.IsNegative() {
			return fmt.Errorf("invalid price %q", rec[key])
		}
		price = &d
	}

	p, err := e.store.FindProductByName(ctx, name)
	switch {
	case errors.Is(err, model.ErrNotFound):
		in := ProductInput{Name: name, BasePrice: price}
		if key := resolveKey(rec, m.DescriptionKey); key != "" {
			in.Description = strings.TrimSpace(rec[key])
		}
		if p, err = e.CreateProduct(ctx, in); err != nil {
			return err
		}
		rep.ProductsCreated++
	case err != nil:
		return err
	case price != nil:
		changed, err := e.UpdateBasePrice(ctx, p.ID, *price, "import")
		if err != nil {
			return err
		}
		if changed {
			rep.PricesUpdated++
		}
	}

	key := resolveKey(rec, m.AliasKey)
	if key == "" {
		return nil
	}
	var errs []error
	for _, a := range strings.Split(rec[key], "|") {
		if strings.TrimSpace(a) == "" {
			continue
		}
		created, err := e.RegisterAlias(ctx, p.ID, a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if created {
			rep.AliasesRegistered++
		}
	}
	return errors.Join(errs...)
}

var reHeaderJunk = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// normHeaderKey lowercases a column title and drops punctuation.
func normHeaderKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(Normalize(s)))
	s = reHeaderJunk.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// resolveKey finds the record's real column for the wanted title:
// exact, then normalized, then the longest containment.
func resolveKey(rec map[string]string, want string) string {
	want = strings.TrimSpace(want)
	if want == "" {
		return ""
	}
	alts := strings.Split(want, "|")
	for i := range alts {
		alts[i] = strings.TrimSpace(alts[i])
		if _, ok := rec[alts[i]]; ok {
			return alts[i]
		}
	}

	norms := make([]string, 0, len(alts))
	for _, a := range alts {
		if n := normHeaderKey(a); n != "" {
			norms = append(norms, n)
		}
	}

	bestKey, bestScore := "", 0
	for k := range rec {
		nk := normHeaderKey(k)
		if nk == "" {
			continue
		}
		score := 0
		for _, n := range norms {
			if nk == n {
				return k
			}
			if strings.Contains(nk, n) || strings.Contains(n, nk) {
				score = max(score, len([]rune(n)))
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && k < bestKey) {
			bestScore, bestKey = score, k
		}
	}
	return bestKey
}

// looksLikeHeaderMap detects repeated header rows inside a sheet.
func looksLikeHeaderMap(m map[string]string) bool {
	cnt := 0
	for _, v := range m {
		s := normHeaderKey(v)
		for _, h := range []string{"品名", "商品名", "単価", "数量", "金額"} {
			if s == h {
				cnt++
				break
			}
		}
	}
	return cnt >= 2
}
