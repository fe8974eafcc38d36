package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faxorder-service/internal/resolve/model"
	"faxorder-service/internal/resolve/service"
)

func TestCreateProduct(t *testing.T) {
	f := newFixture(t)

	p := f.product(t, "  六角ボルトM6 ", "8", "ボルト6", "ヘックスM6")
	assert.Equal(t, "六角ボルトM6", p.Name)
	assert.True(t, p.BasePrice.Valid)
	assert.ElementsMatch(t, []string{"ボルト6", "ヘックスM6"}, f.engine.Index().AllAliasesFor(p.ID))

	hist, err := f.engine.PriceHistory(f.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "manual", hist[0].Source)

	_, err = f.engine.CreateProduct(f.ctx, service.ProductInput{Name: "・・・"})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	_, err = f.engine.CreateProduct(f.ctx, service.ProductInput{Name: "ナット", Aliases: []string{"ボルト6"}})
	assert.True(t, errors.Is(err, model.ErrAliasConflict))
}

func TestRegisterAlias_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.RegisterAlias(f.ctx, "missing", "ボルト")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestImportCatalog(t *testing.T) {
	f := newFixture(t)
	f.product(t, "六角ナットM6", "3", "ナット6")

	rows := []map[string]string{
		{"品名": "六角ボルトM6", "単価": "8", "別名": "ボルトM6|六角M6", "備考": "SUS304"},
		{"品名": "平ワッシャーM10", "単価": "abc", "別名": ""},
		{"品名": "六角ナットM6", "単価": "3.5", "別名": "ナット6"},
		{"品名": "品名", "単価": "単価", "別名": ""},
		{"品名": "", "単価": "1", "別名": ""},
		{"品名": "蝶ナットM8", "単価": "", "別名": "ナット6"},
	}
	rep, err := f.engine.ImportCatalog(f.ctx, rows, service.DefaultImportMapping())
	require.NoError(t, err)

	assert.Equal(t, 4, rep.Rows)
	assert.Equal(t, 2, rep.ProductsCreated)
	assert.Equal(t, 1, rep.PricesUpdated)
	assert.Equal(t, 2, rep.AliasesRegistered)
	require.Len(t, rep.Errors, 2)
	assert.Equal(t, 2, rep.Errors[0].Row)
	assert.Equal(t, 6, rep.Errors[1].Row)

	bolt, err := f.store.FindProductByName(f.ctx, "六角ボルトM6")
	require.NoError(t, err)
	assert.Equal(t, "SUS304", bolt.Description)
	assert.True(t, bolt.BasePrice.Decimal.Equal(dec("8")))

	nut, err := f.store.FindProductByName(f.ctx, "六角ナットM6")
	require.NoError(t, err)
	assert.True(t, nut.BasePrice.Decimal.Equal(dec("3.5")))

	t.Run("re-import is idempotent", func(t *testing.T) {
		rep, err := f.engine.ImportCatalog(f.ctx, rows[:1], service.DefaultImportMapping())
		require.NoError(t, err)
		assert.Equal(t, 0, rep.ProductsCreated)
		assert.Equal(t, 0, rep.PricesUpdated)
		assert.Equal(t, 0, rep.AliasesRegistered)
		assert.Empty(t, rep.Errors)
	})
}

func TestImportCatalog_ExactPrices(t *testing.T) {
	f := newFixture(t)
	rows := []map[string]string{
		{"品名": "六角ボルトM6", "単価": "¥1,200.10"},
		{"品名": "蝶ナットM8", "単価": "0.0000001"},
		{"品名": "平ワッシャーM10", "単価": "-3"},
		{"品名": "六角ナットM6", "単価": "1.2.3"},
	}
	rep, err := f.engine.ImportCatalog(f.ctx, rows, service.DefaultImportMapping())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.ProductsCreated)
	require.Len(t, rep.Errors, 2)

	bolt, err := f.store.FindProductByName(f.ctx, "六角ボルトM6")
	require.NoError(t, err)
	assert.Equal(t, "1200.1", bolt.BasePrice.Decimal.String())

	nut, err := f.store.FindProductByName(f.ctx, "蝶ナットM8")
	require.NoError(t, err)
	assert.True(t, nut.BasePrice.Decimal.Equal(dec("0.0000001")))
}

func TestAliasSuggestions(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "ja")
	washer := f.product(t, "ワッシャー特小M10", "2")
	f.product(t, "六角ボルトM6", "8")

	res := resolveOrder(t, f, c.ID,
		service.LineInput{RawText: "ワッシャー特大", RawQuantity: "1"},
		service.LineInput{RawText: "ワッシャー特大", RawQuantity: "2"},
		service.LineInput{RawText: "まったく別の品物です", RawQuantity: "1"},
	)

	list, err := f.engine.AliasSuggestions(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1, "duplicates collapse and weak matches are skipped")
	assert.Equal(t, washer.ID, list[0].ProductID)
	assert.Equal(t, "ワッシャー特大", list[0].RawText)
	assert.Equal(t, "ワッシャー特小M10", list[0].ProductName)
	assert.InDelta(t, 0.6, list[0].Score, 1e-9)

	_, err = f.engine.Confirm(f.ctx, service.ConfirmInput{LineID: res.Lines[0].Line.ID, ProductID: washer.ID, Quantity: 1})
	require.NoError(t, err)

	list, err = f.engine.AliasSuggestions(f.ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, list, "a learned alias is no longer suggested")
}

func TestAliasSuggestions_LimitIsClamped(t *testing.T) {
	f, fs := newFaultyFixture(t)
	c := f.customer(t, "ja")
	f.product(t, "ワッシャー特小M10", "2")
	resolveOrder(t, f, c.ID, service.LineInput{RawText: "ワッシャー特大", RawQuantity: "1"})

	list, err := f.engine.AliasSuggestions(f.ctx, 100_000_000)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, service.MaxListLimit*4, fs.listLimit)

	list, err = f.engine.AliasSuggestions(f.ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 80, fs.listLimit)
}

func TestRecordPurchase(t *testing.T) {
	f := newFixture(t)
	bolt := f.product(t, "六角ボルトM6", "8")

	f.clock.Advance(time.Hour)
	rec, err := f.engine.RecordPurchase(f.ctx, service.PurchaseInput{ProductID: bolt.ID, Price: dec("7.5"), Note: " 問屋A "})
	require.NoError(t, err)
	assert.True(t, rec.PriceChanged)
	assert.Equal(t, "問屋A", rec.Note)
	assert.Equal(t, t0.Add(time.Hour), rec.RecordedAt)

	p, err := f.store.GetProduct(f.ctx, bolt.ID)
	require.NoError(t, err)
	assert.True(t, p.BasePrice.Decimal.Equal(dec("7.5")))

	f.clock.Advance(time.Hour)
	again, err := f.engine.RecordPurchase(f.ctx, service.PurchaseInput{ProductID: bolt.ID, Price: dec("7.50")})
	require.NoError(t, err)
	assert.False(t, again.PriceChanged, "same price is recorded without a new version")

	hist, err := f.engine.PriceHistory(f.ctx, bolt.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "purchase", hist[0].Source)

	list, err := f.engine.ListPurchases(f.ctx, bolt.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, again.ID, list[0].ID)

	_, err = f.engine.RecordPurchase(f.ctx, service.PurchaseInput{ProductID: bolt.ID, Price: dec("-1")})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
	_, err = f.engine.RecordPurchase(f.ctx, service.PurchaseInput{ProductID: "missing", Price: dec("1")})
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = f.engine.ListPurchases(f.ctx, "missing", 10)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestCatalogListings(t *testing.T) {
	f := newFixture(t)
	bolt := f.product(t, "六角ボルトM6", "8", "ボルト6", "ヘックスM6")
	f.product(t, "蝶ナットM8", "50")
	c := f.customer(t, "ja")
	other := f.customer(t, "ru")

	products, err := f.engine.ListProducts(f.ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	aliases, err := f.engine.ListAliases(f.ctx)
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	assert.Equal(t, bolt.ID, aliases[0].ProductID)

	own, err := f.engine.ProductAliases(f.ctx, bolt.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ボルト6", "ヘックスM6"}, own)
	_, err = f.engine.ProductAliases(f.ctx, "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	customers, err := f.engine.ListCustomers(f.ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 2)

	_, err = f.engine.SetCustomerPrice(f.ctx, c.ID, bolt.ID, dec("7"))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.engine.SetCustomerPrice(f.ctx, c.ID, bolt.ID, dec("6.5"))
	require.NoError(t, err)

	pricing, err := f.engine.CustomerPricing(f.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, pricing, 2)
	assert.True(t, pricing[0].Active)
	assert.True(t, pricing[0].OverridePrice.Equal(dec("6.5")))
	assert.False(t, pricing[1].Active)

	empty, err := f.engine.CustomerPricing(f.ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
	_, err = f.engine.CustomerPricing(f.ctx, "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
