package gormstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faxorder-service/internal/resolve/model"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("sqlite", ":memory:", zerolog.Nop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return New(db)
}

func seedProduct(t *testing.T, s *Store, id, name string) {
	t.Helper()
	require.NoError(t, s.CreateProduct(context.Background(), &model.Product{
		ID: id, Name: name, CreatedAt: t0, UpdatedAt: t0,
	}))
}

func TestStore_Products(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedProduct(t, s, "p1", "六角ボルトM6")

	t.Run("get", func(t *testing.T) {
		p, err := s.GetProduct(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "六角ボルトM6", p.Name)
		assert.False(t, p.BasePrice.Valid)
	})

	t.Run("missing product is not found", func(t *testing.T) {
		_, err := s.GetProduct(ctx, "nope")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		err := s.CreateProduct(ctx, &model.Product{ID: "p1", Name: "x"})
		assert.True(t, errors.Is(err, model.ErrInvalidInput))
	})

	t.Run("find by name", func(t *testing.T) {
		p, err := s.FindProductByName(ctx, "六角ボルトM6")
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ID)
	})
}

func TestStore_InsertAlias(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedProduct(t, s, "p1", "a")
	seedProduct(t, s, "p2", "b")

	a := model.ProductAlias{ProductID: "p1", Alias: "ボルト", Normalized: "ボルト", CreatedAt: t0, LastUsedAt: t0}

	created, err := s.InsertAlias(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.InsertAlias(ctx, a)
	require.NoError(t, err)
	assert.False(t, created, "identical mapping is a no-op")

	b := a
	b.ProductID = "p2"
	_, err = s.InsertAlias(ctx, b)
	assert.True(t, errors.Is(err, model.ErrAliasConflict))

	got, err := s.GetAlias(ctx, "ボルト")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ProductID, "conflict leaves the mapping untouched")

	require.NoError(t, s.TouchAlias(ctx, "ボルト", t0.Add(time.Hour)))
	got, err = s.GetAlias(ctx, "ボルト")
	require.NoError(t, err)
	assert.True(t, got.LastUsedAt.Equal(t0.Add(time.Hour)))

	assert.True(t, errors.Is(s.TouchAlias(ctx, "none", t0), model.ErrNotFound))

	list, err := s.ListAliases(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_Pricing(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedProduct(t, s, "p1", "a")

	t.Run("base price is versioned only on change", func(t *testing.T) {
		changed, err := s.SetBasePrice(ctx, "p1", decimal.RequireFromString("8"), "purchase", t0)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = s.SetBasePrice(ctx, "p1", decimal.RequireFromString("8.00"), "purchase", t0.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, changed)

		changed, err = s.SetBasePrice(ctx, "p1", decimal.RequireFromString("9.5"), "import", t0.Add(2*time.Minute))
		require.NoError(t, err)
		assert.True(t, changed)

		hist, err := s.PriceHistory(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, hist, 2)
		assert.True(t, hist[0].Price.Equal(decimal.RequireFromString("9.5")))
		assert.Equal(t, "import", hist[0].Source)
		assert.True(t, hist[1].Price.Equal(decimal.RequireFromString("8")))
	})

	t.Run("override supersedes and deactivates", func(t *testing.T) {
		require.NoError(t, s.PutOverride(ctx, model.CustomerPricing{
			CustomerID: "c1", ProductID: "p1", OverridePrice: decimal.RequireFromString("7"), CreatedAt: t0,
		}))
		require.NoError(t, s.PutOverride(ctx, model.CustomerPricing{
			CustomerID: "c1", ProductID: "p1", OverridePrice: decimal.RequireFromString("6.5"), CreatedAt: t0.Add(time.Second),
		}))

		snap, err := s.PriceSnapshot(ctx, "c1", "p1")
		require.NoError(t, err)
		require.NotNil(t, snap.Override)
		assert.True(t, snap.Override.OverridePrice.Equal(decimal.RequireFromString("6.5")))
		assert.True(t, snap.BasePrice.Decimal.Equal(decimal.RequireFromString("9.5")))

		removed, err := s.DeactivateOverride(ctx, "c1", "p1")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = s.DeactivateOverride(ctx, "c1", "p1")
		require.NoError(t, err)
		assert.False(t, removed)

		snap, err = s.PriceSnapshot(ctx, "c1", "p1")
		require.NoError(t, err)
		assert.Nil(t, snap.Override)
	})

	t.Run("snapshot of unknown product", func(t *testing.T) {
		_, err := s.PriceSnapshot(ctx, "c1", "missing")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})
}

func TestStore_Lines(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateOrder(ctx, &model.SalesOrder{
		ID: "o1", CustomerID: "c1", Status: model.OrderReview, CreatedAt: t0, UpdatedAt: t0,
	}))
	require.NoError(t, s.SaveRawLine(ctx, &model.RawOrderLine{ID: "r1", OrderID: "o1", RawText: "ボルト", RawQuantity: "5", CreatedAt: t0}))
	assert.True(t, errors.Is(
		s.SaveRawLine(ctx, &model.RawOrderLine{ID: "r1", RawText: "changed"}), model.ErrInvalidInput,
	), "raw lines are write-once")

	qty := 5
	line := &model.ResolvedOrderLine{
		ID: "l1", RawLineID: "r1", OrderID: "o1", CustomerID: "c1", LinePosition: 1,
		NormalizedText: "ボルト", SuggestedProductID: "p1", Score: 0.6, Status: model.StatusNeedsReview,
		Quantity: &qty, Reasons: []model.ReasonCode{model.ReasonLowConfidence}, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, s.SaveResolvedLine(ctx, line))

	got, err := s.GetResolvedLine(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, []model.ReasonCode{model.ReasonLowConfidence}, got.Reasons)
	require.NotNil(t, got.Quantity)
	assert.Equal(t, 5, *got.Quantity)

	review, err := s.ListLinesByStatus(ctx, model.StatusNeedsReview, 10)
	require.NoError(t, err)
	assert.Len(t, review, 1)

	confirmedAt := t0.Add(time.Hour)
	confirmed := *got
	confirmed.ProductID = "p1"
	confirmed.Status = model.StatusConfirmed
	confirmed.Reasons = nil
	confirmed.UnitPrice = decimal.NewNullDecimal(decimal.RequireFromString("8"))
	confirmed.PriceSource = model.PriceSourceBase
	confirmed.ConfirmedBy = "operator"
	confirmed.ConfirmedAt = &confirmedAt
	confirmed.UpdatedAt = confirmedAt
	require.NoError(t, s.ConfirmResolvedLine(ctx, &confirmed))

	again := confirmed
	again.ProductID = "p2"
	err = s.ConfirmResolvedLine(ctx, &again)
	assert.True(t, errors.Is(err, model.ErrLineConfirmed))

	got, err = s.GetResolvedLine(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ProductID)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Empty(t, got.Reasons)

	missing := confirmed
	missing.ID = "nope"
	assert.True(t, errors.Is(s.ConfirmResolvedLine(ctx, &missing), model.ErrNotFound))

	lines, err := s.ListResolvedLines(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, lines, 1)

	require.NoError(t, s.SetOrderStatus(ctx, "o1", model.OrderConfirmed, confirmedAt))
	o, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderConfirmed, o.Status)
}

func TestStore_AuditSequence(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first := &model.OcrAuditRecord{
		ID: "a1", RawLineID: "r1", Event: model.AuditAutoResolve, RawText: "ボルト",
		Candidates: []model.Candidate{{ProductID: "p1", Score: 0.6, Method: model.MethodFuzzy, MatchedOn: "ボルトm6"}},
		Decision:   model.StatusNeedsReview, CreatedAt: t0,
	}
	second := &model.OcrAuditRecord{
		ID: "a2", RawLineID: "r1", Event: model.AuditConfirm, Decision: model.StatusConfirmed,
		ProductID: "p1", Actor: "operator", CreatedAt: t0.Add(time.Minute),
	}
	require.NoError(t, s.AppendAudit(ctx, first))
	require.NoError(t, s.AppendAudit(ctx, second))
	assert.Equal(t, 1, first.Sequence)
	assert.Equal(t, 2, second.Sequence)

	trail, err := s.AuditTrail(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, model.AuditAutoResolve, trail[0].Event)
	require.Len(t, trail[0].Candidates, 1)
	assert.InDelta(t, 0.6, trail[0].Candidates[0].Score, 1e-9)
	assert.Equal(t, model.AuditConfirm, trail[1].Event)
}

func TestStore_PurchasesAndListings(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedProduct(t, s, "p1", "六角ボルトM6")
	seedProduct(t, s, "p2", "蝶ナットM8")

	for i, p := range []model.PurchaseRecord{
		{ID: "u1", ProductID: "p1", Price: decimal.RequireFromString("7.25"), Note: "初回", PriceChanged: true, RecordedAt: t0},
		{ID: "u2", ProductID: "p2", Price: decimal.RequireFromString("50"), PriceChanged: true, RecordedAt: t0.Add(time.Minute)},
		{ID: "u3", ProductID: "p1", Price: decimal.RequireFromString("7.25"), RecordedAt: t0.Add(2 * time.Minute)},
	} {
		require.NoError(t, s.InsertPurchase(ctx, &p), i)
	}

	t.Run("purchases newest first", func(t *testing.T) {
		list, err := s.ListPurchases(ctx, "p1", 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "u3", list[0].ID)
		assert.False(t, list[0].PriceChanged)
		assert.Equal(t, "初回", list[1].Note)
		assert.True(t, list[1].Price.Equal(decimal.RequireFromString("7.25")))

		all, err := s.ListPurchases(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, []string{"u3", "u2"}, []string{all[0].ID, all[1].ID})
	})

	t.Run("duplicate purchase id is rejected", func(t *testing.T) {
		err := s.InsertPurchase(ctx, &model.PurchaseRecord{ID: "u1", ProductID: "p1", RecordedAt: t0})
		assert.True(t, errors.Is(err, model.ErrInvalidInput))
	})

	t.Run("customers and overrides", func(t *testing.T) {
		require.NoError(t, s.CreateCustomer(ctx, &model.Customer{ID: "c2", Name: "佐藤工業", Locale: "ru", CreatedAt: t0}))
		require.NoError(t, s.CreateCustomer(ctx, &model.Customer{ID: "c1", Name: "山田商店", Locale: "ja", CreatedAt: t0}))
		customers, err := s.ListCustomers(ctx)
		require.NoError(t, err)
		require.Len(t, customers, 2)
		assert.Equal(t, "c1", customers[0].ID)
		assert.Equal(t, "ru", customers[1].Locale)

		require.NoError(t, s.PutOverride(ctx, model.CustomerPricing{
			CustomerID: "c1", ProductID: "p1", OverridePrice: decimal.RequireFromString("7"), CreatedAt: t0,
		}))
		require.NoError(t, s.PutOverride(ctx, model.CustomerPricing{
			CustomerID: "c1", ProductID: "p1", OverridePrice: decimal.RequireFromString("6.5"), CreatedAt: t0.Add(time.Second),
		}))
		require.NoError(t, s.PutOverride(ctx, model.CustomerPricing{
			CustomerID: "c2", ProductID: "p2", OverridePrice: decimal.RequireFromString("40"), CreatedAt: t0,
		}))

		list, err := s.ListOverrides(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.True(t, list[0].Active)
		assert.True(t, list[0].OverridePrice.Equal(decimal.RequireFromString("6.5")))
		assert.False(t, list[1].Active)

		none, err := s.ListOverrides(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
