package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"faxorder-service/internal/resolve/model"
	"faxorder-service/internal/resolve/service"
	"faxorder-service/internal/store/memstore"
)

var t0 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	ctx    context.Context
	store  *memstore.Store
	clock  *service.FixedClock
	engine *service.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, model.DefaultOptions())
}

func newFixtureWith(t *testing.T, opts model.Options) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: memstore.New(),
		clock: service.NewFixedClock(t0),
	}
	f.engine = f.newEngine(t, f.store, opts)
	return f
}

// newFaultyFixture runs the engine over a store that fails on demand; the
// fixture's store field still reads the underlying data directly.
func newFaultyFixture(t *testing.T) (*fixture, *faultyStore) {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: memstore.New(),
		clock: service.NewFixedClock(t0),
	}
	fs := &faultyStore{Store: f.store}
	f.engine = f.newEngine(t, fs, model.DefaultOptions())
	return f, fs
}

func (f *fixture) newEngine(t *testing.T, store service.Store, opts model.Options) *service.Engine {
	t.Helper()
	var seq atomic.Int64
	e, err := service.New(f.ctx, store, opts, zerolog.Nop(),
		service.WithClock(f.clock),
		service.WithIDGenerator(func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) }),
	)
	require.NoError(t, err)
	return e
}

func (f *fixture) product(t *testing.T, name, price string, aliases ...string) *model.Product {
	t.Helper()
	in := service.ProductInput{Name: name, Aliases: aliases}
	if price != "" {
		d := decimal.RequireFromString(price)
		in.BasePrice = &d
	}
	p, err := f.engine.CreateProduct(f.ctx, in)
	require.NoError(t, err)
	return p
}

func (f *fixture) customer(t *testing.T, locale string) *model.Customer {
	t.Helper()
	c, err := f.engine.CreateCustomer(f.ctx, "テスト商事", locale)
	require.NoError(t, err)
	return c
}

func (f *fixture) products(t *testing.T) []model.Product {
	t.Helper()
	list, err := f.store.ListProducts(f.ctx)
	require.NoError(t, err)
	return list
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var errStoreDown = errors.New("store unavailable")

type faultyStore struct {
	*memstore.Store

	failResolvedText string // normalized text whose projection cannot be saved
	failPriceFor     string // product whose price snapshot cannot be read
	failConfirm      bool
	listLimit        int
}

func (s *faultyStore) SaveResolvedLine(ctx context.Context, l *model.ResolvedOrderLine) error {
	if s.failResolvedText != "" && l.NormalizedText == s.failResolvedText {
		return errStoreDown
	}
	return s.Store.SaveResolvedLine(ctx, l)
}

func (s *faultyStore) PriceSnapshot(ctx context.Context, customerID, productID string) (model.PriceSnapshot, error) {
	if productID == s.failPriceFor {
		return model.PriceSnapshot{}, errStoreDown
	}
	return s.Store.PriceSnapshot(ctx, customerID, productID)
}

func (s *faultyStore) ConfirmResolvedLine(ctx context.Context, l *model.ResolvedOrderLine) error {
	if s.failConfirm {
		return errStoreDown
	}
	return s.Store.ConfirmResolvedLine(ctx, l)
}

func (s *faultyStore) ListLinesByStatus(ctx context.Context, status model.Status, limit int) ([]model.ResolvedOrderLine, error) {
	s.listLimit = limit
	return s.Store.ListLinesByStatus(ctx, status, limit)
}
