package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"faxorder-service/internal/resolve/model"
)

type ProductInput struct {
	Name        string           `json:"name" validate:"required"`
	BasePrice   *decimal.Decimal `json:"base_price,omitempty"`
	Description string           `json:"description"`
	Aliases     []string         `json:"aliases"`
}

// CreateProduct adds a catalog product, records its initial base price as
// the first price version and registers its aliases.
func (e *Engine) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	name := strings.TrimSpace(in.Name)
	if Normalize(name) == "" {
		return nil, model.Errorf(model.ErrInvalidInput, "product name is required")
	}
	if in.BasePrice != nil && in.BasePrice.IsNegative() {
		return nil, model.Errorf(model.ErrInvalidInput, "base price must not be negative")
	}
	now := e.clock.Now()
	p := &model.Product{
		ID:          e.newID(),
		Name:        name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	if in.BasePrice != nil {
		if _, err := e.prices.UpdateBasePrice(ctx, p.ID, *in.BasePrice, "manual"); err != nil {
			return nil, err
		}
		p.BasePrice = decimal.NewNullDecimal(*in.BasePrice)
	}
	for _, a := range in.Aliases {
		if _, err := e.RegisterAlias(ctx, p.ID, a); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (e *Engine) ListProducts(ctx context.Context) ([]model.Product, error) {
	return e.store.ListProducts(ctx)
}

// ListAliases returns every stored alias ordered by normalized text.
func (e *Engine) ListAliases(ctx context.Context) ([]model.ProductAlias, error) {
	return e.store.ListAliases(ctx)
}

// ProductAliases returns the alias texts the index maps to productID,
// oldest first.
func (e *Engine) ProductAliases(ctx context.Context, productID string) ([]string, error) {
	if _, err := e.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return e.index.AllAliasesFor(productID), nil
}

func (e *Engine) CreateCustomer(ctx context.Context, name, locale string) (*model.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.Errorf(model.ErrInvalidInput, "customer name is required")
	}
	if locale == "" {
		locale = "ja"
	}
	c := &model.Customer{ID: e.newID(), Name: name, Locale: locale, CreatedAt: e.clock.Now()}
	if err := e.store.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Engine) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return e.store.ListCustomers(ctx)
}

// CustomerPricing lists a customer's overrides, superseded ones included,
// newest first.
func (e *Engine) CustomerPricing(ctx context.Context, customerID string) ([]model.CustomerPricing, error) {
	if _, err := e.store.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return e.store.ListOverrides(ctx, customerID)
}

// RegisterAlias maps alias text to an existing product through the index.
func (e *Engine) RegisterAlias(ctx context.Context, productID, alias string) (bool, error) {
	if _, err := e.store.GetProduct(ctx, productID); err != nil {
		return false, err
	}
	created, err := e.index.Register(ctx, productID, alias)
	e.recordRegistration(created, err)
	return created, err
}

// UpdateBasePrice is the purchase-entry hook; it is idempotent.
func (e *Engine) UpdateBasePrice(ctx context.Context, productID string, price decimal.Decimal, source string) (bool, error) {
	if _, err := e.store.GetProduct(ctx, productID); err != nil {
		return false, err
	}
	changed, err := e.prices.UpdateBasePrice(ctx, productID, price, source)
	if err == nil && changed {
		e.logger.Info().Str("product_id", productID).Str("price", price.String()).Str("source", source).Msg("base price updated")
	}
	return changed, err
}

type PurchaseInput struct {
	ProductID string          `json:"product_id" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	Note      string          `json:"note" validate:"max=500"`
}

// RecordPurchase appends a purchase to the ledger and makes its price the
// product's base price. Repeating the current price is recorded but leaves
// the price history alone.
func (e *Engine) RecordPurchase(ctx context.Context, in PurchaseInput) (*model.PurchaseRecord, error) {
	if in.Price.IsNegative() {
		return nil, model.Errorf(model.ErrInvalidInput, "purchase price must not be negative")
	}
	changed, err := e.UpdateBasePrice(ctx, in.ProductID, in.Price, "purchase")
	if err != nil {
		return nil, err
	}
	rec := &model.PurchaseRecord{
		ID:           e.newID(),
		ProductID:    in.ProductID,
		Price:        in.Price,
		Note:         strings.TrimSpace(in.Note),
		PriceChanged: changed,
		RecordedAt:   e.clock.Now(),
	}
	if err := e.store.InsertPurchase(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListPurchases returns recent purchases, optionally of one product.
func (e *Engine) ListPurchases(ctx context.Context, productID string, limit int) ([]model.PurchaseRecord, error) {
	if productID != "" {
		if _, err := e.store.GetProduct(ctx, productID); err != nil {
			return nil, err
		}
	}
	return e.store.ListPurchases(ctx, productID, clampLimit(limit, 50))
}

func (e *Engine) PriceHistory(ctx context.Context, productID string) ([]model.PriceVersion, error) {
	if _, err := e.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return e.store.PriceHistory(ctx, productID)
}

func (e *Engine) SetCustomerPrice(ctx context.Context, customerID, productID string, price decimal.Decimal) (model.CustomerPricing, error) {
	if _, err := e.store.GetCustomer(ctx, customerID); err != nil {
		return model.CustomerPricing{}, err
	}
	if _, err := e.store.GetProduct(ctx, productID); err != nil {
		return model.CustomerPricing{}, err
	}
	return e.prices.SetOverride(ctx, customerID, productID, price)
}

func (e *Engine) RemoveCustomerPrice(ctx context.Context, customerID, productID string) error {
	return e.prices.RemoveOverride(ctx, customerID, productID)
}

// MaxListLimit caps every caller-supplied page size.
const MaxListLimit = 200

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, MaxListLimit)
}

// AliasSuggestion is a reviewed-but-unconfirmed line whose top candidate is
// plausible enough to offer as a one-click alias.
type AliasSuggestion struct {
	LineID      string  `json:"line_id"`
	RawLineID   string  `json:"raw_line_id"`
	RawText     string  `json:"raw_text"`
	Normalized  string  `json:"normalized"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Score       float64 `json:"score"`
}

// AliasSuggestions lists recent needs-review lines whose best candidate
// scored at least the configured suggestion minimum.
func (e *Engine) AliasSuggestions(ctx context.Context, limit int) ([]AliasSuggestion, error) {
	limit = clampLimit(limit, 20)
	lines, err := e.store.ListLinesByStatus(ctx, model.StatusNeedsReview, limit*4)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := []AliasSuggestion{}
	for _, l := range lines {
		if len(out) == limit {
			break
		}
		if l.SuggestedProductID == "" || l.Score < e.opts.SuggestionMinimum || seen[l.NormalizedText] {
			continue
		}
		if _, ok := e.index.LookupExact(l.NormalizedText); ok {
			continue
		}
		raw, err := e.store.GetRawLine(ctx, l.RawLineID)
		if err != nil {
			return nil, err
		}
		p, err := e.store.GetProduct(ctx, l.SuggestedProductID)
		if err != nil {
			return nil, err
		}
		seen[l.NormalizedText] = true
		out = append(out, AliasSuggestion{
			LineID:      l.ID,
			RawLineID:   l.RawLineID,
			RawText:     raw.RawText,
			Normalized:  l.NormalizedText,
			ProductID:   p.ID,
			ProductName: p.Name,
			Score:       l.Score,
		})
	}
	return out, nil
}
