package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"faxorder-service/internal/resolve/model"
)

// PriceResolver picks a customer's unit price for a product: the active
// override when there is one, otherwise the product's current base price.
type PriceResolver struct {
	repo  PricingRepository
	clock Clock
}

func NewPriceResolver(repo PricingRepository, clock Clock) *PriceResolver {
	if clock == nil {
		clock = RealClock{}
	}
	return &PriceResolver{repo: repo, clock: clock}
}

// ResolvePrice returns model.ErrPriceUnavailable when neither an override
// nor a base price exists. The decision is taken from a single snapshot.
func (p *PriceResolver) ResolvePrice(ctx context.Context, customerID, productID string) (decimal.Decimal, model.PriceSource, error) {
	snap, err := p.repo.PriceSnapshot(ctx, customerID, productID)
	if err != nil {
		return decimal.Zero, model.PriceSourceNone, err
	}
	if snap.Override != nil && snap.Override.Active {
		return snap.Override.OverridePrice, model.PriceSourceOverride, nil
	}
	if snap.BasePrice.Valid {
		return snap.BasePrice.Decimal, model.PriceSourceBase, nil
	}
	return decimal.Zero, model.PriceSourceNone,
		model.Errorf(model.ErrPriceUnavailable, fmt.Sprintf("product %s has no base price", productID))
}

// UpdateBasePrice makes price the product's base price for all future
// resolutions. Submitting the current price again changes nothing.
func (p *PriceResolver) UpdateBasePrice(ctx context.Context, productID string, price decimal.Decimal, source string) (bool, error) {
	if price.IsNegative() {
		return false, model.Errorf(model.ErrInvalidInput, "base price must not be negative")
	}
	if source == "" {
		source = "purchase"
	}
	return p.repo.SetBasePrice(ctx, productID, price, source, p.clock.Now())
}

// SetOverride supersedes any active override of the pair.
func (p *PriceResolver) SetOverride(ctx context.Context, customerID, productID string, price decimal.Decimal) (model.CustomerPricing, error) {
	if price.IsNegative() {
		return model.CustomerPricing{}, model.Errorf(model.ErrInvalidInput, "override price must not be negative")
	}
	cp := model.CustomerPricing{
		CustomerID:    customerID,
		ProductID:     productID,
		OverridePrice: price,
		Active:        true,
		CreatedAt:     p.clock.Now(),
	}
	if err := p.repo.PutOverride(ctx, cp); err != nil {
		return model.CustomerPricing{}, err
	}
	return cp, nil
}

// RemoveOverride deactivates the pair's override; later resolutions fall
// back to the base price.
func (p *PriceResolver) RemoveOverride(ctx context.Context, customerID, productID string) error {
	ok, err := p.repo.DeactivateOverride(ctx, customerID, productID)
	if err != nil {
		return err
	}
	if !ok {
		return model.Errorf(model.ErrNotFound, "no active override")
	}
	return nil
}
