package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"faxorder-service/internal/metrics"
	"faxorder-service/internal/resolve/model"
)

// ConfirmInput is an operator's final decision for a line. A nil Price
// means "use the resolved customer price".
type ConfirmInput struct {
	LineID      string           `json:"-"`
	ProductID   string           `json:"product_id" validate:"required"`
	Quantity    int              `json:"quantity" validate:"gt=0"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	ConfirmedBy string           `json:"confirmed_by"`
}

// Confirm applies a human decision and moves the line to the terminal
// confirmed state. When the raw wording does not already resolve to the
// chosen product, it is registered as a new alias so the same text matches
// automatically next time. The alias is only written once the line is
// confirmed; an alias owned by another product fails the confirmation with
// model.ErrAliasConflict before anything changes.
func (e *Engine) Confirm(ctx context.Context, in ConfirmInput) (*model.ResolvedOrderLine, error) {
	line, err := e.store.GetResolvedLine(ctx, in.LineID)
	if err != nil {
		return nil, err
	}
	if line.Status == model.StatusConfirmed {
		return nil, model.Errorf(model.ErrLineConfirmed, fmt.Sprintf("line %s is already confirmed", line.ID))
	}
	if in.Quantity <= 0 {
		return nil, model.Errorf(model.ErrInvalidQuantity, fmt.Sprintf("invalid quantity %d: not positive", in.Quantity))
	}
	product, err := e.store.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	raw, err := e.store.GetRawLine(ctx, line.RawLineID)
	if err != nil {
		return nil, err
	}

	price, source, err := e.confirmedPrice(ctx, line.CustomerID, product.ID, in.Price)
	if err != nil {
		return nil, err
	}

	if owner, ok := e.index.LookupExact(line.NormalizedText); ok && owner != product.ID {
		e.recordRegistration(false, model.ErrAliasConflict)
		e.logger.Warn().Str("alias", line.NormalizedText).Str("product_id", product.ID).Msg("alias conflict on confirm")
		return nil, conflictError(line.NormalizedText, owner)
	}

	previous := line.ProductID
	if previous == "" {
		previous = line.SuggestedProductID
	}

	now := e.clock.Now()
	qty := in.Quantity
	updated := *line
	updated.ProductID = product.ID
	updated.Quantity = &qty
	updated.UnitPrice = decimal.NewNullDecimal(price)
	updated.PriceSource = source
	updated.Status = model.StatusConfirmed
	updated.Reasons = nil
	updated.ConfirmedBy = in.ConfirmedBy
	updated.ConfirmedAt = &now
	updated.UpdatedAt = now
	if err := e.store.ConfirmResolvedLine(ctx, &updated); err != nil {
		return nil, err
	}
	metrics.Confirmations.WithLabelValues(strconv.FormatBool(previous != product.ID)).Inc()

	// the confirmation stands even if another writer took the alias since
	// the check above
	if err := e.learn(ctx, line.NormalizedText, raw.RawText, product.ID); err != nil {
		e.logger.Warn().Err(err).Str("line_id", updated.ID).Msg("alias not learned")
	}

	audit := &model.OcrAuditRecord{
		ID:             e.newID(),
		RawLineID:      raw.ID,
		Event:          model.AuditConfirm,
		RawText:        raw.RawText,
		RawQuantity:    raw.RawQuantity,
		NormalizedText: updated.NormalizedText,
		Decision:       model.StatusConfirmed,
		ProductID:      updated.ProductID,
		Quantity:       updated.Quantity,
		UnitPrice:      updated.UnitPrice,
		PriceSource:    updated.PriceSource,
		Actor:          in.ConfirmedBy,
		CreatedAt:      now,
	}
	if err := e.store.AppendAudit(ctx, audit); err != nil {
		return &updated, fmt.Errorf("append audit: %w", err)
	}

	if updated.OrderID != "" {
		if err := e.refreshOrderStatus(ctx, updated.OrderID); err != nil {
			e.logger.Error().Err(err).Str("order_id", updated.OrderID).Msg("order status not updated")
		}
	}

	e.logger.Info().
		Str("line_id", updated.ID).
		Str("product_id", product.ID).
		Str("previous_product_id", previous).
		Str("price_source", string(source)).
		Str("confirmed_by", in.ConfirmedBy).
		Msg("line confirmed")
	return &updated, nil
}

// confirmedPrice re-derives the price source: the resolved customer price
// keeps its source, anything else typed by the operator is manual.
func (e *Engine) confirmedPrice(ctx context.Context, customerID, productID string, typed *decimal.Decimal) (decimal.Decimal, model.PriceSource, error) {
	resolved, source, err := e.prices.ResolvePrice(ctx, customerID, productID)
	if err != nil && !errors.Is(err, model.ErrPriceUnavailable) {
		return decimal.Zero, model.PriceSourceNone, err
	}
	if typed == nil {
		if err != nil {
			return decimal.Zero, model.PriceSourceNone, err
		}
		return resolved, source, nil
	}
	if typed.IsNegative() {
		return decimal.Zero, model.PriceSourceNone, model.Errorf(model.ErrInvalidInput, "price must not be negative")
	}
	if err == nil && resolved.Equal(*typed) {
		return resolved, source, nil
	}
	return *typed, model.PriceSourceManual, nil
}

// learn registers rawText as an alias of productID unless its normalized
// form already resolves there.
func (e *Engine) learn(ctx context.Context, normalized, rawText, productID string) error {
	if normalized == "" {
		return nil
	}
	if owner, ok := e.index.LookupExact(normalized); ok && owner == productID {
		if err := e.index.Touch(ctx, normalized); err != nil {
			e.logger.Warn().Err(err).Str("alias", normalized).Msg("alias recency not persisted")
		}
		return nil
	}
	created, err := e.index.Register(ctx, productID, rawText)
	e.recordRegistration(created, err)
	if err != nil {
		return err
	}
	if created {
		e.logger.Info().Str("alias", normalized).Str("product_id", productID).Msg("alias learned")
	}
	return nil
}

func (e *Engine) recordRegistration(created bool, err error) {
	switch {
	case errors.Is(err, model.ErrAliasConflict):
		metrics.AliasRegistrations.WithLabelValues("conflict").Inc()
	case err != nil:
	case created:
		metrics.AliasRegistrations.WithLabelValues("created").Inc()
	default:
		metrics.AliasRegistrations.WithLabelValues("existing").Inc()
	}
}

func (e *Engine) refreshOrderStatus(ctx context.Context, orderID string) error {
	lines, err := e.store.ListResolvedLines(ctx, orderID)
	if err != nil {
		return err
	}
	if !allConfirmed(lines) {
		return nil
	}
	return e.store.SetOrderStatus(ctx, orderID, model.OrderConfirmed, e.clock.Now())
}
