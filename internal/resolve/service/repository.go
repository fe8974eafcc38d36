package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"faxorder-service/internal/resolve/model"
)

// CatalogRepository reads and writes shared reference data.
type CatalogRepository interface {
	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	FindProductByName(ctx context.Context, name string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateCustomer(ctx context.Context, c *model.Customer) error
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
}

// AliasRepository persists aliases. InsertAlias is a compare-and-insert on
// the normalized key: it returns created=false for an existing identical
// mapping and model.ErrAliasConflict when the key belongs to another product.
type AliasRepository interface {
	ListAliases(ctx context.Context) ([]model.ProductAlias, error)
	GetAlias(ctx context.Context, normalized string) (*model.ProductAlias, error)
	InsertAlias(ctx context.Context, a model.ProductAlias) (created bool, err error)
	TouchAlias(ctx context.Context, normalized string, at time.Time) error
}

// PricingRepository owns base prices (versioned) and customer overrides.
type PricingRepository interface {
	// PriceSnapshot reads the active override and the current base price in
	// one consistent read.
	PriceSnapshot(ctx context.Context, customerID, productID string) (model.PriceSnapshot, error)
	// SetBasePrice makes price current and appends a version; it reports
	// changed=false without writing when price is already current.
	SetBasePrice(ctx context.Context, productID string, price decimal.Decimal, source string, at time.Time) (changed bool, err error)
	PriceHistory(ctx context.Context, productID string) ([]model.PriceVersion, error)
	// PutOverride deactivates any active override of the pair and inserts p.
	PutOverride(ctx context.Context, p model.CustomerPricing) error
	DeactivateOverride(ctx context.Context, customerID, productID string) (bool, error)
	// ListOverrides returns every override row of a customer, active and
	// superseded, newest first.
	ListOverrides(ctx context.Context, customerID string) ([]model.CustomerPricing, error)
}

// PurchaseRepository is the append-only purchase ledger.
type PurchaseRepository interface {
	InsertPurchase(ctx context.Context, p *model.PurchaseRecord) error
	// ListPurchases returns purchases newest first; an empty productID
	// lists every product.
	ListPurchases(ctx context.Context, productID string, limit int) ([]model.PurchaseRecord, error)
}

// OrderRepository stores sales orders, raw lines and the current resolution
// projection of each line.
type OrderRepository interface {
	CreateOrder(ctx context.Context, o *model.SalesOrder) error
	GetOrder(ctx context.Context, id string) (*model.SalesOrder, error)
	SetOrderStatus(ctx context.Context, id string, status model.OrderStatus, at time.Time) error

	SaveRawLine(ctx context.Context, l *model.RawOrderLine) error
	GetRawLine(ctx context.Context, id string) (*model.RawOrderLine, error)

	SaveResolvedLine(ctx context.Context, l *model.ResolvedOrderLine) error
	GetResolvedLine(ctx context.Context, id string) (*model.ResolvedOrderLine, error)
	// ConfirmResolvedLine replaces the stored projection unless it is
	// already confirmed, in which case it returns model.ErrLineConfirmed.
	ConfirmResolvedLine(ctx context.Context, l *model.ResolvedOrderLine) error
	ListResolvedLines(ctx context.Context, orderID string) ([]model.ResolvedOrderLine, error)
	ListLinesByStatus(ctx context.Context, status model.Status, limit int) ([]model.ResolvedOrderLine, error)
}

// AuditRepository is append-only.
type AuditRepository interface {
	// AppendAudit assigns the next sequence number for the raw line.
	AppendAudit(ctx context.Context, r *model.OcrAuditRecord) error
	AuditTrail(ctx context.Context, rawLineID string) ([]model.OcrAuditRecord, error)
}

type Store interface {
	CatalogRepository
	AliasRepository
	PricingRepository
	PurchaseRepository
	OrderRepository
	AuditRepository
}
