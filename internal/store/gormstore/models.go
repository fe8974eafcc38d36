package gormstore

import (
	"time"

	"github.com/shopspring/decimal"

	"faxorder-service/internal/resolve/model"
)

type productRow struct {
	ID          string              `gorm:"primaryKey;size:36"`
	Name        string              `gorm:"not null;index"`
	BasePrice   decimal.NullDecimal `gorm:"type:numeric(14,4)"`
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (productRow) TableName() string { return "products" }

type priceVersionRow struct {
	ID         uint            `gorm:"primaryKey;autoIncrement"`
	ProductID  string          `gorm:"not null;index;size:36"`
	Price      decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	Source     string          `gorm:"not null;size:32"`
	RecordedAt time.Time       `gorm:"not null;index"`
}

func (priceVersionRow) TableName() string { return "product_price_versions" }

type purchaseRow struct {
	ID           string          `gorm:"primaryKey;size:36"`
	ProductID    string          `gorm:"not null;index;size:36"`
	Price        decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	Note         string
	PriceChanged bool      `gorm:"not null"`
	RecordedAt   time.Time `gorm:"not null;index"`
}

func (purchaseRow) TableName() string { return "purchase_records" }

type aliasRow struct {
	Normalized string `gorm:"primaryKey;size:255"`
	ProductID  string `gorm:"not null;index;size:36"`
	Alias      string `gorm:"not null"`
	CreatedAt  time.Time
	LastUsedAt time.Time
}

func (aliasRow) TableName() string { return "product_aliases" }

type customerRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"not null"`
	Locale    string `gorm:"not null;default:'ja';size:16"`
	CreatedAt time.Time
}

func (customerRow) TableName() string { return "customers" }

type overrideRow struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"`
	CustomerID    string          `gorm:"not null;index:idx_override_pair;size:36"`
	ProductID     string          `gorm:"not null;index:idx_override_pair;size:36"`
	OverridePrice decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	Active        bool            `gorm:"not null;default:true"`
	CreatedAt     time.Time
}

func (overrideRow) TableName() string { return "customer_pricings" }

type orderRow struct {
	ID             string `gorm:"primaryKey;size:36"`
	CustomerID     string `gorm:"not null;index;size:36"`
	DocumentRef    string `gorm:"index"`
	SourceFilename string
	Status         string `gorm:"not null;size:16"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (orderRow) TableName() string { return "sales_orders" }

type rawLineRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	OrderID      string `gorm:"index;size:36"`
	DocumentRef  string
	LinePosition int
	RawText      string
	RawQuantity  string
	CreatedAt    time.Time
}

func (rawLineRow) TableName() string { return "raw_order_lines" }

type resolvedLineRow struct {
	ID                 string `gorm:"primaryKey;size:36"`
	RawLineID          string `gorm:"not null;uniqueIndex;size:36"`
	OrderID            string `gorm:"index;size:36"`
	CustomerID         string `gorm:"not null;size:36"`
	LinePosition       int
	NormalizedText     string
	ProductID          string `gorm:"size:36"`
	SuggestedProductID string `gorm:"size:36"`
	Score              float64
	Status             string `gorm:"not null;index;size:16"`
	Quantity           *int
	UnitPrice          decimal.NullDecimal `gorm:"type:numeric(14,4)"`
	PriceSource        string              `gorm:"size:16"`
	Reasons            []model.ReasonCode  `gorm:"serializer:json"`
	ConfirmedBy        string
	ConfirmedAt        *time.Time
	CreatedAt          time.Time `gorm:"index"`
	UpdatedAt          time.Time
}

func (resolvedLineRow) TableName() string { return "order_lines" }

type auditRow struct {
	ID             string `gorm:"primaryKey;size:36"`
	RawLineID      string `gorm:"not null;uniqueIndex:idx_audit_seq;size:36"`
	Sequence       int    `gorm:"not null;uniqueIndex:idx_audit_seq"`
	Event          string `gorm:"not null;size:16"`
	RawText        string
	RawQuantity    string
	NormalizedText string
	Candidates     []model.Candidate `gorm:"serializer:json"`
	Decision       string            `gorm:"size:16"`
	ProductID      string            `gorm:"size:36"`
	Quantity       *int
	UnitPrice      decimal.NullDecimal `gorm:"type:numeric(14,4)"`
	PriceSource    string              `gorm:"size:16"`
	Reasons        []model.ReasonCode  `gorm:"serializer:json"`
	Actor          string
	CreatedAt      time.Time
}

func (auditRow) TableName() string { return "ocr_audit_records" }

func productFromRow(r productRow) model.Product {
	return model.Product{
		ID: r.ID, Name: r.Name, BasePrice: r.BasePrice, Description: r.Description,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func overrideFromRow(r overrideRow) model.CustomerPricing {
	return model.CustomerPricing{
		CustomerID: r.CustomerID, ProductID: r.ProductID, OverridePrice: r.OverridePrice,
		Active: r.Active, CreatedAt: r.CreatedAt,
	}
}

func aliasFromRow(r aliasRow) model.ProductAlias {
	return model.ProductAlias{
		ProductID: r.ProductID, Alias: r.Alias, Normalized: r.Normalized,
		CreatedAt: r.CreatedAt, LastUsedAt: r.LastUsedAt,
	}
}

func lineToRow(l *model.ResolvedOrderLine) resolvedLineRow {
	return resolvedLineRow{
		ID: l.ID, RawLineID: l.RawLineID, OrderID: l.OrderID, CustomerID: l.CustomerID,
		LinePosition: l.LinePosition, NormalizedText: l.NormalizedText,
		ProductID: l.ProductID, SuggestedProductID: l.SuggestedProductID, Score: l.Score,
		Status: string(l.Status), Quantity: l.Quantity, UnitPrice: l.UnitPrice,
		PriceSource: string(l.PriceSource), Reasons: l.Reasons,
		ConfirmedBy: l.ConfirmedBy, ConfirmedAt: l.ConfirmedAt,
		CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt,
	}
}

func lineFromRow(r resolvedLineRow) model.ResolvedOrderLine {
	return model.ResolvedOrderLine{
		ID: r.ID, RawLineID: r.RawLineID, OrderID: r.OrderID, CustomerID: r.CustomerID,
		LinePosition: r.LinePosition, NormalizedText: r.NormalizedText,
		ProductID: r.ProductID, SuggestedProductID: r.SuggestedProductID, Score: r.Score,
		Status: model.Status(r.Status), Quantity: r.Quantity, UnitPrice: r.UnitPrice,
		PriceSource: model.PriceSource(r.PriceSource), Reasons: r.Reasons,
		ConfirmedBy: r.ConfirmedBy, ConfirmedAt: r.ConfirmedAt,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func auditFromRow(r auditRow) model.OcrAuditRecord {
	return model.OcrAuditRecord{
		ID: r.ID, RawLineID: r.RawLineID, Sequence: r.Sequence, Event: model.AuditEvent(r.Event),
		RawText: r.RawText, RawQuantity: r.RawQuantity, NormalizedText: r.NormalizedText,
		Candidates: r.Candidates, Decision: model.Status(r.Decision), ProductID: r.ProductID,
		Quantity: r.Quantity, UnitPrice: r.UnitPrice, PriceSource: model.PriceSource(r.PriceSource),
		Reasons: r.Reasons, Actor: r.Actor, CreatedAt: r.CreatedAt,
	}
}
