package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status of a resolved order line.
type Status string

const (
	StatusMatched     Status = "matched"
	StatusNeedsReview Status = "needs-review"
	StatusConfirmed   Status = "confirmed"
)

// PriceSource records where a line's unit price came from.
type PriceSource string

const (
	PriceSourceNone     PriceSource = ""
	PriceSourceOverride PriceSource = "override"
	PriceSourceBase     PriceSource = "base"
	PriceSourceManual   PriceSource = "manual" // operator-entered price at confirmation
)

// ReasonCode explains why a line was not matched automatically.
type ReasonCode string

const (
	ReasonNoCandidate      ReasonCode = "no_candidate"
	ReasonLowConfidence    ReasonCode = "low_confidence"
	ReasonMatchAmbiguous   ReasonCode = "match_ambiguous"
	ReasonInvalidQuantity  ReasonCode = "invalid_quantity"
	ReasonPriceUnavailable ReasonCode = "price_unavailable"
)

// MatchMethod is the strategy that produced a candidate.
type MatchMethod string

const (
	MethodExact MatchMethod = "exact" // alias hit
	MethodFuzzy MatchMethod = "fuzzy"
)

type OrderStatus string

const (
	OrderReview    OrderStatus = "review"
	OrderConfirmed OrderStatus = "confirmed"
)

// AuditEvent distinguishes automatic attempts from human decisions.
type AuditEvent string

const (
	AuditAutoResolve AuditEvent = "auto-resolve"
	AuditConfirm     AuditEvent = "confirm"
)

type Product struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"` // canonical internal name
	BasePrice   decimal.NullDecimal `json:"base_price"`
	Description string              `json:"description,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// PriceVersion is one entry of a product's base price history.
type PriceVersion struct {
	ProductID  string          `json:"product_id"`
	Price      decimal.Decimal `json:"price"`
	Source     string          `json:"source"` // purchase | manual | import
	RecordedAt time.Time       `json:"recorded_at"`
}

// PurchaseRecord is one purchase entry. Recording it makes its price the
// product's base price; PriceChanged is false when the price was already
// current.
type PurchaseRecord struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	Price        decimal.Decimal `json:"price"`
	Note         string          `json:"note,omitempty"`
	PriceChanged bool            `json:"price_changed"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

type ProductAlias struct {
	ProductID  string    `json:"product_id"`
	Alias      string    `json:"alias"`      // as typed by the operator / fax
	Normalized string    `json:"normalized"` // lookup key, unique across the catalog
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Locale    string    `json:"locale"` // e.g. "ja", "en", "ru"
	CreatedAt time.Time `json:"created_at"`
}

type CustomerPricing struct {
	CustomerID    string          `json:"customer_id"`
	ProductID     string          `json:"product_id"`
	OverridePrice decimal.Decimal `json:"override_price"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PriceSnapshot is the override and base price of a (customer, product) pair
// read at one consistent point in time.
type PriceSnapshot struct {
	Override  *CustomerPricing
	BasePrice decimal.NullDecimal
}

type SalesOrder struct {
	ID             string      `json:"id"`
	CustomerID     string      `json:"customer_id"`
	DocumentRef    string      `json:"document_ref"`
	SourceFilename string      `json:"source_filename,omitempty"`
	Status         OrderStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// RawOrderLine is the OCR output for one line. Never modified after creation.
type RawOrderLine struct {
	ID           string    `json:"id"`
	OrderID      string    `json:"order_id,omitempty"`
	DocumentRef  string    `json:"document_ref"`
	LinePosition int       `json:"line_position"`
	RawText      string    `json:"raw_text"`
	RawQuantity  string    `json:"raw_quantity"`
	CreatedAt    time.Time `json:"created_at"`
}

// Candidate is a ranked match suggestion.
type Candidate struct {
	ProductID string      `json:"product_id"`
	Score     float64     `json:"score"`
	Method    MatchMethod `json:"method"`
	MatchedOn string      `json:"matched_on"` // alias or canonical name that scored best
}

// ResolvedOrderLine is the mutable "current resolution" of a raw line.
type ResolvedOrderLine struct {
	ID                 string              `json:"id"`
	RawLineID          string              `json:"raw_line_id"`
	OrderID            string              `json:"order_id,omitempty"`
	CustomerID         string              `json:"customer_id"`
	LinePosition       int                 `json:"line_position"`
	NormalizedText     string              `json:"normalized_text"`
	ProductID          string              `json:"product_id,omitempty"`
	SuggestedProductID string              `json:"suggested_product_id,omitempty"`
	Score              float64             `json:"score"`
	Status             Status              `json:"status"`
	Quantity           *int                `json:"quantity,omitempty"`
	UnitPrice          decimal.NullDecimal `json:"unit_price"`
	PriceSource        PriceSource         `json:"price_source,omitempty"`
	Reasons            []ReasonCode        `json:"reasons,omitempty"`
	ConfirmedBy        string              `json:"confirmed_by,omitempty"`
	ConfirmedAt        *time.Time          `json:"confirmed_at,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// HasReason reports whether r was recorded on the line.
func (l *ResolvedOrderLine) HasReason(r ReasonCode) bool {
	for _, x := range l.Reasons {
		if x == r {
			return true
		}
	}
	return false
}

// OcrAuditRecord is one append-only entry of a raw line's decision history.
type OcrAuditRecord struct {
	ID             string              `json:"id"`
	RawLineID      string              `json:"raw_line_id"`
	Sequence       int                 `json:"sequence"`
	Event          AuditEvent          `json:"event"`
	RawText        string              `json:"raw_text"`
	RawQuantity    string              `json:"raw_quantity"`
	NormalizedText string              `json:"normalized_text"`
	Candidates     []Candidate         `json:"candidates"`
	Decision       Status              `json:"decision"`
	ProductID      string              `json:"product_id,omitempty"`
	Quantity       *int                `json:"quantity,omitempty"`
	UnitPrice      decimal.NullDecimal `json:"unit_price"`
	PriceSource    PriceSource         `json:"price_source,omitempty"`
	Reasons        []ReasonCode        `json:"reasons,omitempty"`
	Actor          string              `json:"actor,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// Options tunes the resolution pipeline.
type Options struct {
	MatchThreshold    float64 // score >= threshold -> matched
	AmbiguityDelta    float64 // candidates within delta of the top score make the match ambiguous
	ContainmentFloor  float64 // minimum score when one text contains the other
	MinContainment    int     // shorter side must have at least this many runes to earn the floor
	MaxCandidates     int     // ranked candidates kept in results and audit records
	DecimalTolerance  float64 // allowed distance of a quantity from an integer
	MaxQuantity       int
	SuggestionMinimum float64 // lowest top score listed by alias suggestions
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MatchThreshold:    0.90,
		AmbiguityDelta:    0.02,
		ContainmentFloor:  0.85,
		MinContainment:    2,
		MaxCandidates:     5,
		DecimalTolerance:  0.001,
		MaxQuantity:       1_000_000,
		SuggestionMinimum: 0.5,
	}
}
