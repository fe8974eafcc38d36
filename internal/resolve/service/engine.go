package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"faxorder-service/internal/metrics"
	"faxorder-service/internal/resolve/model"
)

// Engine resolves OCR order lines into priced sales-order lines and keeps
// the audit trail of every decision.
type Engine struct {
	store    Store
	index    *AliasIndex
	matcher  *Matcher
	quantity QuantitySanitizer
	prices   *PriceResolver
	opts     model.Options
	clock    Clock
	logger   zerolog.Logger
	newID    func() string
}

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

// New builds an engine over store and loads the alias index from it.
func New(ctx context.Context, store Store, opts model.Options, logger zerolog.Logger, options ...Option) (*Engine, error) {
	e := &Engine{
		store:  store,
		opts:   opts,
		clock:  RealClock{},
		logger: logger.With().Str("component", "resolver").Logger(),
		newID:  uuid.NewString,
	}
	for _, o := range options {
		o(e)
	}
	e.index = NewAliasIndex(store, e.clock)
	e.matcher = NewMatcher(e.index, opts)
	e.quantity = NewQuantitySanitizer(opts)
	e.prices = NewPriceResolver(store, e.clock)

	if err := e.index.Rebuild(ctx); err != nil {
		return nil, err
	}
	e.logger.Info().Int("aliases", e.index.Len()).Float64("threshold", opts.MatchThreshold).Msg("alias index loaded")
	return e, nil
}

func (e *Engine) Index() *AliasIndex     { return e.index }
func (e *Engine) Matcher() *Matcher      { return e.matcher }
func (e *Engine) Prices() *PriceResolver { return e.prices }

type LineInput struct {
	RawText      string `json:"raw_text"`
	RawQuantity  string `json:"raw_quantity"`
	LinePosition int    `json:"line_position"`
}

// OrderInput is one uploaded document already segmented into lines by OCR.
type OrderInput struct {
	CustomerID     string      `json:"customer_id"`
	DocumentRef    string      `json:"document_ref"`
	SourceFilename string      `json:"source_filename"`
	Lines          []LineInput `json:"lines"`
}

// LineOutcome carries a line's result or the store failure that stopped it.
type LineOutcome struct {
	Raw  model.RawOrderLine       `json:"raw"`
	Line *model.ResolvedOrderLine `json:"line,omitempty"`
	Err  error                    `json:"-"`
}

type OrderResult struct {
	Order model.SalesOrder `json:"order"`
	Lines []LineOutcome    `json:"lines"`
}

// ResolveLine resolves one raw line for a customer, persists the raw line
// and its resolution, and appends an audit record on every path once the
// raw line is stored.
func (e *Engine) ResolveLine(ctx context.Context, raw model.RawOrderLine, customerID string) (*model.ResolvedOrderLine, error) {
	customer, err := e.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return e.resolveAndRecord(ctx, &raw, customer, products)
}

// ResolveOrder creates a sales order and resolves its lines sequentially in
// line-position order. A failing line never stops its siblings.
func (e *Engine) ResolveOrder(ctx context.Context, in OrderInput) (*OrderResult, error) {
	customer, err := e.store.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	order := model.SalesOrder{
		ID:             e.newID(),
		CustomerID:     customer.ID,
		DocumentRef:    in.DocumentRef,
		SourceFilename: in.SourceFilename,
		Status:         model.OrderReview,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.CreateOrder(ctx, &order); err != nil {
		return nil, err
	}

	lines := make([]LineInput, len(in.Lines))
	copy(lines, in.Lines)
	for i := range lines {
		if lines[i].LinePosition == 0 {
			lines[i].LinePosition = i + 1
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].LinePosition < lines[j].LinePosition })

	res := &OrderResult{Order: order, Lines: make([]LineOutcome, 0, len(lines))}
	matched, review, failed := 0, 0, 0
	for _, li := range lines {
		raw := model.RawOrderLine{
			OrderID:      order.ID,
			DocumentRef:  in.DocumentRef,
			LinePosition: li.LinePosition,
			RawText:      li.RawText,
			RawQuantity:  li.RawQuantity,
		}
		line, err := e.resolveAndRecord(ctx, &raw, customer, products)
		res.Lines = append(res.Lines, LineOutcome{Raw: raw, Line: line, Err: err})
		switch {
		case err != nil:
			failed++
			e.logger.Error().Err(err).Str("order_id", order.ID).Int("position", raw.LinePosition).Msg("line resolution failed")
		case line.Status == model.StatusMatched:
			matched++
		default:
			review++
		}
	}

	e.logger.Info().
		Str("order_id", order.ID).
		Str("customer_id", customer.ID).
		Str("document_ref", in.DocumentRef).
		Int("lines", len(lines)).
		Int("matched", matched).
		Int("needs_review", review).
		Int("failed", failed).
		Msg("order resolved")
	return res, nil
}

func (e *Engine) resolveAndRecord(ctx context.Context, raw *model.RawOrderLine, customer *model.Customer, products []model.Product) (line *model.ResolvedOrderLine, err error) {
	now := e.clock.Now()
	if raw.ID == "" {
		raw.ID = e.newID()
	}
	if raw.CreatedAt.IsZero() {
		raw.CreatedAt = now
	}

	// a raw line that cannot be written (a reused ID included) has no
	// trail of its own to append to
	if err := e.store.SaveRawLine(ctx, raw); err != nil {
		return nil, fmt.Errorf("save raw line: %w", err)
	}

	audit := &model.OcrAuditRecord{
		ID:          e.newID(),
		RawLineID:   raw.ID,
		Event:       model.AuditAutoResolve,
		RawText:     raw.RawText,
		RawQuantity: raw.RawQuantity,
		Decision:    model.StatusNeedsReview,
		CreatedAt:   now,
	}
	defer func() {
		if aerr := e.store.AppendAudit(ctx, audit); aerr != nil {
			err = errors.Join(err, fmt.Errorf("append audit: %w", aerr))
			line = nil
		}
	}()

	resolved, match, err := e.resolve(ctx, raw, customer, products)
	fillAudit(audit, resolved, match.Candidates)
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveResolvedLine(ctx, resolved); err != nil {
		return nil, fmt.Errorf("save resolved line: %w", err)
	}

	metrics.LinesResolved.WithLabelValues(string(resolved.Status)).Inc()
	metrics.MatchScore.Observe(resolved.Score)
	for _, r := range resolved.Reasons {
		metrics.LineReasons.WithLabelValues(string(r)).Inc()
	}
	e.logger.Debug().
		Str("raw_line_id", raw.ID).
		Str("normalized", resolved.NormalizedText).
		Str("status", string(resolved.Status)).
		Float64("score", resolved.Score).
		Interface("reasons", resolved.Reasons).
		Msg("line resolved")
	return resolved, nil
}

// resolve runs normalize -> match -> quantity -> price. The returned line is
// never nil; err is only set for store failures.
func (e *Engine) resolve(ctx context.Context, raw *model.RawOrderLine, customer *model.Customer, products []model.Product) (*model.ResolvedOrderLine, MatchResult, error) {
	now := e.clock.Now()
	norm := Normalize(raw.RawText)
	line := &model.ResolvedOrderLine{
		ID:             e.newID(),
		RawLineID:      raw.ID,
		OrderID:        raw.OrderID,
		CustomerID:     customer.ID,
		LinePosition:   raw.LinePosition,
		NormalizedText: norm,
		Status:         model.StatusNeedsReview,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	match := e.matcher.Match(norm, products)
	best, ok := match.Best()
	switch {
	case !ok:
		line.Reasons = append(line.Reasons, model.ReasonNoCandidate)
	case match.Status == model.StatusMatched:
		line.ProductID = best.ProductID
		line.Score = best.Score
	default:
		line.SuggestedProductID = best.ProductID
		line.Score = best.Score
		if best.Score < e.opts.MatchThreshold {
			line.Reasons = append(line.Reasons, model.ReasonLowConfidence)
		}
		if match.Ambiguous {
			line.Reasons = append(line.Reasons, model.ReasonMatchAmbiguous)
		}
	}

	if qty, err := e.quantity.SanitizeLocale(raw.RawQuantity, customer.Locale); err == nil {
		line.Quantity = &qty
	} else {
		line.Reasons = append(line.Reasons, model.ReasonInvalidQuantity)
	}

	if match.Status != model.StatusMatched {
		return line, match, nil
	}

	if best.Method == model.MethodExact {
		if err := e.index.Touch(ctx, norm); err != nil {
			e.logger.Warn().Err(err).Str("alias", norm).Msg("alias recency not persisted")
		}
	}

	price, source, err := e.prices.ResolvePrice(ctx, customer.ID, best.ProductID)
	switch {
	case err == nil:
		line.UnitPrice = decimal.NewNullDecimal(price)
		line.PriceSource = source
		metrics.PriceResolutions.WithLabelValues(string(source)).Inc()
	case errors.Is(err, model.ErrPriceUnavailable):
		line.Reasons = append(line.Reasons, model.ReasonPriceUnavailable)
		e.logger.Warn().Str("product_id", best.ProductID).Msg("product has no base price")
	default:
		return line, match, fmt.Errorf("resolve price: %w", err)
	}

	if line.Quantity != nil && line.UnitPrice.Valid {
		line.Status = model.StatusMatched
	}
	return line, match, nil
}

func fillAudit(a *model.OcrAuditRecord, line *model.ResolvedOrderLine, cands []model.Candidate) {
	a.NormalizedText = line.NormalizedText
	a.Candidates = append([]model.Candidate(nil), cands...)
	a.Decision = line.Status
	a.ProductID = line.ProductID
	a.Quantity = line.Quantity
	a.UnitPrice = line.UnitPrice
	a.PriceSource = line.PriceSource
	a.Reasons = append([]model.ReasonCode(nil), line.Reasons...)
}

// AuditTrailFor returns every recorded decision for a raw line, oldest first.
func (e *Engine) AuditTrailFor(ctx context.Context, rawLineID string) ([]model.OcrAuditRecord, error) {
	if _, err := e.store.GetRawLine(ctx, rawLineID); err != nil {
		return nil, err
	}
	return e.store.AuditTrail(ctx, rawLineID)
}

func (e *Engine) GetOrder(ctx context.Context, orderID string) (*model.SalesOrder, error) {
	return e.store.GetOrder(ctx, orderID)
}

// OrderLines returns the current resolution of each line in position order.
func (e *Engine) OrderLines(ctx context.Context, orderID string) ([]model.ResolvedOrderLine, error) {
	if _, err := e.store.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return e.store.ListResolvedLines(ctx, orderID)
}

// ReadyForDocuments reports whether every line of the order was confirmed.
func (e *Engine) ReadyForDocuments(ctx context.Context, orderID string) (bool, error) {
	lines, err := e.OrderLines(ctx, orderID)
	if err != nil {
		return false, err
	}
	return allConfirmed(lines), nil
}

func allConfirmed(lines []model.ResolvedOrderLine) bool {
	if len(lines) == 0 {
		return false
	}
	for _, l := range lines {
		if l.Status != model.StatusConfirmed {
			return false
		}
	}
	return true
}
