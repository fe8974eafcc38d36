package gormstore

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"faxorder-service/internal/resolve/model"
	"faxorder-service/internal/resolve/service"
)

var _ service.Store = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

// DB exposes the handle for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

func notFound(what, id string) error {
	return model.Errorf(model.ErrNotFound, what+" "+id+" not found")
}

func lookup(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what, id)
	}
	return pkgerrors.Wrapf(err, "load %s %s", what, id)
}

func duplicate(err error, what, id string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.Errorf(model.ErrInvalidInput, what+" "+id+" already exists")
	}
	return pkgerrors.Wrapf(err, "insert %s %s", what, id)
}

// catalog

func (s *Store) CreateProduct(ctx context.Context, p *model.Product) error {
	row := productRow{
		ID: p.ID, Name: p.Name, BasePrice: p.BasePrice, Description: p.Description,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return duplicate(err, "product", p.ID)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var row productRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, lookup(err, "product", id)
	}
	p := productFromRow(row)
	return &p, nil
}

func (s *Store) FindProductByName(ctx context.Context, name string) (*model.Product, error) {
	var row productRow
	err := s.db.WithContext(ctx).Where("name = ?", name).Order("created_at ASC").First(&row).Error
	if err != nil {
		return nil, lookup(err, "product", name)
	}
	p := productFromRow(row)
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	var rows []productRow
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list products")
	}
	out := make([]model.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, productFromRow(r))
	}
	return out, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *model.Customer) error {
	row := customerRow{ID: c.ID, Name: c.Name, Locale: c.Locale, CreatedAt: c.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return duplicate(err, "customer", c.ID)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var row customerRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, lookup(err, "customer", id)
	}
	return &model.Customer{ID: row.ID, Name: row.Name, Locale: row.Locale, CreatedAt: row.CreatedAt}, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	var rows []customerRow
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list customers")
	}
	out := make([]model.Customer, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Customer{ID: r.ID, Name: r.Name, Locale: r.Locale, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

// aliases

func (s *Store) ListAliases(ctx context.Context) ([]model.ProductAlias, error) {
	var rows []aliasRow
	if err := s.db.WithContext(ctx).Order("normalized ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list aliases")
	}
	out := make([]model.ProductAlias, 0, len(rows))
	for _, r := range rows {
		out = append(out, aliasFromRow(r))
	}
	return out, nil
}

func (s *Store) GetAlias(ctx context.Context, normalized string) (*model.ProductAlias, error) {
	var row aliasRow
	if err := s.db.WithContext(ctx).First(&row, "normalized = ?", normalized).Error; err != nil {
		return nil, lookup(err, "alias", normalized)
	}
	a := aliasFromRow(row)
	return &a, nil
}

// InsertAlias relies on the primary key over the normalized text: the
// insert is skipped on conflict and the surviving row decides the outcome.
func (s *Store) InsertAlias(ctx context.Context, a model.ProductAlias) (bool, error) {
	row := aliasRow{
		Normalized: a.Normalized, ProductID: a.ProductID, Alias: a.Alias,
		CreatedAt: a.CreatedAt, LastUsedAt: a.LastUsedAt,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, pkgerrors.Wrapf(res.Error, "insert alias %s", a.Normalized)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	cur, err := s.GetAlias(ctx, a.Normalized)
	if err != nil {
		return false, err
	}
	if cur.ProductID == a.ProductID {
		return false, nil
	}
	return false, model.Errorf(model.ErrAliasConflict, "alias "+a.Normalized+" belongs to product "+cur.ProductID)
}

func (s *Store) TouchAlias(ctx context.Context, normalized string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&aliasRow{}).
		Where("normalized = ?", normalized).
		Update("last_used_at", at)
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "touch alias %s", normalized)
	}
	if res.RowsAffected == 0 {
		return notFound("alias", normalized)
	}
	return nil
}

// pricing

func (s *Store) PriceSnapshot(ctx context.Context, customerID, productID string) (model.PriceSnapshot, error) {
	var snap model.PriceSnapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p productRow
		if err := tx.Select("id", "base_price").First(&p, "id = ?", productID).Error; err != nil {
			return lookup(err, "product", productID)
		}
		snap.BasePrice = p.BasePrice

		var o overrideRow
		err := tx.Where("customer_id = ? AND product_id = ? AND active = ?", customerID, productID, true).
			Order("id DESC").First(&o).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return pkgerrors.Wrap(err, "load override")
		default:
			cp := overrideFromRow(o)
			snap.Override = &cp
		}
		return nil
	}, txOptions(s.db))
	return snap, err
}

func (s *Store) SetBasePrice(ctx context.Context, productID string, price decimal.Decimal, source string, at time.Time) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var p productRow
		if err := q.Select("id", "base_price").First(&p, "id = ?", productID).Error; err != nil {
			return lookup(err, "product", productID)
		}
		if p.BasePrice.Valid && p.BasePrice.Decimal.Equal(price) {
			return nil
		}
		err := tx.Model(&productRow{}).Where("id = ?", productID).Updates(map[string]any{
			"base_price": decimal.NewNullDecimal(price),
			"updated_at": at,
		}).Error
		if err != nil {
			return pkgerrors.Wrap(err, "update base price")
		}
		v := priceVersionRow{ProductID: productID, Price: price, Source: source, RecordedAt: at}
		if err := tx.Create(&v).Error; err != nil {
			return pkgerrors.Wrap(err, "append price version")
		}
		changed = true
		return nil
	})
	return changed, err
}

func (s *Store) PriceHistory(ctx context.Context, productID string) ([]model.PriceVersion, error) {
	var rows []priceVersionRow
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).
		Order("recorded_at DESC").Order("id DESC").Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "price history")
	}
	out := make([]model.PriceVersion, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.PriceVersion{
			ProductID: r.ProductID, Price: r.Price, Source: r.Source, RecordedAt: r.RecordedAt,
		})
	}
	return out, nil
}

func (s *Store) PutOverride(ctx context.Context, p model.CustomerPricing) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&overrideRow{}).
			Where("customer_id = ? AND product_id = ? AND active = ?", p.CustomerID, p.ProductID, true).
			Update("active", false).Error
		if err != nil {
			return pkgerrors.Wrap(err, "deactivate override")
		}
		row := overrideRow{
			CustomerID: p.CustomerID, ProductID: p.ProductID, OverridePrice: p.OverridePrice,
			Active: true, CreatedAt: p.CreatedAt,
		}
		return pkgerrors.Wrap(tx.Create(&row).Error, "insert override")
	})
}

func (s *Store) DeactivateOverride(ctx context.Context, customerID, productID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&overrideRow{}).
		Where("customer_id = ? AND product_id = ? AND active = ?", customerID, productID, true).
		Update("active", false)
	if res.Error != nil {
		return false, pkgerrors.Wrap(res.Error, "deactivate override")
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) ListOverrides(ctx context.Context, customerID string) ([]model.CustomerPricing, error) {
	var rows []overrideRow
	err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).
		Order("created_at DESC").Order("id DESC").Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "list overrides of customer %s", customerID)
	}
	out := make([]model.CustomerPricing, 0, len(rows))
	for _, r := range rows {
		out = append(out, overrideFromRow(r))
	}
	return out, nil
}

// purchases

func (s *Store) InsertPurchase(ctx context.Context, p *model.PurchaseRecord) error {
	row := purchaseRow{
		ID: p.ID, ProductID: p.ProductID, Price: p.Price, Note: p.Note,
		PriceChanged: p.PriceChanged, RecordedAt: p.RecordedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return duplicate(err, "purchase", p.ID)
	}
	return nil
}

func (s *Store) ListPurchases(ctx context.Context, productID string, limit int) ([]model.PurchaseRecord, error) {
	q := s.db.WithContext(ctx).Order("recorded_at DESC").Order("id DESC")
	if productID != "" {
		q = q.Where("product_id = ?", productID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []purchaseRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list purchases")
	}
	out := make([]model.PurchaseRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.PurchaseRecord{
			ID: r.ID, ProductID: r.ProductID, Price: r.Price, Note: r.Note,
			PriceChanged: r.PriceChanged, RecordedAt: r.RecordedAt,
		})
	}
	return out, nil
}

// orders

func (s *Store) CreateOrder(ctx context.Context, o *model.SalesOrder) error {
	row := orderRow{
		ID: o.ID, CustomerID: o.CustomerID, DocumentRef: o.DocumentRef,
		SourceFilename: o.SourceFilename, Status: string(o.Status),
		CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return duplicate(err, "order", o.ID)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*model.SalesOrder, error) {
	var row orderRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, lookup(err, "order", id)
	}
	return &model.SalesOrder{
		ID: row.ID, CustomerID: row.CustomerID, DocumentRef: row.DocumentRef,
		SourceFilename: row.SourceFilename, Status: model.OrderStatus(row.Status),
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *Store) SetOrderStatus(ctx context.Context, id string, status model.OrderStatus, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&orderRow{}).Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": at})
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "set order %s status", id)
	}
	if res.RowsAffected == 0 {
		return notFound("order", id)
	}
	return nil
}

func (s *Store) SaveRawLine(ctx context.Context, l *model.RawOrderLine) error {
	row := rawLineRow{
		ID: l.ID, OrderID: l.OrderID, DocumentRef: l.DocumentRef, LinePosition: l.LinePosition,
		RawText: l.RawText, RawQuantity: l.RawQuantity, CreatedAt: l.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return duplicate(err, "raw line", l.ID)
	}
	return nil
}

func (s *Store) GetRawLine(ctx context.Context, id string) (*model.RawOrderLine, error) {
	var row rawLineRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, lookup(err, "raw line", id)
	}
	return &model.RawOrderLine{
		ID: row.ID, OrderID: row.OrderID, DocumentRef: row.DocumentRef, LinePosition: row.LinePosition,
		RawText: row.RawText, RawQuantity: row.RawQuantity, CreatedAt: row.CreatedAt,
	}, nil
}

func (s *Store) SaveResolvedLine(ctx context.Context, l *model.ResolvedOrderLine) error {
	row := lineToRow(l)
	return pkgerrors.Wrapf(s.db.WithContext(ctx).Save(&row).Error, "save line %s", l.ID)
}

func (s *Store) GetResolvedLine(ctx context.Context, id string) (*model.ResolvedOrderLine, error) {
	var row resolvedLineRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, lookup(err, "line", id)
	}
	l := lineFromRow(row)
	return &l, nil
}

// ConfirmResolvedLine is a conditional update: only a row that is not yet
// confirmed is replaced.
func (s *Store) ConfirmResolvedLine(ctx context.Context, l *model.ResolvedOrderLine) error {
	row := lineToRow(l)
	res := s.db.WithContext(ctx).Model(&resolvedLineRow{}).
		Where("id = ? AND status <> ?", l.ID, string(model.StatusConfirmed)).
		Select("*").Omit("id", "created_at").
		Updates(&row)
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "confirm line %s", l.ID)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := s.GetResolvedLine(ctx, l.ID); err != nil {
		return err
	}
	return model.Errorf(model.ErrLineConfirmed, "line "+l.ID+" is already confirmed")
}

func (s *Store) ListResolvedLines(ctx context.Context, orderID string) ([]model.ResolvedOrderLine, error) {
	var rows []resolvedLineRow
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).
		Order("line_position ASC").Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "list lines of order %s", orderID)
	}
	return linesFromRows(rows), nil
}

func (s *Store) ListLinesByStatus(ctx context.Context, status model.Status, limit int) ([]model.ResolvedOrderLine, error) {
	q := s.db.WithContext(ctx).Where("status = ?", string(status)).
		Order("created_at DESC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []resolvedLineRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrapf(err, "list %s lines", status)
	}
	return linesFromRows(rows), nil
}

func linesFromRows(rows []resolvedLineRow) []model.ResolvedOrderLine {
	out := make([]model.ResolvedOrderLine, 0, len(rows))
	for _, r := range rows {
		out = append(out, lineFromRow(r))
	}
	return out
}

// audit

// AppendAudit numbers records per raw line; the unique (raw_line_id,
// sequence) index rejects a concurrent writer that read the same maximum.
func (s *Store) AppendAudit(ctx context.Context, r *model.OcrAuditRecord) error {
	const attempts = 3
	var err error
	for i := 0; i < attempts; i++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var last int
			if err := tx.Model(&auditRow{}).Where("raw_line_id = ?", r.RawLineID).
				Select("COALESCE(MAX(sequence), 0)").Scan(&last).Error; err != nil {
				return err
			}
			row := auditRow{
				ID: r.ID, RawLineID: r.RawLineID, Sequence: last + 1, Event: string(r.Event),
				RawText: r.RawText, RawQuantity: r.RawQuantity, NormalizedText: r.NormalizedText,
				Candidates: r.Candidates, Decision: string(r.Decision), ProductID: r.ProductID,
				Quantity: r.Quantity, UnitPrice: r.UnitPrice, PriceSource: string(r.PriceSource),
				Reasons: r.Reasons, Actor: r.Actor, CreatedAt: r.CreatedAt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			r.Sequence = row.Sequence
			return nil
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	return pkgerrors.Wrapf(err, "append audit for %s", r.RawLineID)
}

func (s *Store) AuditTrail(ctx context.Context, rawLineID string) ([]model.OcrAuditRecord, error) {
	var rows []auditRow
	err := s.db.WithContext(ctx).Where("raw_line_id = ?", rawLineID).Order("sequence ASC").Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "audit trail of %s", rawLineID)
	}
	out := make([]model.OcrAuditRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, auditFromRow(r))
	}
	return out, nil
}
