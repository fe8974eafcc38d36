// Package memstore keeps the whole catalog and order state in memory. It is
// used by tests and by DB_DRIVER=memory.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"faxorder-service/internal/resolve/model"
	"faxorder-service/internal/resolve/service"
)

var _ service.Store = (*Store)(nil)

type pairKey struct{ customer, product string }

type Store struct {
	mu sync.RWMutex

	products  map[string]model.Product
	customers map[string]model.Customer
	aliases   map[string]model.ProductAlias // by normalized text
	versions  map[string][]model.PriceVersion
	overrides map[pairKey][]model.CustomerPricing // newest last
	purchases []model.PurchaseRecord              // oldest first

	orders   map[string]model.SalesOrder
	raw      map[string]model.RawOrderLine
	resolved map[string]model.ResolvedOrderLine
	audit    map[string][]model.OcrAuditRecord
}

func New() *Store {
	return &Store{
		products:  make(map[string]model.Product),
		customers: make(map[string]model.Customer),
		aliases:   make(map[string]model.ProductAlias),
		versions:  make(map[string][]model.PriceVersion),
		overrides: make(map[pairKey][]model.CustomerPricing),
		orders:    make(map[string]model.SalesOrder),
		raw:       make(map[string]model.RawOrderLine),
		resolved:  make(map[string]model.ResolvedOrderLine),
		audit:     make(map[string][]model.OcrAuditRecord),
	}
}

func notFound(what, id string) error {
	return model.Errorf(model.ErrNotFound, what+" "+id+" not found")
}

// ---- catalog ----

func (s *Store) CreateProduct(_ context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return model.Errorf(model.ErrInvalidInput, "product "+p.ID+" already exists")
	}
	s.products[p.ID] = *p
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, notFound("product", id)
	}
	return &p, nil
}

func (s *Store) FindProductByName(_ context.Context, name string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *model.Product
	for _, p := range s.products {
		if p.Name == name && (found == nil || p.CreatedAt.Before(found.CreatedAt)) {
			p := p
			found = &p
		}
	}
	if found == nil {
		return nil, notFound("product", name)
	}
	return found, nil
}

func (s *Store) ListProducts(_ context.Context) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateCustomer(_ context.Context, c *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; ok {
		return model.Errorf(model.ErrInvalidInput, "customer "+c.ID+" already exists")
	}
	s.customers[c.ID] = *c
	return nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, notFound("customer", id)
	}
	return &c, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- aliases ----

func (s *Store) ListAliases(_ context.Context) ([]model.ProductAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ProductAlias, 0, len(s.aliases))
	for _, a := range s.aliases {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Normalized < out[j].Normalized })
	return out, nil
}

func (s *Store) GetAlias(_ context.Context, normalized string) (*model.ProductAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.aliases[normalized]
	if !ok {
		return nil, notFound("alias", normalized)
	}
	return &a, nil
}

func (s *Store) InsertAlias(_ context.Context, a model.ProductAlias) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.aliases[a.Normalized]; ok {
		if cur.ProductID == a.ProductID {
			return false, nil
		}
		return false, model.Errorf(model.ErrAliasConflict, "alias "+a.Normalized+" belongs to product "+cur.ProductID)
	}
	s.aliases[a.Normalized] = a
	return true, nil
}

func (s *Store) TouchAlias(_ context.Context, normalized string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.aliases[normalized]
	if !ok {
		return notFound("alias", normalized)
	}
	a.LastUsedAt = at
	s.aliases[normalized] = a
	return nil
}

// ---- pricing ----

func (s *Store) PriceSnapshot(_ context.Context, customerID, productID string) (model.PriceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return model.PriceSnapshot{}, notFound("product", productID)
	}
	snap := model.PriceSnapshot{BasePrice: p.BasePrice}
	list := s.overrides[pairKey{customerID, productID}]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Active {
			o := list[i]
			snap.Override = &o
			break
		}
	}
	return snap, nil
}

func (s *Store) SetBasePrice(_ context.Context, productID string, price decimal.Decimal, source string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return false, notFound("product", productID)
	}
	if p.BasePrice.Valid && p.BasePrice.Decimal.Equal(price) {
		return false, nil
	}
	p.BasePrice = decimal.NewNullDecimal(price)
	p.UpdatedAt = at
	s.products[productID] = p
	s.versions[productID] = append(s.versions[productID], model.PriceVersion{
		ProductID: productID, Price: price, Source: source, RecordedAt: at,
	})
	return true, nil
}

func (s *Store) PriceHistory(_ context.Context, productID string) ([]model.PriceVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.versions[productID]
	out := make([]model.PriceVersion, len(list))
	for i := range list {
		out[len(list)-1-i] = list[i]
	}
	return out, nil
}

func (s *Store) PutOverride(_ context.Context, p model.CustomerPricing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pairKey{p.CustomerID, p.ProductID}
	list := s.overrides[k]
	for i := range list {
		list[i].Active = false
	}
	p.Active = true
	s.overrides[k] = append(list, p)
	return nil
}

func (s *Store) DeactivateOverride(_ context.Context, customerID, productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.overrides[pairKey{customerID, productID}]
	changed := false
	for i := range list {
		if list[i].Active {
			list[i].Active = false
			changed = true
		}
	}
	return changed, nil
}

func (s *Store) ListOverrides(_ context.Context, customerID string) ([]model.CustomerPricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.CustomerPricing{}
	for k, list := range s.overrides {
		if k.customer == customerID {
			out = append(out, list...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		if out[i].Active != out[j].Active {
			return out[i].Active
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

// ---- purchases ----

func (s *Store) InsertPurchase(_ context.Context, p *model.PurchaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ProductID]; !ok {
		return notFound("product", p.ProductID)
	}
	s.purchases = append(s.purchases, *p)
	return nil
}

func (s *Store) ListPurchases(_ context.Context, productID string, limit int) ([]model.PurchaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.PurchaseRecord{}
	for i := len(s.purchases) - 1; i >= 0; i-- {
		if productID != "" && s.purchases[i].ProductID != productID {
			continue
		}
		out = append(out, s.purchases[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ---- orders ----

func (s *Store) CreateOrder(_ context.Context, o *model.SalesOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = *o
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*model.SalesOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, notFound("order", id)
	}
	return &o, nil
}

func (s *Store) SetOrderStatus(_ context.Context, id string, status model.OrderStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return notFound("order", id)
	}
	o.Status = status
	o.UpdatedAt = at
	s.orders[id] = o
	return nil
}

func (s *Store) SaveRawLine(_ context.Context, l *model.RawOrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.raw[l.ID]; ok {
		return model.Errorf(model.ErrInvalidInput, "raw line "+l.ID+" is immutable")
	}
	s.raw[l.ID] = *l
	return nil
}

func (s *Store) GetRawLine(_ context.Context, id string) (*model.RawOrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.raw[id]
	if !ok {
		return nil, notFound("raw line", id)
	}
	return &l, nil
}

func (s *Store) SaveResolvedLine(_ context.Context, l *model.ResolvedOrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[l.ID] = cloneLine(*l)
	return nil
}

func (s *Store) GetResolvedLine(_ context.Context, id string) (*model.ResolvedOrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.resolved[id]
	if !ok {
		return nil, notFound("line", id)
	}
	l = cloneLine(l)
	return &l, nil
}

func (s *Store) ConfirmResolvedLine(_ context.Context, l *model.ResolvedOrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.resolved[l.ID]
	if !ok {
		return notFound("line", l.ID)
	}
	if cur.Status == model.StatusConfirmed {
		return model.Errorf(model.ErrLineConfirmed, "line "+l.ID+" is already confirmed")
	}
	s.resolved[l.ID] = cloneLine(*l)
	return nil
}

func (s *Store) ListResolvedLines(_ context.Context, orderID string) ([]model.ResolvedOrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ResolvedOrderLine
	for _, l := range s.resolved {
		if l.OrderID == orderID {
			out = append(out, cloneLine(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LinePosition != out[j].LinePosition {
			return out[i].LinePosition < out[j].LinePosition
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ListLinesByStatus(_ context.Context, status model.Status, limit int) ([]model.ResolvedOrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ResolvedOrderLine
	for _, l := range s.resolved {
		if l.Status == status {
			out = append(out, cloneLine(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- audit ----

func (s *Store) AppendAudit(_ context.Context, r *model.OcrAuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Sequence = len(s.audit[r.RawLineID]) + 1
	s.audit[r.RawLineID] = append(s.audit[r.RawLineID], *r)
	return nil
}

func (s *Store) AuditTrail(_ context.Context, rawLineID string) ([]model.OcrAuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.audit[rawLineID]
	out := make([]model.OcrAuditRecord, len(list))
	copy(out, list)
	return out, nil
}

func cloneLine(l model.ResolvedOrderLine) model.ResolvedOrderLine {
	if l.Quantity != nil {
		q := *l.Quantity
		l.Quantity = &q
	}
	if l.ConfirmedAt != nil {
		t := *l.ConfirmedAt
		l.ConfirmedAt = &t
	}
	l.Reasons = append([]model.ReasonCode(nil), l.Reasons...)
	return l
}
