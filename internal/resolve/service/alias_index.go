package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"faxorder-service/internal/resolve/model"
)

type aliasEntry struct {
	productID  string
	alias      string
	normalized string
	createdAt  time.Time
	lastUsed   time.Time
}

// aliasRef is a read-only copy handed to the matcher.
type aliasRef struct {
	productID  string
	normalized string
}

// AliasIndex maps normalized alias text to exactly one product. Reads are
// concurrent; registrations are serialized and go through the repository's
// compare-and-insert before the in-memory maps change.
type AliasIndex struct {
	repo  AliasRepository
	clock Clock

	regMu sync.Mutex // serializes Register

	mu        sync.RWMutex
	byKey     map[string]*aliasEntry
	byProduct map[string][]*aliasEntry
}

func NewAliasIndex(repo AliasRepository, clock Clock) *AliasIndex {
	if clock == nil {
		clock = RealClock{}
	}
	return &AliasIndex{
		repo:      repo,
		clock:     clock,
		byKey:     make(map[string]*aliasEntry),
		byProduct: make(map[string][]*aliasEntry),
	}
}

// Rebuild replaces the in-memory state with the persisted aliases.
func (x *AliasIndex) Rebuild(ctx context.Context) error {
	rows, err := x.repo.ListAliases(ctx)
	if err != nil {
		return fmt.Errorf("load aliases: %w", err)
	}

	byKey := make(map[string]*aliasEntry, len(rows))
	byProduct := make(map[string][]*aliasEntry)
	for _, a := range rows {
		key := a.Normalized
		if key == "" {
			key = Normalize(a.Alias)
		}
		if key == "" {
			continue
		}
		if prev, ok := byKey[key]; ok && prev.productID != a.ProductID {
			return model.Errorf(model.ErrAliasConflict,
				fmt.Sprintf("alias %q is stored for products %s and %s", key, prev.productID, a.ProductID))
		}
		e := &aliasEntry{
			productID:  a.ProductID,
			alias:      a.Alias,
			normalized: key,
			createdAt:  a.CreatedAt,
			lastUsed:   a.LastUsedAt,
		}
		byKey[key] = e
		byProduct[a.ProductID] = append(byProduct[a.ProductID], e)
	}
	for _, list := range byProduct {
		sortEntries(list)
	}

	x.mu.Lock()
	x.byKey, x.byProduct = byKey, byProduct
	x.mu.Unlock()
	return nil
}

// LookupExact returns the product owning the normalized alias.
func (x *AliasIndex) LookupExact(normalized string) (string, bool) {
	if normalized == "" {
		return "", false
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if e, ok := x.byKey[normalized]; ok {
		return e.productID, true
	}
	return "", false
}

// AllAliasesFor returns the product's aliases as registered, oldest first.
func (x *AliasIndex) AllAliasesFor(productID string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	list := x.byProduct[productID]
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.alias
	}
	return out
}

// Register maps aliasText to productID. Registering an existing identical
// mapping is a no-op (created=false); a mapping owned by another product
// fails with model.ErrAliasConflict and leaves the index unchanged.
func (x *AliasIndex) Register(ctx context.Context, productID, aliasText string) (bool, error) {
	key := Normalize(aliasText)
	if key == "" || productID == "" {
		return false, model.Errorf(model.ErrInvalidInput, "alias and product are required")
	}

	x.regMu.Lock()
	defer x.regMu.Unlock()

	if owner, ok := x.LookupExact(key); ok {
		if owner == productID {
			return false, nil
		}
		return false, conflictError(key, owner)
	}

	now := x.clock.Now()
	a := model.ProductAlias{
		ProductID:  productID,
		Alias:      aliasText,
		Normalized: key,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	created, err := x.repo.InsertAlias(ctx, a)
	if err != nil {
		if errors.Is(err, model.ErrAliasConflict) {
			// registered by another process; adopt the stored owner
			if stored, gerr := x.repo.GetAlias(ctx, key); gerr == nil {
				x.install(*stored)
				return false, conflictError(key, stored.ProductID)
			}
		}
		return false, err
	}
	if !created {
		if stored, gerr := x.repo.GetAlias(ctx, key); gerr == nil {
			a = *stored
		}
	}
	x.install(a)
	return created, nil
}

func conflictError(key, owner string) error {
	return model.Errorf(model.ErrAliasConflict,
		fmt.Sprintf("alias %q already belongs to product %s", key, owner))
}

func (x *AliasIndex) install(a model.ProductAlias) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.byKey[a.Normalized]; ok {
		return
	}
	e := &aliasEntry{
		productID:  a.ProductID,
		alias:      a.Alias,
		normalized: a.Normalized,
		createdAt:  a.CreatedAt,
		lastUsed:   a.LastUsedAt,
	}
	x.byKey[e.normalized] = e
	list := append(x.byProduct[e.productID], e)
	sortEntries(list)
	x.byProduct[e.productID] = list
}

// Touch records that the alias resolved a line just now.
func (x *AliasIndex) Touch(ctx context.Context, normalized string) error {
	now := x.clock.Now()
	x.mu.Lock()
	e, ok := x.byKey[normalized]
	if ok {
		e.lastUsed = now
	}
	x.mu.Unlock()
	if !ok {
		return nil
	}
	return x.repo.TouchAlias(ctx, normalized, now)
}

// LastUsed is the most recent use of any alias of the product.
func (x *AliasIndex) LastUsed(productID string) time.Time {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var t time.Time
	for _, e := range x.byProduct[productID] {
		if e.lastUsed.After(t) {
			t = e.lastUsed
		}
	}
	return t
}

func (x *AliasIndex) refs() []aliasRef {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]aliasRef, 0, len(x.byKey))
	for _, e := range x.byKey {
		out = append(out, aliasRef{productID: e.productID, normalized: e.normalized})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].normalized < out[j].normalized })
	return out
}

func (x *AliasIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byKey)
}

func sortEntries(list []*aliasEntry) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].createdAt.Equal(list[j].createdAt) {
			return list[i].createdAt.Before(list[j].createdAt)
		}
		return list[i].normalized < list[j].normalized
	})
}
