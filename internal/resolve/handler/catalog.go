package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"faxorder-service/internal/fileio"
	"faxorder-service/internal/resolve/service"
)

type aliasRequest struct {
	Alias string `json:"alias" validate:"required"`
}

type priceRequest struct {
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source" validate:"omitempty,oneof=purchase manual import"`
}

type customerRequest struct {
	Name   string `json:"name" validate:"required"`
	Locale string `json:"locale" validate:"omitempty,min=2,max=16"`
}

type overrideRequest struct {
	Price decimal.Decimal `json:"price"`
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": list})
}

// ListAliases handles GET /aliases.
func (h *Handler) ListAliases(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListAliases(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"aliases": list})
}

// ProductAliases handles GET /products/{productID}/aliases.
func (h *Handler) ProductAliases(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	list, err := h.engine.ProductAliases(r.Context(), productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": productID, "aliases": list})
}

// CreateProduct handles POST /products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.engine.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// RegisterAlias handles POST /products/{productID}/aliases.
func (h *Handler) RegisterAlias(w http.ResponseWriter, r *http.Request) {
	var req aliasRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	productID := chi.URLParam(r, "productID")
	created, err := h.engine.RegisterAlias(r.Context(), productID, req.Alias)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"product_id": productID,
		"alias":      req.Alias,
		"normalized": service.Normalize(req.Alias),
		"created":    created,
	})
}

// UpdateBasePrice handles POST /products/{productID}/base-price.
func (h *Handler) UpdateBasePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	changed, err := h.engine.UpdateBasePrice(r.Context(), chi.URLParam(r, "productID"), req.Price, req.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "price": req.Price})
}

// PriceHistory handles GET /products/{productID}/price-history.
func (h *Handler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.engine.PriceHistory(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": hist})
}

// ListCustomers handles GET /customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListCustomers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": list})
}

// CustomerPricing handles GET /customers/{customerID}/pricing.
func (h *Handler) CustomerPricing(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.CustomerPricing(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pricing": list})
}

// CreateCustomer handles POST /customers.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.engine.CreateCustomer(r.Context(), req.Name, req.Locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// SetCustomerPrice handles PUT /customers/{customerID}/pricing/{productID}.
func (h *Handler) SetCustomerPrice(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cp, err := h.engine.SetCustomerPrice(r.Context(), chi.URLParam(r, "customerID"), chi.URLParam(r, "productID"), req.Price)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

// RemoveCustomerPrice handles DELETE /customers/{customerID}/pricing/{productID}.
func (h *Handler) RemoveCustomerPrice(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RemoveCustomerPrice(r.Context(), chi.URLParam(r, "customerID"), chi.URLParam(r, "productID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordPurchase handles POST /purchases.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	var in service.PurchaseInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.engine.RecordPurchase(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListPurchases handles GET /purchases?product_id=&limit=.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.engine.ListPurchases(r.Context(), r.URL.Query().Get("product_id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": list})
}

// ImportCatalog handles POST /catalog/import (multipart).
// Fields: file, header_row, name_col, price_col, alias_col, description_col.
func (h *Handler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(int64(h.maxUploadMB) << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, err)
			return
		}
		badRequest(w, "multipart form expected: "+err.Error())
		return
	}
	file, fh, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file is required")
		return
	}
	defer file.Close()

	headerRow := 1
	if v := strings.TrimSpace(r.FormValue("header_row")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, "header_row must be a positive integer")
			return
		}
		headerRow = n
	}

	rows, err := fileio.ReadAnyMaps(file, fh.Filename, headerRow)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	m := service.DefaultImportMapping()
	override := func(dst *string, field string) {
		if v := strings.TrimSpace(r.FormValue(field)); v != "" {
			*dst = v
		}
	}
	override(&m.NameKey, "name_col")
	override(&m.PriceKey, "price_col")
	override(&m.AliasKey, "alias_col")
	override(&m.DescriptionKey, "description_col")

	rep, err := h.engine.ImportCatalog(r.Context(), rows, m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
