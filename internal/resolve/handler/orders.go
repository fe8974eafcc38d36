package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"faxorder-service/internal/resolve/model"
	"faxorder-service/internal/resolve/service"
)

type lineRequest struct {
	RawText      string `json:"raw_text"`
	RawQuantity  string `json:"raw_quantity"`
	LinePosition int    `json:"line_position" validate:"gte=0"`
}

type resolveRequest struct {
	CustomerID     string        `json:"customer_id" validate:"required"`
	DocumentRef    string        `json:"document_ref"`
	SourceFilename string        `json:"source_filename"`
	Lines          []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type lineOutcome struct {
	Raw   model.RawOrderLine       `json:"raw"`
	Line  *model.ResolvedOrderLine `json:"line,omitempty"`
	Error string                   `json:"error,omitempty"`
}

type resolveResponse struct {
	Order model.SalesOrder `json:"order"`
	Lines []lineOutcome    `json:"lines"`
}

// ResolveOrder handles POST /orders/resolve.
func (h *Handler) ResolveOrder(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := service.OrderInput{
		CustomerID:     req.CustomerID,
		DocumentRef:    req.DocumentRef,
		SourceFilename: req.SourceFilename,
		Lines:          make([]service.LineInput, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, service.LineInput{RawText: l.RawText, RawQuantity: l.RawQuantity, LinePosition: l.LinePosition})
	}

	res, err := h.engine.ResolveOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := resolveResponse{Order: res.Order, Lines: make([]lineOutcome, 0, len(res.Lines))}
	for _, o := range res.Lines {
		lo := lineOutcome{Raw: o.Raw, Line: o.Line}
		if o.Err != nil {
			lo.Error = o.Err.Error()
		}
		out.Lines = append(out.Lines, lo)
	}
	zerolog.Ctx(r.Context()).Debug().Str("order_id", res.Order.ID).Int("lines", len(out.Lines)).Msg("order resolved")
	writeJSON(w, http.StatusCreated, out)
}

// OrderLines handles GET /orders/{orderID}/lines.
func (h *Handler) OrderLines(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	order, err := h.engine.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := h.engine.OrderLines(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if lines == nil {
		lines = []model.ResolvedOrderLine{}
	}
	ready, err := h.engine.ReadyForDocuments(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order":               order,
		"lines":               lines,
		"ready_for_documents": ready,
	})
}

// ConfirmLine handles POST /lines/{lineID}/confirm.
func (h *Handler) ConfirmLine(w http.ResponseWriter, r *http.Request) {
	var in service.ConfirmInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.LineID = chi.URLParam(r, "lineID")
	line, err := h.engine.Confirm(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

// AuditTrail handles GET /raw-lines/{rawLineID}/audit.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.engine.AuditTrailFor(r.Context(), chi.URLParam(r, "rawLineID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": trail})
}

// AliasSuggestions handles GET /aliases/suggestions?limit=N.
func (h *Handler) AliasSuggestions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 20)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.engine.AliasSuggestions(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": list})
}
