// Package handler exposes the resolution engine over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"faxorder-service/internal/resolve/model"
	"faxorder-service/internal/resolve/service"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Handler struct {
	engine      *service.Engine
	maxUploadMB int
}

func New(engine *service.Engine, maxUploadMB int) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &Handler{engine: engine, maxUploadMB: maxUploadMB}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code string) int {
	switch code {
	case model.ErrNotFound.Code:
		return http.StatusNotFound
	case model.ErrAliasConflict.Code, model.ErrLineConfirmed.Code:
		return http.StatusConflict
	case model.ErrInvalidInput.Code, model.ErrInvalidQuantity.Code:
		return http.StatusBadRequest
	case model.ErrPriceUnavailable.Code:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to status codes; everything unrecognised is
// logged and reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		domainErr *model.Error
		valErrs   validator.ValidationErrors
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &domainErr):
		status := statusFor(domainErr.Code)
		if status == http.StatusInternalServerError {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		}
		writeJSON(w, status, map[string]errorBody{"error": {Code: domainErr.Code, Message: domainErr.Message}})
	case errors.As(err, &valErrs):
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Code: model.ErrInvalidInput.Code, Message: valErrs.Error()}})
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]errorBody{"error": {Code: "TOO_LARGE", Message: err.Error()}})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]errorBody{"error": {Code: "INTERNAL", Message: "internal error"}})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Code: model.ErrInvalidInput.Code, Message: msg}})
}

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return model.Errorf(model.ErrInvalidInput, "malformed JSON: "+err.Error())
	}
	return validate.Struct(v)
}

// queryLimit reads an optional page size, rejecting values the engine
// would not honour.
func queryLimit(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > service.MaxListLimit {
		return 0, model.Errorf(model.ErrInvalidInput, fmt.Sprintf("limit must be between 1 and %d", service.MaxListLimit))
	}
	return n, nil
}
