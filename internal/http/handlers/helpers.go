package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tableside-pos/internal/menu"
	"tableside-pos/internal/middleware"
	"tableside-pos/internal/order"
	"tableside-pos/internal/printer"
	"tableside-pos/internal/rates"
	"tableside-pos/pkg/response"
)

const maxBodyBytes = 1 << 20

var errMissingParam = errors.New("missing param")

func readPathString(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	if _, err := fmt.Sscan(value, &out); err != nil {
		return 0, err
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return out, nil
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeError maps engine, menu, rate and printer errors onto HTTP responses.
// Anything unrecognised is logged and reported as an internal error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var domain *order.Error
	switch {
	case errors.As(err, &domain):
		response.Error(w, domain.StatusCode, string(domain.Code), domain.Message)
	case order.IsStoreError(err):
		h.Logger.Error("order store failure",
			zap.String("requestId", middleware.GetRequestID(r.Context())),
			zap.Error(err),
		)
		response.Error(w, http.StatusServiceUnavailable, string(order.CodeStoreFailure), "Order store is unavailable, nothing was changed")
	case errors.Is(err, menu.ErrItemNotFound):
		response.Error(w, http.StatusNotFound, "MENU_ITEM_NOT_FOUND", "Menu item not found")
	case errors.Is(err, menu.ErrSelectionInvalid):
		response.Error(w, http.StatusBadRequest, "INVALID_SELECTION", err.Error())
	case errors.Is(err, rates.ErrRateOutOfRange):
		response.Error(w, http.StatusBadRequest, "RATE_OUT_OF_RANGE", err.Error())
	case errors.Is(err, printer.ErrNotConfigured):
		response.Error(w, http.StatusServiceUnavailable, "PRINTER_NOT_CONFIGURED", "Printer IP not configured")
	case errors.Is(err, printer.ErrQueueFull):
		response.Error(w, http.StatusServiceUnavailable, "PRINT_QUEUE_FULL", "Print queue is full, try again")
	default:
		h.Logger.Error("request failed",
			zap.String("requestId", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Request failed")
	}
}
