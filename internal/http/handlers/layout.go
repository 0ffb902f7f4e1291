package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"tableside-pos/internal/layout"
	"tableside-pos/pkg/response"
)

const layoutAttempts = 3

type layoutUpdatePayload struct {
	Name    string  `json:"name"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Version int64   `json:"version"`
	// Strategy is "keepLatest" (default) or "keepGeometry".
	Strategy string `json:"onConflict"`
}

type layoutUpdateResult struct {
	Table    layout.Table `json:"table"`
	Conflict bool         `json:"conflict"`
}

// LayoutTableUpdate saves one table's floor plan entry. On a version conflict
// the response carries the copy the terminal should now show.
func (h *Handler) LayoutTableUpdate(w http.ResponseWriter, r *http.Request) {
	if h.Layout == nil {
		response.Error(w, http.StatusServiceUnavailable, "LAYOUT_NOT_CONFIGURED", "Floor plan service is not configured")
		return
	}
	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return
	}
	var payload layoutUpdatePayload
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	reapply := layout.KeepLatest
	switch payload.Strategy {
	case "", "keepLatest":
	case "keepGeometry":
		reapply = layout.KeepGeometry
	default:
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "onConflict must be keepLatest or keepGeometry")
		return
	}

	mine := layout.Table{
		ID:      id,
		Name:    payload.Name,
		OffsetX: payload.OffsetX,
		OffsetY: payload.OffsetY,
		Width:   payload.Width,
		Height:  payload.Height,
		Version: payload.Version,
	}
	saved, err := h.Layout.UpdateWithRefetch(r.Context(), mine, reapply, layoutAttempts)
	var conflict *layout.VersionConflict
	switch {
	case err == nil:
		// The service bumps the version by one per accepted write, so any
		// other version means a conflict was resolved along the way.
		response.Success(w, layoutUpdateResult{Table: saved, Conflict: saved.Version != payload.Version+1})
	case errors.As(err, &conflict):
		response.JSON(w, http.StatusConflict, response.Envelope{
			Data:    layoutUpdateResult{Table: conflict.Latest, Conflict: true},
			Error:   "VERSION_CONFLICT",
			Message: "Table changed on another terminal",
		})
	case errors.Is(err, layout.ErrNotFound):
		response.Error(w, http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found")
	default:
		h.Logger.Warn("layout update failed", zap.Int64("tableId", id), zap.Error(err))
		response.Error(w, http.StatusBadGateway, "LAYOUT_UNAVAILABLE", "Floor plan service is unavailable")
	}
}
