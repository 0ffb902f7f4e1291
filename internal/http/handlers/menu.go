package handlers

import (
	"net/http"

	"tableside-pos/pkg/response"
)

func (h *Handler) MenuList(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.Menu.Items())
}

func (h *Handler) MenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid menu item id")
		return
	}
	item, err := h.Menu.Item(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, item)
}
