package handlers

import (
	"fmt"
	"net/http"

	"tableside-pos/internal/cart"
	"tableside-pos/internal/menu"
	"tableside-pos/internal/order"
	"tableside-pos/internal/session"
	"tableside-pos/internal/ticket"
	"tableside-pos/pkg/response"
)

// cartEntryPayload identifies a cart entry by its merge key.
type cartEntryPayload struct {
	MenuItemID int64   `json:"menuItemId"`
	UnitPrice  float64 `json:"unitPrice"`
	Options    string  `json:"options"`
	Memo       string  `json:"memo"`
}

func (p cartEntryPayload) entry() cart.Entry {
	return cart.Entry{MenuItemID: p.MenuItemID, UnitPrice: p.UnitPrice, Options: p.Options, Memo: p.Memo}
}

type cartAddPayload struct {
	MenuItemID int64          `json:"menuItemId"`
	Selections menu.Selection `json:"selections"`
}

type cartMemoPayload struct {
	Entry cartEntryPayload `json:"entry"`
	Memo  string           `json:"memo"`
}

type memoPayload struct {
	Memo string `json:"memo"`
}

type quantityPayload struct {
	Quantity *int `json:"quantity"`
}

type sendResult struct {
	OrderID  int64        `json:"orderId"`
	Created  bool         `json:"created"`
	Inserted int          `json:"inserted"`
	Merged   int          `json:"merged"`
	View     session.View `json:"view"`
}

type payResult struct {
	Order order.Order  `json:"order"`
	View  session.View `json:"view"`
}

// openSession resolves {tableId} and returns its live session. It writes the
// error response itself and returns nil on failure.
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) *session.Session {
	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return nil
	}
	sess, err := h.Sessions.Open(r.Context(), tableID)
	if err != nil {
		h.writeError(w, r, err)
		return nil
	}
	return sess
}

func (h *Handler) lineID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	lineID, err := readPathInt64(r, "lineId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid line id")
		return 0, false
	}
	return lineID, true
}

// respond writes the session view after a successful mutation.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, sess.View())
}

func (h *Handler) SessionGet(w http.ResponseWriter, r *http.Request) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	response.Success(w, sess.View())
}

// SessionClose ends the table session; unsent cart entries and unsaved edits
// are dropped.
func (h *Handler) SessionClose(w http.ResponseWriter, r *http.Request) {
	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return
	}
	response.Success(w, map[string]any{"closed": h.Sessions.Close(tableID)})
}

func (h *Handler) CartAdd(w http.ResponseWriter, r *http.Request) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	var payload cartAddPayload
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if payload.MenuItemID <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "menuItemId is required")
		return
	}
	_, err := sess.AddItem(payload.MenuItemID, payload.Selections)
	h.respond(w, r, sess, err)
}

func (h *Handler) CartIncrement(w http.ResponseWriter, r *http.Request) {
	h.cartEntryAction(w, r, (*session.Session).IncrementCart)
}

func (h *Handler) CartDecrement(w http.ResponseWriter, r *http.Request) {
	h.cartEntryAction(w, r, (*session.Session).DecrementCart)
}

func (h *Handler) cartEntryAction(w http.ResponseWriter, r *http.Request, action func(*session.Session, cart.Entry) error) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	var payload cartEntryPayload
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	h.respond(w, r, sess, action(sess, payload.entry()))
}

func (h *Handler) CartMemo(w http.ResponseWriter, r *http.Request) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	var payload cartMemoPayload
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	h.respond(w, r, sess, sess.SetCartMemo(payload.Entry.entry(), payload.Memo))
}

func (h *Handler) LineIncrement(w http.ResponseWriter, r *http.Request) {
	h.lineAction(w, r, (*session.Session).IncrementOrdered)
}

func (h *Handler) LineDecrement(w http.ResponseWriter, r *http.Request) {
	h.lineAction(w, r, (*session.Session).DecrementOrdered)
}

func (h *Handler) LineCancel(w http.ResponseWriter, r *http.Request) {
	h.lineAction(w, r, (*session.Session).CancelOrdered)
}

func (h *Handler) lineAction(w http.ResponseWriter, r *http.Request, action func(*session.Session, int64) error) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	lineID, ok := h.lineID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, sess, action(sess, lineID))
}

func (h *Handler) LineQuantity(w http.ResponseWriter, r *http.Request) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	lineID, ok := h.lineID(w, r)
	if !ok {
		return
	}
	var payload quantityPayload
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if payload.Quantity == nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "quantity is required")
		return
	}
	h.respond(w, r, sess, sess.SetOrderedQuantity(lineID, *payload.Quantity))
}

func (h *Handler) LineMemo(w http.ResponseWriter, r *http.Request) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	lineID, ok := h.lineID(w, r)
	if !ok {
		return
	}
	var payload memoPayload
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	h.respond(w, r, sess, sess.SetOrderedMemo(r.Context(), lineID, payload.Memo))
}

func (h *Handler) ChangesSave(w http.ResponseWriter, r *http.Request) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	h.respond(w, r, sess, sess.SaveChanges(r.Context()))
}

func (h *Handler) ChangesDiscard(w http.ResponseWriter, r *http.Request) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	sess.DiscardChanges()
	response.Success(w, sess.View())
}

func (h *Handler) SendToKitchen(w http.ResponseWriter, r *http.Request) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	res, err := sess.SendToKitchen(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, sendResult{
		OrderID:  res.OrderID,
		Created:  res.Created,
		Inserted: len(res.Inserted),
		Merged:   len(res.Sent) - len(res.Inserted),
		View:     sess.View(),
	})
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	paid, err := sess.CompletePayment(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, payResult{Order: paid, View: sess.View()})
}

func (h *Handler) ReceiptPrint(w http.ResponseWriter, r *http.Request) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	jobID, err := sess.PrintCustomerReceipt()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Accepted(w, map[string]any{"jobId": jobID})
}

func (h *Handler) ReceiptPDF(w http.ResponseWriter, r *http.Request) {
	sess := h.openSession(w, r)
	if sess == nil {
		return
	}
	receipt, err := sess.Receipt()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	buf, err := ticket.RenderReceiptPDF(receipt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.File(w, "application/pdf", fmt.Sprintf("receipt-%d.pdf", receipt.OrderID), buf.Bytes())
}
