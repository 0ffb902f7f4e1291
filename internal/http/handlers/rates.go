package handlers

import (
	"net/http"
	"strings"

	"tableside-pos/pkg/response"
)

// Rates travel over the API in percent; the catalog stores fractions.
type ratesView struct {
	TaxStates []taxStateView `json:"taxStates"`
	Gratuity  []float64      `json:"gratuityPercents"`
	Discount  []float64      `json:"discountPercents"`
	Selected  selectionView  `json:"selected"`
}

type taxStateView struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

type selectionView struct {
	TaxState        string  `json:"taxState"`
	TaxPercent      float64 `json:"taxPercent"`
	GratuityPercent float64 `json:"gratuityPercent"`
	DiscountPercent float64 `json:"discountPercent"`
}

type ratesSelectPayload struct {
	TaxState        *string  `json:"taxState"`
	GratuityPercent *float64 `json:"gratuityPercent"`
	DiscountPercent *float64 `json:"discountPercent"`
}

type customTaxPayload struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

type customRatePayload struct {
	Percent float64 `json:"percent"`
}

func toPercents(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * 100
	}
	return out
}

func (h *Handler) ratesView() ratesView {
	opts := h.Rates.Options()
	sel := h.Rates.Selection()
	taxes := make([]taxStateView, 0, len(opts.TaxStates))
	for _, t := range opts.TaxStates {
		taxes = append(taxes, taxStateView{Name: t.Name, Percent: t.Rate * 100})
	}
	return ratesView{
		TaxStates: taxes,
		Gratuity:  toPercents(opts.Gratuity),
		Discount:  toPercents(opts.Discount),
		Selected: selectionView{
			TaxState:        sel.Tax.Name,
			TaxPercent:      sel.Tax.Rate * 100,
			GratuityPercent: sel.Gratuity * 100,
			DiscountPercent: sel.Discount * 100,
		},
	}
}

func (h *Handler) RatesGet(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.ratesView())
}

// RatesSelect changes any of the three selections. Every open session is
// re-priced through the catalog's change listeners.
func (h *Handler) RatesSelect(w http.ResponseWriter, r *http.Request) {
	var payload ratesSelectPayload
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if payload.TaxState != nil && !h.Rates.SelectTax(strings.TrimSpace(*payload.TaxState)) {
		response.Error(w, http.StatusNotFound, "TAX_STATE_NOT_FOUND", "Tax state not found")
		return
	}
	if payload.GratuityPercent != nil {
		if err := h.Rates.SelectGratuity(*payload.GratuityPercent / 100); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if payload.DiscountPercent != nil {
		if err := h.Rates.SelectDiscount(*payload.DiscountPercent / 100); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	response.Success(w, h.ratesView())
}

func (h *Handler) RatesAddTax(w http.ResponseWriter, r *http.Request) {
	var payload customTaxPayload
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
		return
	}
	if _, err := h.Rates.AddCustomTax(payload.Name, payload.Percent); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, h.ratesView())
}

func (h *Handler) RatesAddGratuity(w http.ResponseWriter, r *http.Request) {
	h.addCustomRate(w, r, h.Rates.AddCustomGratuity)
}

func (h *Handler) RatesAddDiscount(w http.ResponseWriter, r *http.Request) {
	h.addCustomRate(w, r, h.Rates.AddCustomDiscount)
}

func (h *Handler) addCustomRate(w http.ResponseWriter, r *http.Request, add func(float64) (float64, error)) {
	var payload customRatePayload
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if _, err := add(payload.Percent); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, h.ratesView())
}
