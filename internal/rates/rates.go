package rates

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrRateOutOfRange = errors.New("rate must be between 0 and 100 percent")

// TaxState is a named sales-tax rate, e.g. {"NY", 0.08875}.
type TaxState struct {
	Name string  `json:"name"`
	Rate float64 `json:"rate"`
}

// Selection is the set of rates a session prices with. Rates are fractions in [0,1].
type Selection struct {
	Tax      TaxState `json:"tax"`
	Gratuity float64  `json:"gratuityRate"`
	Discount float64  `json:"discountRate"`
}

type Options struct {
	TaxStates []TaxState `json:"taxStates"`
	Gratuity  []float64  `json:"gratuityOptions"`
	Discount  []float64  `json:"discountOptions"`
}

// Catalog holds the selectable rate lists and the current default selection.
// Sessions read a Selection snapshot at computation time; they never write
// back through it.
type Catalog struct {
	mu        sync.RWMutex
	options   Options
	selection Selection
	listeners []func(Selection)
}

func DefaultOptions() Options {
	return Options{
		TaxStates: []TaxState{
			{Name: "NY", Rate: 0.08875},
			{Name: "CA", Rate: 0.0725},
			{Name: "TX", Rate: 0.0625},
			{Name: "None", Rate: 0},
		},
		Gratuity: []float64{0, 0.15, 0.18, 0.20},
		Discount: []float64{0, 0.05, 0.10, 0.15, 0.20},
	}
}

func NewCatalog(options Options) *Catalog {
	c := &Catalog{options: cloneOptions(options)}
	if len(options.TaxStates) > 0 {
		c.selection.Tax = options.TaxStates[0]
	}
	if len(options.Gratuity) > 0 {
		c.selection.Gratuity = options.Gratuity[0]
	}
	if len(options.Discount) > 0 {
		c.selection.Discount = options.Discount[0]
	}
	return c
}

func (c *Catalog) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneOptions(c.options)
}

func (c *Catalog) Selection() Selection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selection
}

// OnChange registers fn to run after every selection change.
func (c *Catalog) OnChange(fn func(Selection)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Catalog) SelectTax(name string) bool {
	c.mu.Lock()
	var found *TaxState
	for i := range c.options.TaxStates {
		if strings.EqualFold(c.options.TaxStates[i].Name, name) {
			found = &c.options.TaxStates[i]
			break
		}
	}
	if found == nil {
		c.mu.Unlock()
		return false
	}
	c.selection.Tax = *found
	c.mu.Unlock()
	c.notify()
	return true
}

func (c *Catalog) SelectGratuity(rate float64) error {
	if !inRange(rate) {
		return ErrRateOutOfRange
	}
	c.mu.Lock()
	c.selection.Gratuity = rate
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Catalog) SelectDiscount(rate float64) error {
	if !inRange(rate) {
		return ErrRateOutOfRange
	}
	c.mu.Lock()
	c.selection.Discount = rate
	c.mu.Unlock()
	c.notify()
	return nil
}

// AddCustomTax appends a tax state given in percent and selects it.
func (c *Catalog) AddCustomTax(name string, percent float64) (TaxState, error) {
	rate := percent / 100
	if !inRange(rate) {
		return TaxState{}, ErrRateOutOfRange
	}
	state := TaxState{Name: strings.TrimSpace(name), Rate: rate}
	c.mu.Lock()
	exists := false
	for _, ts := range c.options.TaxStates {
		if ts == state {
			exists = true
			break
		}
	}
	if !exists {
		c.options.TaxStates = append(c.options.TaxStates, state)
	}
	c.selection.Tax = state
	c.mu.Unlock()
	c.notify()
	return state, nil
}

// AddCustomGratuity adds a rate given in percent, re-sorts the list and selects it.
func (c *Catalog) AddCustomGratuity(percent float64) (float64, error) {
	rate := percent / 100
	if !inRange(rate) {
		return 0, ErrRateOutOfRange
	}
	c.mu.Lock()
	c.options.Gratuity = insertSorted(c.options.Gratuity, rate)
	c.selection.Gratuity = rate
	c.mu.Unlock()
	c.notify()
	return rate, nil
}

func (c *Catalog) AddCustomDiscount(percent float64) (float64, error) {
	rate := percent / 100
	if !inRange(rate) {
		return 0, ErrRateOutOfRange
	}
	c.mu.Lock()
	c.options.Discount = insertSorted(c.options.Discount, rate)
	c.selection.Discount = rate
	c.mu.Unlock()
	c.notify()
	return rate, nil
}

func (c *Catalog) notify() {
	c.mu.RLock()
	selection := c.selection
	listeners := append([]func(Selection){}, c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(selection)
	}
}

func insertSorted(values []float64, value float64) []float64 {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	out := append(append([]float64{}, values...), value)
	sort.Float64s(out)
	return out
}

func inRange(rate float64) bool {
	return rate >= 0 && rate <= 1
}

func cloneOptions(o Options) Options {
	return Options{
		TaxStates: append([]TaxState{}, o.TaxStates...),
		Gratuity:  append([]float64{}, o.Gratuity...),
		Discount:  append([]float64{}, o.Discount...),
	}
}
