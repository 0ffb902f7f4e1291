package menu

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"tableside-pos/internal/order"
)

var (
	ErrSelectionInvalid = errors.New("invalid option selection")
	ErrItemNotFound     = errors.New("menu item not found")
)

type Option struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ModifierGroup is a set of options a guest picks from, e.g. "Size" or
// "Toppings". MaxSelection below 1 is treated as 1.
type ModifierGroup struct {
	Title        string   `json:"title"`
	Required     bool     `json:"required"`
	MaxSelection int      `json:"maxSelection"`
	Options      []Option `json:"options"`
}

func (g ModifierGroup) limit() int {
	if g.MaxSelection < 1 {
		return 1
	}
	return g.MaxSelection
}

func (g ModifierGroup) option(name string) (Option, bool) {
	for _, opt := range g.Options {
		if opt.Name == name {
			return opt, true
		}
	}
	return Option{}, false
}

type Item struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    float64         `json:"price"`
	Category string          `json:"category"`
	Station  order.Station   `json:"station"`
	Groups   []ModifierGroup `json:"modifierGroups,omitempty"`
}

// Line snapshots the item as a quantity-one menu line at its base price.
func (i Item) Line() order.MenuLine {
	return order.MenuLine{
		MenuItemID: i.ID,
		Name:       i.Name,
		UnitPrice:  i.Price,
		Quantity:   1,
		Station:    i.Station,
	}
}

// Selection maps a group title to the chosen option names.
type Selection map[string][]string

// Resolve validates the selection against the item's groups and returns the
// options descriptor and the final unit price. Descriptor lines follow the
// group order of the item, then the option order within each group.
func (i Item) Resolve(sel Selection) (string, float64, error) {
	for title := range sel {
		if !i.hasGroup(title) {
			return "", 0, fmt.Errorf("%w: unknown group %q", ErrSelectionInvalid, title)
		}
	}

	price := decimal.NewFromFloat(i.Price)
	var lines []string
	for _, group := range i.Groups {
		chosen := dedupe(sel[group.Title])
		if group.Required && len(chosen) == 0 {
			return "", 0, fmt.Errorf("%w: %s is required", ErrSelectionInvalid, group.Title)
		}
		if len(chosen) > group.limit() {
			return "", 0, fmt.Errorf("%w: at most %d options for %s", ErrSelectionInvalid, group.limit(), group.Title)
		}
		picked := make(map[string]bool, len(chosen))
		for _, name := range chosen {
			if _, ok := group.option(name); !ok {
				return "", 0, fmt.Errorf("%w: unknown option %q in %s", ErrSelectionInvalid, name, group.Title)
			}
			picked[name] = true
		}
		for _, opt := range group.Options {
			if !picked[opt.Name] {
				continue
			}
			price = price.Add(decimal.NewFromFloat(opt.Price))
			lines = append(lines, group.Title+": "+opt.Name)
		}
	}
	return strings.Join(lines, "\n"), price.Round(order.PricePlaces).InexactFloat64(), nil
}

func (i Item) hasGroup(title string) bool {
	for _, g := range i.Groups {
		if g.Title == title {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

type Catalog struct {
	items []Item
	byID  map[int64]int
}

func NewCatalog(items []Item) (*Catalog, error) {
	c := &Catalog{byID: make(map[int64]int, len(items))}
	for _, item := range items {
		if item.ID <= 0 {
			return nil, fmt.Errorf("menu item %q: id must be positive", item.Name)
		}
		if _, dup := c.byID[item.ID]; dup {
			return nil, fmt.Errorf("menu item %d: duplicate id", item.ID)
		}
		if item.Price < 0 {
			return nil, fmt.Errorf("menu item %d: negative price", item.ID)
		}
		item.Station = order.ParseStation(string(item.Station))
		c.byID[item.ID] = len(c.items)
		c.items = append(c.items, item)
	}
	return c, nil
}

// LoadFile reads a JSON array of items.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode menu: %w", err)
	}
	return NewCatalog(items)
}

func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Catalog) Item(id int64) (Item, error) {
	idx, ok := c.byID[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return c.items[idx], nil
}

// Default is the built-in menu used when no menu file is configured.
func Default() *Catalog {
	c, _ := NewCatalog([]Item{
		{ID: 1, Name: "Miso Soup", Price: 4.50, Category: "Starters", Station: order.StationKitchen},
		{ID: 2, Name: "Edamame", Price: 5.00, Category: "Starters", Station: order.StationKitchen},
		{ID: 3, Name: "Salmon Roll", Price: 12.99, Category: "Rolls", Station: order.StationSushiBar},
		{ID: 4, Name: "Spicy Tuna Roll", Price: 13.99, Category: "Rolls", Station: order.StationSushiBar,
			Groups: []ModifierGroup{{Title: "Spice", Required: true, MaxSelection: 1, Options: []Option{
				{Name: "Mild", Price: 0}, {Name: "Hot", Price: 0}, {Name: "Extra Hot", Price: 0.50},
			}}}},
		{ID: 5, Name: "Chicken Teriyaki", Price: 18.50, Category: "Mains", Station: order.StationKitchen,
			Groups: []ModifierGroup{{Title: "Side", Required: false, MaxSelection: 2, Options: []Option{
				{Name: "Rice", Price: 0}, {Name: "Salad", Price: 2.00}, {Name: "Noodles", Price: 3.00},
			}}}},
		{ID: 6, Name: "Bento Box", Price: 24.00, Category: "Mains", Station: order.StationBoth},
	})
	return c
}
