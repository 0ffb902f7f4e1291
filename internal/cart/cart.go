package cart

import (
	"strings"

	"tableside-pos/internal/order"
)

// Entry is a menu line that has not been sent to the kitchen yet.
type Entry = order.MenuLine

// Key is the identity of a cart entry. Two additions with equal keys collapse
// into one entry.
type Key struct {
	MenuItemID int64
	UnitPrice  float64
	Options    string
	Memo       string
}

func KeyOf(e Entry) Key {
	return Key{MenuItemID: e.MenuItemID, UnitPrice: e.UnitPrice, Options: e.Options, Memo: e.Memo}
}

// Cart is owned by a single table session and is not safe for concurrent use.
type Cart struct {
	entries []Entry
}

func New() *Cart {
	return &Cart{}
}

// Add puts one plain unit of line into the cart, merging with an existing
// entry that has no options and no memo.
func (c *Cart) Add(line order.MenuLine) Entry {
	line.Options = ""
	line.Memo = ""
	return c.addOne(line)
}

// AddWithOptions adds one unit of line carrying the given options descriptor
// at finalPrice.
func (c *Cart) AddWithOptions(line order.MenuLine, descriptor string, finalPrice float64) Entry {
	line.Options = descriptor
	line.UnitPrice = finalPrice
	line.Memo = ""
	return c.addOne(line)
}

func (c *Cart) addOne(line order.MenuLine) Entry {
	if idx := c.find(KeyOf(line)); idx >= 0 {
		c.entries[idx].Quantity++
		return c.entries[idx]
	}
	line.Quantity = 1
	c.entries = append(c.entries, line)
	return line
}

func (c *Cart) Increment(entry Entry) bool {
	idx := c.find(KeyOf(entry))
	if idx < 0 {
		return false
	}
	c.entries[idx].Quantity++
	return true
}

// Decrement removes one unit; the entry is dropped when its last unit goes.
func (c *Cart) Decrement(entry Entry) bool {
	idx := c.find(KeyOf(entry))
	if idx < 0 {
		return false
	}
	if c.entries[idx].Quantity > 1 {
		c.entries[idx].Quantity--
		return true
	}
	c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
	return true
}

// SetMemo replaces the memo of the matching entry. When the new identity
// already exists the two entries are merged into the earlier one.
func (c *Cart) SetMemo(entry Entry, memo string) bool {
	idx := c.find(KeyOf(entry))
	if idx < 0 {
		return false
	}
	memo = strings.TrimSpace(memo)
	updated := c.entries[idx]
	updated.Memo = memo
	if other := c.find(KeyOf(updated)); other >= 0 && other != idx {
		c.entries[other].Quantity += updated.Quantity
		c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
		return true
	}
	c.entries[idx] = updated
	return true
}

func (c *Cart) Clear() {
	c.entries = nil
}

// Entries returns a copy in insertion order.
func (c *Cart) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Cart) Len() int {
	return len(c.entries)
}

func (c *Cart) find(key Key) int {
	for i, e := range c.entries {
		if KeyOf(e) == key {
			return i
		}
	}
	return -1
}
