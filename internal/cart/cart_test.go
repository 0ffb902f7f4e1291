package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside-pos/internal/order"
)

func salmon() order.MenuLine {
	return order.MenuLine{MenuItemID: 7, Name: "Salmon Roll", UnitPrice: 12.99, Station: order.StationSushiBar}
}

func TestAddMergesBareEntries(t *testing.T) {
	c := New()
	c.Add(salmon())
	c.Add(salmon())

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Quantity)
}

func TestAddIgnoresIncomingOptionsAndMemo(t *testing.T) {
	c := New()
	line := salmon()
	line.Memo = "no wasabi"
	line.Options = "Size: Large"
	c.Add(line)
	c.Add(salmon())

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Memo)
	assert.Empty(t, entries[0].Options)
	assert.Equal(t, 2, entries[0].Quantity)
}

func TestDifferentMemoKeepsEntriesDistinct(t *testing.T) {
	c := New()
	first := c.Add(salmon())
	c.Add(salmon())
	require.True(t, c.SetMemo(first, "no wasabi"))
	c.Add(salmon())

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "no wasabi", entries[0].Memo)
	assert.Equal(t, 2, entries[0].Quantity)
	assert.Empty(t, entries[1].Memo)
	assert.Equal(t, 1, entries[1].Quantity)
}

func TestSetMemoCollapsesIntoMatchingEntry(t *testing.T) {
	c := New()
	plain := c.Add(salmon())
	require.True(t, c.SetMemo(plain, "spicy"))
	other := c.Add(salmon())
	require.Equal(t, 2, c.Len())

	require.True(t, c.SetMemo(other, "spicy"))

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "spicy", entries[0].Memo)
	assert.Equal(t, 2, entries[0].Quantity)
}

func TestAddWithOptions(t *testing.T) {
	c := New()
	c.AddWithOptions(salmon(), "Size: Large", 14.99)
	c.AddWithOptions(salmon(), "Size: Large", 14.99)
	c.AddWithOptions(salmon(), "Size: Small", 12.99)
	c.Add(salmon())

	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, 2, entries[0].Quantity)
	assert.Equal(t, 14.99, entries[0].UnitPrice)
	assert.Equal(t, "Size: Small", entries[1].Options)
	assert.Empty(t, entries[2].Options)
}

func TestIncrementDecrement(t *testing.T) {
	tests := []struct {
		name      string
		ops       func(c *Cart, e Entry)
		wantLen   int
		wantCount int
	}{
		{"increment", func(c *Cart, e Entry) { c.Increment(e) }, 1, 2},
		{"decrement removes last unit", func(c *Cart, e Entry) { c.Decrement(e) }, 0, 0},
		{"increment then decrement", func(c *Cart, e Entry) { c.Increment(e); c.Decrement(e) }, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			e := c.Add(salmon())
			tt.ops(c, e)
			require.Equal(t, tt.wantLen, c.Len())
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantCount, c.Entries()[0].Quantity)
			}
		})
	}
}

func TestUnknownEntryIsReported(t *testing.T) {
	c := New()
	c.Add(salmon())
	ghost := salmon()
	ghost.UnitPrice = 1
	assert.False(t, c.Increment(ghost))
	assert.False(t, c.Decrement(ghost))
	assert.False(t, c.SetMemo(ghost, "x"))
}

func TestClearAndEntriesCopy(t *testing.T) {
	c := New()
	c.Add(salmon())
	entries := c.Entries()
	entries[0].Quantity = 99
	assert.Equal(t, 1, c.Entries()[0].Quantity)

	c.Clear()
	assert.Zero(t, c.Len())
}
