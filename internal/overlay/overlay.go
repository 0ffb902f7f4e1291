package overlay

import (
	"sort"

	"tableside-pos/internal/order"
)

// Edit is a staged change to a persisted line: either a reduced quantity or a
// cancellation.
type Edit struct {
	LineID   int64 `json:"lineId"`
	Quantity int   `json:"quantity"`
	Cancel   bool  `json:"cancel"`
}

// Apply returns line as it looks after the edit.
func (e Edit) Apply(line order.Line) order.Line {
	if e.Cancel {
		line.Status = order.LineCanceled
		return line
	}
	line.Quantity = e.Quantity
	return line
}

// Overlay holds the unsaved edits of one table session. It is not safe for
// concurrent use.
type Overlay struct {
	edits map[int64]Edit
}

func New() *Overlay {
	return &Overlay{edits: make(map[int64]Edit)}
}

func (o *Overlay) StageCancel(line order.Line) error {
	if !line.Active() {
		return order.ErrOrderNotEditable
	}
	o.edits[line.ID] = Edit{LineID: line.ID, Cancel: true}
	return nil
}

// StageQuantity stages a reduced quantity. Zero stages a cancel; the persisted
// quantity drops any staged edit.
func (o *Overlay) StageQuantity(line order.Line, quantity int) error {
	if !line.Active() {
		return order.ErrOrderNotEditable
	}
	if quantity < 0 || quantity > line.Quantity {
		return order.ErrInvalidQuantity
	}
	switch quantity {
	case 0:
		return o.StageCancel(line)
	case line.Quantity:
		delete(o.edits, line.ID)
	default:
		o.edits[line.ID] = Edit{LineID: line.ID, Quantity: quantity}
	}
	return nil
}

func (o *Overlay) Effective(line order.Line) order.Line {
	if edit, ok := o.edits[line.ID]; ok {
		return edit.Apply(line)
	}
	return line
}

// Apply maps Effective over lines, keeping their order.
func (o *Overlay) Apply(lines []order.Line) []order.Line {
	out := make([]order.Line, len(lines))
	for i, line := range lines {
		out[i] = o.Effective(line)
	}
	return out
}

func (o *Overlay) Has(lineID int64) bool {
	_, ok := o.edits[lineID]
	return ok
}

// Edits returns the staged edits ordered by line id.
func (o *Overlay) Edits() []Edit {
	out := make([]Edit, 0, len(o.edits))
	for _, e := range o.edits {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineID < out[j].LineID })
	return out
}

// Rebase moves a staged edit onto a line that just grew by added units. A
// staged quantity keeps its reduction relative to the new total; a staged
// cancel is dropped so freshly sent units are never cancelled unseen.
func (o *Overlay) Rebase(lineID int64, added int) {
	edit, ok := o.edits[lineID]
	if !ok || added <= 0 {
		return
	}
	if edit.Cancel {
		delete(o.edits, lineID)
		return
	}
	edit.Quantity += added
	o.edits[lineID] = edit
}

func (o *Overlay) Len() int {
	return len(o.edits)
}

func (o *Overlay) Discard() {
	o.edits = make(map[int64]Edit)
}

// Prune drops edits that no longer apply to the given persisted lines: the
// line is gone or inactive, or the edit would not change it.
func (o *Overlay) Prune(lines []order.Line) {
	byID := make(map[int64]order.Line, len(lines))
	for _, line := range lines {
		byID[line.ID] = line
	}
	for id, edit := range o.edits {
		line, ok := byID[id]
		if !ok || !line.Active() {
			delete(o.edits, id)
			continue
		}
		if !edit.Cancel && edit.Quantity >= line.Quantity {
			delete(o.edits, id)
		}
	}
}
