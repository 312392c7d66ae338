package order

import (
	"fmt"
	"strings"
)

// Item is one confirmed menu item in a draft. Items are keyed by name;
// adding an already-present item merges quantities.
type Item struct {
	Name      string
	UnitPrice float64
	Quantity  int
}

func (i Item) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// FieldValue is a collected field and whether it passed validation.
type FieldValue struct {
	Value     string
	Validated bool
}

// Draft accumulates a single pending transaction. Items must be non-empty
// before any field collection begins; the draft may complete only when every
// required field is validated.
type Draft struct {
	Items  []Item
	Fields map[Field]FieldValue
}

func NewDraft() *Draft {
	return &Draft{Fields: make(map[Field]FieldValue)}
}

// Clone returns a deep copy. The controller mutates a working copy per turn
// and only installs it on the session when the turn commits.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	out := &Draft{
		Items:  append([]Item(nil), d.Items...),
		Fields: make(map[Field]FieldValue, len(d.Fields)),
	}
	for f, v := range d.Fields {
		out.Fields[f] = v
	}
	return out
}

// AddItem records a confirmed item, merging quantity if the name is already
// present.
func (d *Draft) AddItem(name string, unitPrice float64, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	for i := range d.Items {
		if strings.EqualFold(d.Items[i].Name, name) {
			d.Items[i].Quantity += quantity
			return
		}
	}
	d.Items = append(d.Items, Item{Name: name, UnitPrice: unitPrice, Quantity: quantity})
}

// Total is the draft's full price.
func (d *Draft) Total() float64 {
	var total float64
	for _, item := range d.Items {
		total += item.LineTotal()
	}
	return total
}

// SetField stores a validated field value. Re-submitting the same field
// overwrites in place; the map never holds duplicates.
func (d *Draft) SetField(f Field, value string) {
	d.Fields[f] = FieldValue{Value: value, Validated: true}
}

// FirstIncomplete returns the first required field that is not yet
// validated, in collection order.
func (d *Draft) FirstIncomplete() (Field, bool) {
	for _, f := range CollectionOrder {
		if !d.Fields[f].Validated {
			return f, true
		}
	}
	return "", false
}

// Complete reports whether every required field has been validated.
func (d *Draft) Complete() bool {
	_, missing := d.FirstIncomplete()
	return !missing && len(d.Items) > 0
}

// Summary renders the items with quantities, line totals and the order
// total, one item per line.
func (d *Draft) Summary() string {
	var b strings.Builder
	for _, item := range d.Items {
		fmt.Fprintf(&b, "- %dx %s: AED %.2f each = AED %.2f\n",
			item.Quantity, item.Name, item.UnitPrice, item.LineTotal())
	}
	fmt.Fprintf(&b, "Total: AED %.2f", d.Total())
	return b.String()
}

// ItemsText renders the items in running text, e.g. "2x Pepperoni, Margherita".
func (d *Draft) ItemsText() string {
	parts := make([]string, 0, len(d.Items))
	for _, item := range d.Items {
		if item.Quantity > 1 {
			parts = append(parts, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
		} else {
			parts = append(parts, item.Name)
		}
	}
	return strings.Join(parts, ", ")
}
