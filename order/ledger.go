package order

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Record is one completed order ready to be persisted.
type Record struct {
	Time   time.Time
	Items  []Item
	Total  float64
	Fields map[Field]string
}

// RecordFromDraft freezes a complete draft into a record.
func RecordFromDraft(d *Draft, at time.Time) Record {
	fields := make(map[Field]string, len(d.Fields))
	for f, v := range d.Fields {
		fields[f] = v.Value
	}
	return Record{
		Time:   at,
		Items:  append([]Item(nil), d.Items...),
		Total:  d.Total(),
		Fields: fields,
	}
}

// Ledger is the append-only, human-readable order store. Each order is one
// self-delimited block so the file can be scanned without a binary format.
type Ledger struct {
	path string
	mu   sync.Mutex
}

func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

const blockFooter = "=================================================="

// Append writes one order block. Blocks are never rewritten.
func (l *Ledger) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open order ledger")
	}
	defer f.Close()

	if _, err := f.WriteString(formatBlock(rec)); err != nil {
		return errors.Wrap(err, "write order block")
	}
	return nil
}

func formatBlock(rec Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n=== ORDER - %s ===\n", rec.Time.Format("2006-01-02 15:04:05"))
	b.WriteString("ITEMS:\n")
	for _, item := range rec.Items {
		fmt.Fprintf(&b, "- %dx %s: AED %.2f each = AED %.2f\n",
			item.Quantity, item.Name, item.UnitPrice, item.LineTotal())
	}
	fmt.Fprintf(&b, "TOTAL COST: AED %.2f\n", rec.Total)
	fmt.Fprintf(&b, "RFID: %s\n", rec.Fields[FieldRFID])
	fmt.Fprintf(&b, "Building: %s\n", rec.Fields[FieldBuilding])
	fmt.Fprintf(&b, "Phone: %s\n", rec.Fields[FieldPhone])
	special := rec.Fields[FieldSpecial]
	if special == "" {
		special = "None"
	}
	fmt.Fprintf(&b, "Special Request: %s\n", special)
	b.WriteString(blockFooter + "\n")
	return b.String()
}
