package workshop

import (
	"maps"
	"time"

	"github.com/wilhg/workshop/pkg/counters"
)

// Invoice bills a service order. Amounts are in cents.
type Invoice struct {
	ID          uint64     `json:"id"`
	OrderID     uint64     `json:"order_id"`
	AmountCents int64      `json:"amount_cents"`
	IssuedAt    time.Time  `json:"issued_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

func (i Invoice) Clone() Invoice {
	if i.PaidAt != nil {
		at := *i.PaidAt
		i.PaidAt = &at
	}
	return i
}

// Ledger is the financial record of the workshop.
type Ledger struct {
	Invoices map[uint64]Invoice `json:"invoices"`
}

func NewLedger() *Ledger {
	return &Ledger{Invoices: make(map[uint64]Invoice)}
}

func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	out := &Ledger{Invoices: maps.Clone(l.Invoices)}
	for id, inv := range out.Invoices {
		out.Invoices[id] = inv.Clone()
	}
	return out
}

// Issue creates an invoice for an order.
func (l *Ledger) Issue(ids counters.IDSource, orderID uint64, amountCents int64, at time.Time) (Invoice, error) {
	if amountCents <= 0 {
		return Invoice{}, invalid("bad_amount", "amount must be > 0")
	}
	inv := Invoice{ID: ids.Next(counters.KindInvoice), OrderID: orderID, AmountCents: amountCents, IssuedAt: at}
	l.Invoices[inv.ID] = inv
	return inv, nil
}

// MarkPaid records the payment of an invoice.
func (l *Ledger) MarkPaid(id uint64, at time.Time) error {
	inv, ok := l.Invoices[id]
	if !ok {
		return notFound("invoice", id)
	}
	if inv.PaidAt != nil {
		return invalid("conflict", "invoice already paid")
	}
	inv.PaidAt = &at
	l.Invoices[id] = inv
	return nil
}

// Outstanding sums the unpaid invoices.
func (l *Ledger) Outstanding() int64 {
	var total int64
	for _, inv := range l.Invoices {
		if inv.PaidAt == nil {
			total += inv.AmountCents
		}
	}
	return total
}
