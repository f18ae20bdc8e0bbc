package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one product and quantity entering checkout.
type Line struct {
	ProductID   uuid.UUID
	ProductName string
	VendorID    uuid.UUID
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Subtotal is the undiscounted line value.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// VendorGroup holds the lines that become a single vendor's order.
type VendorGroup struct {
	VendorID uuid.UUID
	Lines    []Line
}

// Subtotal sums the group's lines.
func (g VendorGroup) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range g.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// GroupByVendor splits lines per vendor. Groups and the lines inside them keep
// the order in which they first appear.
func GroupByVendor(lines []Line) []VendorGroup {
	index := make(map[uuid.UUID]int, len(lines))
	groups := make([]VendorGroup, 0)
	for _, line := range lines {
		i, ok := index[line.VendorID]
		if !ok {
			i = len(groups)
			index[line.VendorID] = i
			groups = append(groups, VendorGroup{VendorID: line.VendorID})
		}
		groups[i].Lines = append(groups[i].Lines, line)
	}
	return groups
}
