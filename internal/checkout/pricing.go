package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var cent = decimal.New(1, -2)

// PricedLine is a line with the unit price that will be snapshotted on the order.
type PricedLine struct {
	Line
	Price decimal.Decimal
}

// Total is the charged line value.
func (l PricedLine) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// PricedGroup is a vendor group with its discount applied.
type PricedGroup struct {
	VendorID uuid.UUID
	Lines    []PricedLine
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Price applies rate to the group. The discount is round(subtotal*rate, 2) and
// is spread over unit prices so the lines always sum to Total. Each unit first
// gets its truncated share; whole cents per unit then go to the last line that
// can take them, and the few cents left over split that line into two priced
// rows one cent apart. A unit price never drops below one cent, so a discount
// larger than that floor is capped.
func Price(group VendorGroup, rate decimal.Decimal) PricedGroup {
	out := PricedGroup{
		VendorID: group.VendorID,
		Subtotal: group.Subtotal(),
		Discount: decimal.Zero,
	}
	if !rate.IsPositive() || len(group.Lines) == 0 {
		out.Lines = make([]PricedLine, len(group.Lines))
		for i, line := range group.Lines {
			out.Lines[i] = PricedLine{Line: line, Price: line.UnitPrice}
		}
		out.Total = out.Subtotal
		return out
	}

	target := out.Subtotal.Mul(rate).Round(2)
	unitDiscounts := make([]decimal.Decimal, len(group.Lines))
	allocated := decimal.Zero
	for i, line := range group.Lines {
		unitDiscounts[i] = line.UnitPrice.Mul(rate).Truncate(2)
		allocated = allocated.Add(unitDiscounts[i].Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	// split[i] units of line i take one cent more than the rest.
	split := make([]int, len(group.Lines))
	remaining := target.Sub(allocated).Div(cent).IntPart()
	for i := len(group.Lines) - 1; i >= 0 && remaining > 0; i-- {
		line := group.Lines[i]
		qty := int64(line.Quantity)
		headroom := line.UnitPrice.Sub(unitDiscounts[i]).Div(cent).IntPart() - 1
		if headroom <= 0 {
			continue
		}
		extra := min(remaining/qty, headroom)
		unitDiscounts[i] = unitDiscounts[i].Add(cent.Mul(decimal.NewFromInt(extra)))
		remaining -= extra * qty
		if remaining > 0 && remaining < qty && extra < headroom {
			split[i] = int(remaining)
			remaining = 0
		}
	}

	out.Lines = make([]PricedLine, 0, len(group.Lines)+1)
	total := decimal.Zero
	for i, line := range group.Lines {
		price := line.UnitPrice.Sub(unitDiscounts[i])
		pieces := []PricedLine{{Line: line, Price: price}}
		if n := split[i]; n > 0 {
			full, cheaper := line, line
			full.Quantity = line.Quantity - n
			cheaper.Quantity = n
			pieces = []PricedLine{{Line: full, Price: price}, {Line: cheaper, Price: price.Sub(cent)}}
		}
		for _, piece := range pieces {
			out.Lines = append(out.Lines, piece)
			total = total.Add(piece.Total())
		}
	}
	out.Total = total
	out.Discount = out.Subtotal.Sub(total)
	return out
}
