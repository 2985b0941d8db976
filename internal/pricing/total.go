package pricing

// Line is a priced quantity.
type Line struct {
	UnitPrice float64
	Quantity  int
}

// Item is an order item awaiting a price.
type Item struct {
	ItemRef
	Quantity int
}

// ComputeTotal sums UnitPrice*Quantity over lines. Amounts are float64 and no rounding is
// applied, so totals carry binary floating point error (0.1*3 != 0.3).
func ComputeTotal(lines []Line) float64 {
	var total float64
	for _, l := range lines {
		total += l.UnitPrice * float64(l.Quantity)
	}
	return total
}

// Lines pairs each item with its resolved unit price.
func Lines(prices Prices, items []Item) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{UnitPrice: prices.UnitPrice(it.ItemRef), Quantity: it.Quantity})
	}
	return lines
}

// Refs returns the references of items.
func Refs(items []Item) []ItemRef {
	refs := make([]ItemRef, 0, len(items))
	for _, it := range items {
		refs = append(refs, it.ItemRef)
	}
	return refs
}
