package domain

import "fmt"

// BasketType decides how several underlyings collapse into one reference value.
type BasketType string

const (
	BasketSingle          BasketType = "single"
	BasketWorstOf         BasketType = "worst_of"
	BasketBestOf          BasketType = "best_of"
	BasketAverage         BasketType = "average"
	BasketEquallyWeighted BasketType = "equally_weighted"
)

// Valid reports whether t is a known basket type.
func (t BasketType) Valid() bool {
	switch t {
	case BasketSingle, BasketWorstOf, BasketBestOf, BasketAverage, BasketEquallyWeighted:
		return true
	}
	return false
}

// Averaging reports whether the basket has no single driving underlying.
func (t BasketType) Averaging() bool {
	return t == BasketAverage || t == BasketEquallyWeighted
}

// Basket is the ordered set of underlyings of one product.
type Basket struct {
	Type        BasketType    `json:"basket_type"`
	Underlyings []*Underlying `json:"underlyings"`
}

// Validate enforces the basket invariants.
func (b *Basket) Validate() error {
	if b == nil {
		return &InvalidBasketError{Reason: "basket is missing"}
	}
	invalid := func(reason string) error {
		return &InvalidBasketError{BasketType: b.Type, Count: len(b.Underlyings), Reason: reason}
	}
	if !b.Type.Valid() {
		return invalid(fmt.Sprintf("unknown basket type %q", b.Type))
	}
	if len(b.Underlyings) == 0 {
		return invalid("basket has no underlyings")
	}
	if b.Type == BasketSingle && len(b.Underlyings) != 1 {
		return invalid("single basket requires exactly one underlying")
	}
	seen := make(map[string]bool, len(b.Underlyings))
	for i, u := range b.Underlyings {
		if u == nil {
			return invalid(fmt.Sprintf("underlying %d is nil", i))
		}
		if u.InitialPrice <= 0 {
			return invalid(fmt.Sprintf("underlying %s has non-positive initial price", u.Symbol))
		}
		if u.CurrentPrice < 0 {
			return invalid(fmt.Sprintf("underlying %s has negative current price", u.Symbol))
		}
		if seen[u.Symbol] {
			return invalid(fmt.Sprintf("duplicate underlying %s", u.Symbol))
		}
		seen[u.Symbol] = true
	}
	return nil
}

// Find returns the underlying with the given symbol.
func (b *Basket) Find(symbol string) (*Underlying, bool) {
	for _, u := range b.Underlyings {
		if u != nil && u.Symbol == symbol {
			return u, true
		}
	}
	return nil, false
}

// Clone deep-copies the basket.
func (b *Basket) Clone() *Basket {
	if b == nil {
		return nil
	}
	c := &Basket{Type: b.Type, Underlyings: make([]*Underlying, 0, len(b.Underlyings))}
	for _, u := range b.Underlyings {
		if u == nil {
			c.Underlyings = append(c.Underlyings, nil)
			continue
		}
		c.Underlyings = append(c.Underlyings, u.Clone())
	}
	return c
}
