package domain

import (
	"fmt"
	"strings"
)

// Pair identifies a conversion direction. It doubles as the route of a
// conversion and the pair an alert watches.
type Pair uint8

const (
	// PairEURBRL converts euros into reais.
	PairEURBRL Pair = iota + 1
	// PairBRLEUR converts reais into euros.
	PairBRLEUR
)

// Pairs lists every supported pair.
var Pairs = []Pair{PairEURBRL, PairBRLEUR}

// String returns the wire name of the pair.
func (p Pair) String() string {
	switch p {
	case PairEURBRL:
		return "eurbrl"
	case PairBRLEUR:
		return "brleur"
	default:
		return fmt.Sprintf("pair(%d)", uint8(p))
	}
}

// Source returns the ISO code of the currency being sold.
func (p Pair) Source() string {
	if p == PairBRLEUR {
		return "BRL"
	}
	return "EUR"
}

// Target returns the ISO code of the currency being bought.
func (p Pair) Target() string {
	if p == PairBRLEUR {
		return "EUR"
	}
	return "BRL"
}

// Valid reports whether p is one of the declared pairs.
func (p Pair) Valid() bool {
	return p == PairEURBRL || p == PairBRLEUR
}

// ParsePair maps a wire name onto a Pair.
func ParsePair(s string) (Pair, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eurbrl":
		return PairEURBRL, nil
	case "brleur":
		return PairBRLEUR, nil
	default:
		return 0, fmt.Errorf("unknown pair %q", s)
	}
}
