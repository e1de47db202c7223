// Package domain defines core data structures used throughout the
// portfolio engine.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Pair is an instrument: a base asset quoted against a quote asset.
type Pair struct {
	// Base asset symbol, e.g. "BTC".
	Base string
	// Quote asset symbol, e.g. "USDT".
	Quote string
}

// String returns the canonical symbol form used as map key and on the
// wire, e.g. "BTC/USDT".
func (p Pair) String() string {
	return fmt.Sprintf("%s/%s", p.Base, p.Quote)
}

// ParsePair parses a "BASE/QUOTE" symbol.
func ParsePair(symbol string) (Pair, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, errors.Errorf("invalid instrument symbol %q", symbol)
	}
	return Pair{Base: parts[0], Quote: parts[1]}, nil
}
