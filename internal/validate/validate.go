// Package validate rejects malformed amounts, symbols, thresholds and
// allocation maps before any strategy computation runs. Every function is
// total: each input maps to either a normalized value or a *ValidationError,
// never a panic, including for NaN and Inf.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Default bounds, overridable per call site.
const (
	MinAmount    = 0.01
	MaxAmount    = 1_000_000.00
	MinSymbols   = 1
	MaxSymbols   = 50
	MaxAllocSize = 100

	// AllocationTolerance is the permitted deviation of an allocation map's
	// fraction sum from 1.0.
	AllocationTolerance = 0.001
)

var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// ValidationError names the offending field and a human-readable reason.
// It is always recoverable by correcting input and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func failf(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Amount validates a dollar amount against [min, max] and returns it rounded
// to cents.
func Amount(field string, amount, min, max float64) (decimal.Decimal, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return decimal.Zero, failf(field, "must be a finite number")
	}
	if amount <= 0 {
		return decimal.Zero, failf(field, "must be positive, got $%.2f", amount)
	}
	if amount < min {
		return decimal.Zero, failf(field, "must be at least $%.2f, got $%.2f", min, amount)
	}
	if amount > max {
		return decimal.Zero, failf(field, "exceeds maximum of $%.2f, got $%.2f", max, amount)
	}
	return decimal.NewFromFloat(amount).Round(2), nil
}

// Symbol trims and upper-cases a ticker and checks it against the symbol
// pattern. Invalid strings are never constructed into domain symbols.
func Symbol(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", failf("symbol", "cannot be empty or whitespace")
	}
	if !symbolPattern.MatchString(s) {
		return "", failf("symbol", "must match ^[A-Z]{1,5}$, got %q", s)
	}
	return s, nil
}

// SymbolList validates a symbol list: count within [minCount, maxCount],
// each entry a valid symbol, no case-insensitive duplicates. The returned
// list is normalized and order-preserving.
func SymbolList(raw []string, minCount, maxCount int) ([]string, error) {
	list := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			list = append(list, s)
		}
	}
	if len(list) < minCount {
		return nil, failf("symbols", "at least %d symbol(s) required, got %d", minCount, len(list))
	}
	if len(list) > maxCount {
		return nil, failf("symbols", "too many symbols: maximum %d, got %d", maxCount, len(list))
	}
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		sym, err := Symbol(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[sym]; dup {
			return nil, failf("symbols", "duplicate symbol not allowed: %s", sym)
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out, nil
}

// SymbolCSV splits a comma-separated symbol string and validates it with
// SymbolList.
func SymbolCSV(raw string, minCount, maxCount int) ([]string, error) {
	return SymbolList(strings.Split(raw, ","), minCount, maxCount)
}

// Threshold validates a fractional threshold against [min, max] and rounds
// it to six decimals.
func Threshold(field string, x, min, max float64) (float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, failf(field, "must be a finite number")
	}
	if x < min {
		return 0, failf(field, "must be at least %g, got %g", min, x)
	}
	if x > max {
		return 0, failf(field, "cannot exceed %g, got %g", max, x)
	}
	return math.Round(x*1e6) / 1e6, nil
}

// Allocation validates a symbol -> fraction map: valid symbols, fractions in
// (0, 1], at most maxSymbols entries, and a sum within AllocationTolerance
// of 1.0. It returns the normalized map keyed by validated symbols.
func Allocation(raw map[string]float64, maxSymbols int) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, failf("allocation", "cannot be empty")
	}
	if len(raw) > maxSymbols {
		return nil, failf("allocation", "too many symbols: maximum %d, got %d", maxSymbols, len(raw))
	}
	out := make(map[string]float64, len(raw))
	total := 0.0
	for sym, frac := range raw {
		validSym, err := Symbol(sym)
		if err != nil {
			return nil, failf("allocation", "invalid symbol %q", sym)
		}
		if math.IsNaN(frac) || math.IsInf(frac, 0) {
			return nil, failf("allocation", "fraction for %s must be finite", validSym)
		}
		if frac <= 0 || frac > 1 {
			return nil, failf("allocation", "fraction for %s must be in (0, 1], got %g", validSym, frac)
		}
		rounded := math.Round(frac*1e6) / 1e6
		if _, dup := out[validSym]; dup {
			return nil, failf("allocation", "duplicate symbol not allowed: %s", validSym)
		}
		out[validSym] = rounded
		total += rounded
	}
	if total < 1.0-AllocationTolerance || total > 1.0+AllocationTolerance {
		return nil, failf("allocation", "fractions must sum to 1.0 (±%g), got %.6f", AllocationTolerance, total)
	}
	return out, nil
}
