package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// DefaultDigits is the code width used when none is configured.
	DefaultDigits = 6
	// MinDigits is the smallest supported code width.
	MinDigits = 4
	// MaxDigits is the largest width whose range still fits in int64.
	MaxDigits = 18
)

// Generator produces numeric codes.
type Generator interface {
	Generate() (int64, error)
	Contains(code int64) bool
}

// Numeric generates codes in [10^(digits-1), 10^digits - 1].
type Numeric struct {
	digits int
	min    int64
	max    int64
	span   *big.Int
}

// NewNumeric returns a generator for codes of the given width.
func NewNumeric(digits int) (*Numeric, error) {
	if digits < MinDigits || digits > MaxDigits {
		return nil, fmt.Errorf("otp: digits must be between %d and %d, got %d", MinDigits, MaxDigits, digits)
	}

	lo := int64(1)
	for range digits - 1 {
		lo *= 10
	}
	hi := lo*10 - 1

	return &Numeric{
		digits: digits,
		min:    lo,
		max:    hi,
		span:   big.NewInt(hi - lo + 1),
	}, nil
}

// Generate returns a uniformly distributed code.
func (n *Numeric) Generate() (int64, error) {
	v, err := rand.Int(rand.Reader, n.span)
	if err != nil {
		return 0, fmt.Errorf("otp: read random: %w", err)
	}
	return n.min + v.Int64(), nil
}

// Contains reports whether code has exactly the configured width.
func (n *Numeric) Contains(code int64) bool {
	return code >= n.min && code <= n.max
}

// Digits returns the configured code width.
func (n *Numeric) Digits() int {
	return n.digits
}
