package codec

import (
	"errors"
	"math/bits"
	"strconv"
)

// ErrRange reports a decimal value that does not fit the target width.
var ErrRange = errors.New("value out of range")

// Uint128 is an unsigned 128-bit integer stored as two 64-bit words.
// The ledger engine uses 128-bit values for identifiers, amounts and
// balance counters, none of which survive a trip through a JSON number.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// U128From64 widens a 64-bit value.
func U128From64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// ParseUint128 parses a decimal string. Only ASCII digits are accepted:
// no sign, no whitespace, no separators.
func ParseUint128(s string) (Uint128, error) {
	if s == "" {
		return Uint128{}, errors.New("empty value")
	}
	var u Uint128
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return Uint128{}, errors.New("invalid character " + strconv.QuoteRune(rune(c)))
		}
		loCarry, lo := bits.Mul64(u.Lo, 10)
		hiCarry, hi := bits.Mul64(u.Hi, 10)
		if hiCarry != 0 {
			return Uint128{}, ErrRange
		}
		hi, carry := bits.Add64(hi, loCarry, 0)
		if carry != 0 {
			return Uint128{}, ErrRange
		}
		lo, carry = bits.Add64(lo, uint64(c-'0'), 0)
		hi, carry = bits.Add64(hi, 0, carry)
		if carry != 0 {
			return Uint128{}, ErrRange
		}
		u = Uint128{Hi: hi, Lo: lo}
	}
	return u, nil
}

// IsZero reports whether the value is zero.
func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

// Cmp returns -1, 0 or 1 comparing u against v.
func (u Uint128) Cmp(v Uint128) int {
	switch {
	case u.Hi < v.Hi:
		return -1
	case u.Hi > v.Hi:
		return 1
	case u.Lo < v.Lo:
		return -1
	case u.Lo > v.Lo:
		return 1
	default:
		return 0
	}
}

// Add returns u+v and whether the sum overflowed 128 bits.
func (u Uint128) Add(v Uint128) (Uint128, bool) {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, carry := bits.Add64(u.Hi, v.Hi, carry)
	return Uint128{Hi: hi, Lo: lo}, carry != 0
}

// Sub returns u-v and whether the subtraction underflowed.
func (u Uint128) Sub(v Uint128) (Uint128, bool) {
	lo, borrow := bits.Sub64(u.Lo, v.Lo, 0)
	hi, borrow := bits.Sub64(u.Hi, v.Hi, borrow)
	return Uint128{Hi: hi, Lo: lo}, borrow != 0
}

// String renders the value in decimal.
func (u Uint128) String() string {
	if u.Hi == 0 {
		return strconv.FormatUint(u.Lo, 10)
	}
	// Peel off 19 decimal digits per round; the divisor is the largest
	// power of ten below 2^64 so bits.Div64 never panics.
	const div = 10_000_000_000_000_000_000
	var out string
	for {
		qHi, rem := u.Hi/div, u.Hi%div
		qLo, r := bits.Div64(rem, u.Lo, div)
		u = Uint128{Hi: qHi, Lo: qLo}
		if u.IsZero() {
			return strconv.FormatUint(r, 10) + out
		}
		s := strconv.FormatUint(r, 10)
		out = "0000000000000000000"[len(s):] + s + out
	}
}
