// Package codec converts wire-format numeric values (decimal strings and
// bounded JSON numbers) to and from fixed-width integers with strict
// range and encoding validation.
package codec

import (
	"bytes"
	"strconv"
)

// ValidationError describes a single malformed or out-of-range field.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func invalid(field, reason string) ValidationError {
	return ValidationError{Field: field, Reason: reason}
}

// unquote strips the JSON string quotes from a raw token, returning the
// content and whether the token was a string at all. The content is NOT
// unescaped: a decimal value has no business containing escapes, and any
// backslash will fail the digit check downstream.
func unquote(raw []byte) ([]byte, bool) {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1], true
	}
	return nil, false
}

func digitsOnly(s []byte) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// DecodeU128 decodes a 128-bit field. The wire form MUST be a decimal
// string: a bare JSON number cannot carry 128 bits of precision, so
// numeric literals are rejected outright.
func DecodeU128(field string, raw []byte) (Uint128, error) {
	raw = bytes.TrimSpace(raw)
	content, ok := unquote(raw)
	if !ok {
		return Uint128{}, invalid(field, "128-bit values must be decimal strings")
	}
	if !digitsOnly(content) {
		return Uint128{}, invalid(field, "must contain only decimal digits")
	}
	v, err := ParseUint128(string(content))
	if err != nil {
		return Uint128{}, invalid(field, "exceeds 128-bit range")
	}
	return v, nil
}

// DecodeU64 decodes a 64-bit field from either a decimal string or a
// JSON number.
func DecodeU64(field string, raw []byte) (uint64, error) {
	return decodeUint(field, raw, 64)
}

// DecodeU32 decodes a 32-bit field from either a decimal string or a
// JSON number.
func DecodeU32(field string, raw []byte) (uint32, error) {
	v, err := decodeUint(field, raw, 32)
	return uint32(v), err
}

// DecodeU16 decodes a 16-bit field from either a decimal string or a
// JSON number.
func DecodeU16(field string, raw []byte) (uint16, error) {
	v, err := decodeUint(field, raw, 16)
	return uint16(v), err
}

func decodeUint(field string, raw []byte, width int) (uint64, error) {
	raw = bytes.TrimSpace(raw)
	content, quoted := unquote(raw)
	if !quoted {
		content = raw
	}
	// digitsOnly rejects signs, fractions, exponents and any embedded
	// whitespace, so negative and non-integral numbers never reach
	// ParseUint.
	if !digitsOnly(content) {
		return 0, invalid(field, "must contain only decimal digits")
	}
	v, err := strconv.ParseUint(string(content), 10, width)
	if err != nil {
		return 0, invalid(field, "exceeds "+strconv.Itoa(width)+"-bit range")
	}
	return v, nil
}

// EncodeU128 renders a 128-bit value in its wire form, a quoted decimal
// string.
func EncodeU128(v Uint128) []byte {
	s := v.String()
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	out = append(out, s...)
	return append(out, '"')
}

// EncodeU64 renders a 64-bit value as a quoted decimal string. Emitting
// 64-bit fields as strings is deliberate: timestamps and user_data_64
// exceed the integer range JavaScript clients can represent.
func EncodeU64(v uint64) []byte {
	return strconv.AppendQuote(nil, strconv.FormatUint(v, 10))
}
