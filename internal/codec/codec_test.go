package codec

import (
	"testing"
)

const maxU128 = "340282366920938463463374607431768211455"

func TestParseUint128RoundTrip(t *testing.T) {
	cases := []string{
		"0",
		"1",
		"718",
		"4294967295",
		"18446744073709551615",
		"18446744073709551616",
		"100000000000000000000000000000000000000",
		maxU128,
	}
	for _, in := range cases {
		v, err := ParseUint128(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got := v.String(); got != in {
			t.Fatalf("round trip %q: got %q", in, got)
		}
	}
}

func TestParseUint128Rejects(t *testing.T) {
	cases := []string{
		"",
		"-1",
		"+1",
		" 1",
		"1 ",
		"1.0",
		"1e3",
		"0x10",
		"340282366920938463463374607431768211456", // max + 1
		"999999999999999999999999999999999999999",
	}
	for _, in := range cases {
		if _, err := ParseUint128(in); err == nil {
			t.Fatalf("expected parse of %q to fail", in)
		}
	}
}

func TestUint128StringPadsInteriorDigits(t *testing.T) {
	// 2^64 = 18446744073709551616 exercises the multi-round formatter.
	v := Uint128{Hi: 1, Lo: 0}
	if got := v.String(); got != "18446744073709551616" {
		t.Fatalf("expected 18446744073709551616, got %s", got)
	}
	// Remainder of 7 must be zero-padded to 19 digits, not printed bare.
	v = Uint128{Hi: 1, Lo: 7}
	if got := v.String(); got != "18446744073709551623" {
		t.Fatalf("expected 18446744073709551623, got %s", got)
	}
}

func TestUint128AddSub(t *testing.T) {
	a := Uint128{Hi: 0, Lo: ^uint64(0)}
	sum, overflow := a.Add(U128From64(1))
	if overflow {
		t.Fatal("unexpected overflow")
	}
	if sum != (Uint128{Hi: 1, Lo: 0}) {
		t.Fatalf("expected carry into hi word, got %+v", sum)
	}

	diff, borrow := sum.Sub(U128From64(1))
	if borrow {
		t.Fatal("unexpected borrow")
	}
	if diff != a {
		t.Fatalf("expected %+v, got %+v", a, diff)
	}

	if _, overflow := (Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}).Add(U128From64(1)); !overflow {
		t.Fatal("expected overflow at max value")
	}
	if _, borrow := (Uint128{}).Sub(U128From64(1)); !borrow {
		t.Fatal("expected borrow below zero")
	}
}

func TestDecodeU128RequiresString(t *testing.T) {
	if _, err := DecodeU128("id", []byte(`123`)); err == nil {
		t.Fatal("bare numeric literal must be rejected for 128-bit fields")
	}
	v, err := DecodeU128("id", []byte(`"123"`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Lo != 123 || v.Hi != 0 {
		t.Fatalf("expected 123, got %+v", v)
	}
}

func TestDecodeU128Rejects(t *testing.T) {
	cases := [][]byte{
		[]byte(`""`),
		[]byte(`" 123"`),
		[]byte(`"123 "`),
		[]byte(`"-1"`),
		[]byte(`"12a"`),
		[]byte(`"340282366920938463463374607431768211456"`),
		[]byte(`true`),
	}
	for _, raw := range cases {
		_, err := DecodeU128("id", raw)
		if err == nil {
			t.Fatalf("expected decode of %s to fail", raw)
		}
		var verr ValidationError
		verr, ok := err.(ValidationError)
		if !ok {
			t.Fatalf("expected ValidationError, got %T", err)
		}
		if verr.Field != "id" {
			t.Fatalf("expected field id, got %q", verr.Field)
		}
	}
}

func TestDecodeBoundedWidths(t *testing.T) {
	if v, err := DecodeU64("timestamp", []byte(`"18446744073709551615"`)); err != nil || v != ^uint64(0) {
		t.Fatalf("max u64 string: v=%d err=%v", v, err)
	}
	if v, err := DecodeU64("timestamp", []byte(`42`)); err != nil || v != 42 {
		t.Fatalf("native u64 number: v=%d err=%v", v, err)
	}
	if _, err := DecodeU64("timestamp", []byte(`"18446744073709551616"`)); err == nil {
		t.Fatal("u64 overflow must fail, never truncate")
	}
	if v, err := DecodeU32("ledger", []byte(`4294967295`)); err != nil || v != 4294967295 {
		t.Fatalf("max u32: v=%d err=%v", v, err)
	}
	if _, err := DecodeU32("ledger", []byte(`4294967296`)); err == nil {
		t.Fatal("u32 overflow must fail")
	}
	if v, err := DecodeU16("code", []byte(`"718"`)); err != nil || v != 718 {
		t.Fatalf("u16 string: v=%d err=%v", v, err)
	}
	if _, err := DecodeU16("code", []byte(`65536`)); err == nil {
		t.Fatal("u16 overflow must fail")
	}
	if _, err := DecodeU16("code", []byte(`-1`)); err == nil {
		t.Fatal("negative values must fail")
	}
	if _, err := DecodeU64("timestamp", []byte(`1.5`)); err == nil {
		t.Fatal("fractional values must fail")
	}
	if _, err := DecodeU64("timestamp", []byte(`1e3`)); err == nil {
		t.Fatal("exponent notation must fail")
	}
}

func TestEncode(t *testing.T) {
	v, _ := ParseUint128(maxU128)
	if got := string(EncodeU128(v)); got != `"`+maxU128+`"` {
		t.Fatalf("encode u128: got %s", got)
	}
	if got := string(EncodeU64(^uint64(0))); got != `"18446744073709551615"` {
		t.Fatalf("encode u64: got %s", got)
	}
}
