package amount

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"ammQuote/internal/ammerr"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in       string
		decimals int
		want     string
	}{
		{"1", 6, "1000000"},
		{"1.5", 6, "1500000"},
		{"+2.25", 2, "225"},
		{"-0.001", 3, "-1"},
		{"0.123456789", 4, "1234"},
		{"42", 0, "42"},
		{"42.9", 0, "42"},
		{"000.10", 2, "10"},
	}

	for _, tc := range cases {
		got, err := Parse(tc.in, tc.decimals)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("parse %q/%d: got %s want %s", tc.in, tc.decimals, got, tc.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1.", ".5", "1.2.3", "1e18", "--1", "1,000", " 1.5 ", "1.5\n"} {
		if _, err := Parse(in, 6); !errors.Is(err, ammerr.ErrValidation) {
			t.Fatalf("parse %q: expected validation error, got %v", in, err)
		}
	}
	if _, err := Parse("1", -1); !errors.Is(err, ammerr.ErrValidation) {
		t.Fatalf("expected validation error for negative decimals, got %v", err)
	}
}

func TestFormatTruncates(t *testing.T) {
	v := big.NewInt(1_999_999)
	if got := Format(v, 6, 4); got != "1.9999" {
		t.Fatalf("format: %s", got)
	}
	if got := FormatDefault(big.NewInt(5), 0); got != "5" {
		t.Fatalf("format whole units: %s", got)
	}
	if got := FormatDefault(big.NewInt(15), 1); got != "1.5" {
		t.Fatalf("format should not pad past decimals: %s", got)
	}
	if got := Format(big.NewInt(-1_999_999), 6, 2); got != "-1.99" {
		t.Fatalf("format negative: %s", got)
	}
	if got := Format(nil, 18, 2); got != "0.00" {
		t.Fatalf("format nil: %s", got)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []struct {
		in       string
		decimals int
	}{
		{"123.4567", 4},
		{"-7.10", 2},
		{"1.5", 1},
		{"+0.3", 1},
		{"9", 0},
		{"-42", 0},
		{"0.00", 2},
	}

	for _, tc := range cases {
		v, err := Parse(tc.in, tc.decimals)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		want := strings.TrimPrefix(tc.in, "+")
		if got := FormatDefault(v, tc.decimals); got != want {
			t.Fatalf("round trip %q/%d: got %q", tc.in, tc.decimals, got)
		}
	}

	v, err := Parse("1000000.000000000000000001", 18)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := Format(v, 18, 18); got != "1000000.000000000000000001" {
		t.Fatalf("round trip at full display precision: got %q", got)
	}
}

func TestBps(t *testing.T) {
	if got := ToBps(big.NewInt(1), big.NewInt(3)); got.Int64() != 3333 {
		t.Fatalf("to bps: %s", got)
	}
	if got := ToBps(big.NewInt(5), big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("to bps zero denominator: %s", got)
	}
	if got := ApplyBps(big.NewInt(12345), 30); got.Int64() != 37 {
		t.Fatalf("apply bps: %s", got)
	}
	if got := ApplyBps(big.NewInt(100), 10_000); got.Int64() != 100 {
		t.Fatalf("apply full bps: %s", got)
	}
}

func TestSafeMath(t *testing.T) {
	p, err := SafeMultiply(big.NewInt(0), big.NewInt(7))
	if err != nil || p.Sign() != 0 {
		t.Fatalf("multiply by zero: %v %v", p, err)
	}
	p, err = SafeMultiply(big.NewInt(-3), big.NewInt(7))
	if err != nil || p.Int64() != -21 {
		t.Fatalf("multiply: %v %v", p, err)
	}

	q, err := SafeDivide(big.NewInt(-7), big.NewInt(2))
	if err != nil || q.Int64() != -3 {
		t.Fatalf("divide truncates toward zero: %v %v", q, err)
	}
	if _, err := SafeDivide(big.NewInt(1), big.NewInt(0)); !errors.Is(err, ammerr.ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
}
