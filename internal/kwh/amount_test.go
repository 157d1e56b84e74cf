package kwh

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  error
	}{
		{"4,5", "4.5", nil},
		{"4.5", "4.5", nil},
		{"12.3456", "12.3456", nil},
		{" 7 ", "7", nil},
		{"0.00009", "", ErrNonPositive}, // truncates to zero
		{"12.34567", "12.3456", nil},    // truncated, not rounded
		{"12.99999", "12.9999", nil},
		{"0", "", ErrNonPositive},
		{"-3", "", ErrNonPositive},
		{"abc", "", ErrInvalidQuantity},
		{"", "", ErrInvalidQuantity},
		{"1.2.3", "", ErrInvalidQuantity},
	}
	for _, tt := range tests {
		got, err := ParseQuantity(tt.in)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("ParseQuantity(%q) err = %v, want %v", tt.in, err, tt.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseQuantity(%q) err = %v", tt.in, err)
			continue
		}
		if Format(got) != tt.want {
			t.Errorf("ParseQuantity(%q) = %s, want %s", tt.in, Format(got), tt.want)
		}
	}
}

func TestParseDelta(t *testing.T) {
	if _, err := ParseDelta("0"); !errors.Is(err, ErrZeroDelta) {
		t.Fatalf("zero delta err = %v", err)
	}
	d, err := ParseDelta("-2,75")
	if err != nil {
		t.Fatalf("ParseDelta: %v", err)
	}
	if Format(d) != "-2.75" {
		t.Fatalf("got %s", Format(d))
	}
	if _, err := ParseDelta("x"); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("err = %v", err)
	}
}

func TestTruncateTowardZero(t *testing.T) {
	d := decimal.RequireFromString("-1.99999")
	if got := Format(Truncate(d)); got != "-1.9999" {
		t.Fatalf("got %s", got)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct{ in, want string }{
		{"4.5000", "4.5"},
		{"4.0000", "4"},
		{"0", "0"},
		{"0.0001", "0.0001"},
		{"-3.1400", "-3.14"},
	}
	for _, tt := range tests {
		d := decimal.RequireFromString(tt.in)
		if got := Format(d); got != tt.want {
			t.Errorf("Format(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
