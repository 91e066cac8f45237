package payto

import (
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
		units    string
	}{
		{"12.5", 6, "12500000"},
		{" 1 ", 6, "1000000"},
		{"0.000001", 6, "1"},
		{"0.000000001", 9, "1"},
		{"1.5", 18, "1500000000000000000"},
		{"100", 0, "100"},
	}
	for _, tt := range tests {
		d, err := ParseAmount(tt.in, tt.decimals)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tt.in, err)
		}
		if got := BaseUnits(d, tt.decimals).String(); got != tt.units {
			t.Fatalf("BaseUnits(%q) = %s, want %s", tt.in, got, tt.units)
		}
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, in := range []string{"", "0", "0.0", "-1", "abc", "1,5", "0.0000001"} {
		if _, err := ParseAmount(in, 6); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmount(%q): expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestParseAmountBoundsExponent(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, in := range []string{"1e-2000000000", "1e2000000000", "1e41", "1e-25", strings.Repeat("9", 65)} {
			if _, err := ParseAmount(in, 6); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("ParseAmount(%q): expected ErrInvalidAmount, got %v", in, err)
			}
		}
		d, err := ParseAmount("1.5e3", 6)
		if err != nil || BaseUnits(d, 6).String() != "1500000000" {
			t.Errorf("ParseAmount(1.5e3) = %s, %v", d, err)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("ParseAmount did not return for out of range exponents")
	}
}

func TestFromBaseUnits(t *testing.T) {
	d := FromBaseUnits(big.NewInt(1234500), 6)
	if got := FormatAmount(d, "USDC"); got != "1.2345 USDC" {
		t.Fatalf("format = %q", got)
	}
}
