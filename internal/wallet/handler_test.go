package wallet

import (
	"errors"
	"testing"

	"github.com/sol-pay/sol_backend/internal/ledger"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  bool
	}{
		{"150000", 150_000_00, false},
		{"150000.50", 150_000_50, false},
		{"0.01", 1, false},
		{"150000.505", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := parseAmount(tc.in)
		if tc.err {
			if err == nil {
				t.Errorf("parseAmount(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseAmount(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseAmount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseAmountRejectsNonPositive(t *testing.T) {
	for _, in := range []string{"0", "-100"} {
		if _, err := parseAmount(in); !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Errorf("parseAmount(%q): expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := formatAmount(150_000_50); got != "150000.50" {
		t.Fatalf("formatAmount = %q", got)
	}
	if got := formatAmount(0); got != "0.00" {
		t.Fatalf("formatAmount zero = %q", got)
	}
}
