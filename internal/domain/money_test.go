package domain

import (
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        Amount
		expectError bool
	}{
		{
			name:  "whole units",
			input: "100",
			want:  10000,
		},
		{
			name:  "with cents",
			input: "12.34",
			want:  1234,
		},
		{
			name:  "single decimal place",
			input: "0.5",
			want:  50,
		},
		{
			name:  "zero",
			input: "0",
			want:  0,
		},
		{
			name:  "negative",
			input: "-3.25",
			want:  -325,
		},
		{
			name:        "sub-cent precision rejected",
			input:       "1.005",
			expectError: true,
		},
		{
			name:        "not a number",
			input:       "ten",
			expectError: true,
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)

			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestAmount_String(t *testing.T) {
	tests := []struct {
		amount Amount
		want   string
	}{
		{amount: 10000, want: "100.00"},
		{amount: 1234, want: "12.34"},
		{amount: 5, want: "0.05"},
		{amount: 0, want: "0.00"},
		{amount: -325, want: "-3.25"},
	}

	for _, tt := range tests {
		if got := tt.amount.String(); got != tt.want {
			t.Errorf("Amount(%d).String() = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestAmount_StringRoundTrip(t *testing.T) {
	for _, a := range []Amount{0, 1, 99, 100, 123456789, -1, -10050} {
		parsed, err := ParseAmount(a.String())
		if err != nil {
			t.Fatalf("failed to parse %q: %v", a.String(), err)
		}
		if parsed != a {
			t.Errorf("round trip of %d produced %d", a, parsed)
		}
	}
}
