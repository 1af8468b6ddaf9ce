package services

import "testing"

func TestParseAmountCents(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"150.50", 15050},
		{"25.00", 2500},
		{"0.10", 10},
		{"$1,234.56", 123456},
		{"7", 700},
		{" 19.99 ", 1999},
	}
	for _, tc := range cases {
		got, err := ParseAmountCents(tc.raw)
		if err != nil {
			t.Errorf("ParseAmountCents(%q) error = %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAmountCents(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

// Kein Float-Drift über wiederholte Konvertierungen.
func TestParseAmountCentsNoDrift(t *testing.T) {
	for i := 0; i < 10000; i++ {
		got, err := ParseAmountCents("0.10")
		if err != nil {
			t.Fatalf("ParseAmountCents error = %v", err)
		}
		if got != 10 {
			t.Fatalf("iteration %d: ParseAmountCents(\"0.10\") = %d, want 10", i, got)
		}
	}
}

func TestParseAmountCentsInvalid(t *testing.T) {
	for _, raw := range []string{"", "  ", "abc", "-5.00", "12.three"} {
		if _, err := ParseAmountCents(raw); err == nil {
			t.Errorf("ParseAmountCents(%q) expected error", raw)
		}
	}
}

func TestParseRowDate(t *testing.T) {
	cases := []string{
		"2024-01-15 10:30:00",
		"2024-01-15 10:30",
		"2024-01-15",
		"01/15/2024",
		"Jan 15, 2024",
	}
	for _, raw := range cases {
		got, err := ParseRowDate(raw)
		if err != nil {
			t.Errorf("ParseRowDate(%q) error = %v", raw, err)
			continue
		}
		if got.Year() != 2024 || int(got.Month()) != 1 || got.Day() != 15 {
			t.Errorf("ParseRowDate(%q) = %v, want 2024-01-15", raw, got)
		}
	}
}

func TestParseRowDateInvalid(t *testing.T) {
	for _, raw := range []string{"", "not a date", "15.01.24x"} {
		if _, err := ParseRowDate(raw); err == nil {
			t.Errorf("ParseRowDate(%q) expected error", raw)
		}
	}
}
