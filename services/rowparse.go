package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Akzeptierte Layouts für die "Created Formatted"-Spalte des Exports.
var rowDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// ParseAmountCents konvertiert einen Dollar-Dezimalstring in Integer-Cents.
// Immer über round(dollars * 100), danach nur noch Integer-Arithmetik.
func ParseAmountCents(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("amount is blank")
	}
	dollars, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if dollars < 0 {
		return 0, fmt.Errorf("negative amount %q", raw)
	}
	return int64(math.Round(dollars * 100)), nil
}

// ParseRowDate versucht die bekannten Datums-Layouts der Reihe nach.
func ParseRowDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is blank")
	}
	for _, layout := range rowDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}
