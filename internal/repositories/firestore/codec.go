package firestore

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Monetary fields are persisted as float64 of the two-decimal rounded value.
// Rounding happens in the service layer; the codec rounds again defensively so
// a raw document edit cannot smuggle sub-paisa precision back in.
func encodeAmount(value decimal.Decimal) float64 {
	f, _ := value.Round(2).Float64()
	return f
}

func decodeAmount(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value).Round(2)
}

func chooseTime(primary time.Time, fallback time.Time) time.Time {
	if !primary.IsZero() {
		return primary.UTC()
	}
	if !fallback.IsZero() {
		return fallback.UTC()
	}
	return time.Time{}
}

func normalizeTimePointer(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	ts := value.UTC()
	return &ts
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = strings.TrimSpace(value)
	}
	return out
}

func normaliseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(values))
	seen := make(map[string]struct{})
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
