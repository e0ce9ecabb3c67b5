package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/budget-companion/internal/domain"
)

// Accepted statement date layouts, tried in order. Month and day may have one
// or two digits. The trailing ISO layouts make normalization idempotent.
var dateLayouts = []string{
	"2006-1-2",
	"1/2/2006",
	"1-2-2006",
	"2006/1/2",
	domain.DateTimeLayout,
	time.RFC3339,
}

var requiredFields = []string{"date", "amount", "description"}

var errMissingField = errors.New("missing required field")

// hasRequiredFields reports whether every required key is present. Null
// values count as present here and are rejected during cleaning.
func hasRequiredFields(m domain.RawTransaction) bool {
	for _, key := range requiredFields {
		if _, ok := m[key]; !ok {
			return false
		}
	}
	return true
}

// cleanRecord turns a raw element into a Transaction. dateFallback is true
// when the date could not be parsed and now was substituted.
func cleanRecord(m domain.RawTransaction, now time.Time) (tx domain.Transaction, dateFallback bool, err error) {
	amount, err := getAmountField(m, "amount")
	if err != nil {
		return domain.Transaction{}, false, err
	}

	desc, err := getDescriptionField(m, "description")
	if err != nil {
		return domain.Transaction{}, false, err
	}

	date, ok := normalizeDate(m["date"])
	if !ok {
		date = now
		dateFallback = true
	}

	return domain.Transaction{
		Date:        date,
		Amount:      amount,
		Description: desc,
		AccountInfo: getOptionalText(m, "account_info"),
	}, dateFallback, nil
}

// normalizeDate parses v against dateLayouts. Non-string values never parse.
func normalizeDate(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func getAmountField(m domain.RawTransaction, key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%w %q", errMissingField, key)
	}

	var (
		f   float64
		err error
	)
	switch val := v.(type) {
	case json.Number:
		f, err = strconv.ParseFloat(val.String(), 64)
	case float64:
		f = val
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(val), 64)
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("field %q is not finite", key)
	}
	return f, nil
}

func getDescriptionField(m domain.RawTransaction, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w %q", errMissingField, key)
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case float64, bool:
		s = fmt.Sprint(val)
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("required field %q is empty", key)
	}
	return s, nil
}

// getOptionalText returns the value as text, or "" when absent or null.
func getOptionalText(m domain.RawTransaction, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
