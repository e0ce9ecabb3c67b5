package categorizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/llm"
)

const (
	fallbackReasoning        = "Failed to categorize automatically"
	unknownCategoryReasoning = "Category not found in available options"

	// neutralConfidence replaces unusable confidences. It sits below the
	// review threshold so such answers always land in the review queue.
	neutralConfidence = 0.5
)

var requiredKeys = []string{"category", "confidence", "reasoning"}

// Fallback returns the fixed categorization used when the model answer is
// unusable, tagged with reason.
func Fallback(reason domain.FallbackReason) domain.Categorization {
	return domain.Categorization{
		Category:   domain.OtherCategory,
		Confidence: 0.0,
		Reasoning:  fallbackReasoning,
		Fallback:   reason,
	}
}

// CategoryValidator checks model answers against a category catalog.
type CategoryValidator struct {
	names map[string]bool
}

// NewCategoryValidator builds a validator for the given catalog.
func NewCategoryValidator(categories []domain.Category) *CategoryValidator {
	v := &CategoryValidator{names: make(map[string]bool, len(categories))}
	for _, c := range categories {
		v.names[c.Name] = true
	}
	return v
}

// IsKnown reports whether name is exactly a catalog category name.
func (v *CategoryValidator) IsKnown(name string) bool {
	return v.names[name]
}

// Validate turns raw model text into a Categorization. Rules are applied in
// order: parse, required keys, category membership, confidence range.
func (v *CategoryValidator) Validate(raw string) domain.Categorization {
	obj, err := decodeObject(llm.CleanJSON(raw))
	if err != nil {
		return Fallback(domain.FallbackMalformedResponse)
	}

	for _, key := range requiredKeys {
		if _, ok := obj[key]; !ok {
			return Fallback(domain.FallbackMissingFields)
		}
	}

	name, _ := obj["category"].(string)
	if !v.IsKnown(name) {
		return domain.Categorization{
			Category:   domain.OtherCategory,
			Confidence: neutralConfidence,
			Reasoning:  unknownCategoryReasoning,
			Fallback:   domain.FallbackUnknownCategory,
		}
	}

	result := domain.Categorization{
		Category:  name,
		Reasoning: textValue(obj["reasoning"]),
	}

	conf, ok := parseConfidence(obj["confidence"])
	if !ok {
		conf = neutralConfidence
		result.Fallback = domain.FallbackInvalidConfidence
	}
	result.Confidence = conf

	return result
}

// parseConfidence accepts a number or numeric string within [0, 1].
func parseConfidence(v interface{}) (float64, bool) {
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
		return 0, false
	}
	if err != nil || math.IsNaN(f) || f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

func textValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func decodeObject(s string) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	if obj == nil {
		return nil, errors.New("null categorization")
	}
	return obj, nil
}
