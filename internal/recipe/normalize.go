package recipe

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Normalize converts a raw payload into the canonical Recipe.
// It never fails and never mutates raw: missing or malformed fields fall
// back to the package defaults.
func Normalize(raw Raw) Recipe {
	steps := normalizeSteps(raw["instructions"])

	return Recipe{
		Name:             stringOr(raw["name"], DefaultName),
		Description:      stringOr(raw["description"], DefaultDescription),
		Ingredients:      normalizeIngredients(raw["ingredients"]),
		Steps:            steps,
		TotalTimeMinutes: TotalMinutes(steps),
		Difficulty:       stringOr(raw["difficulty"], DefaultDifficulty),
		Servings:         normalizeServings(raw["servings"]),
	}
}

// TotalMinutes sums the step cooking times, falling back to
// DefaultTotalMinutes when the sum is exactly zero.
func TotalMinutes(steps []Step) int {
	total := 0
	for _, s := range steps {
		total += s.CookingTimeMinutes
	}
	if total == 0 {
		return DefaultTotalMinutes
	}
	return total
}

// ID returns the backend identifier carried by the payload, or "" if none
func (r Raw) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case float64, json.Number, int, int64:
		return formatNumber(v)
	default:
		return ""
	}
}

// AsRaw returns v as a Raw payload when it is a JSON object
func AsRaw(v any) (Raw, bool) {
	switch m := v.(type) {
	case Raw:
		return m, m != nil
	case map[string]any:
		return Raw(m), m != nil
	default:
		return nil, false
	}
}

// Decode parses a JSON object into a Raw payload
func Decode(data []byte) (Raw, error) {
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode recipe: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("failed to decode recipe: payload is null")
	}
	return raw, nil
}

func normalizeIngredients(v any) []Ingredient {
	items, ok := v.([]any)
	if !ok {
		return []Ingredient{}
	}

	out := make([]Ingredient, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case map[string]any:
			out = append(out, Ingredient{
				Name:   textOf(it["name"]),
				Amount: textOf(it["amount"]),
				Unit:   textOf(it["unit"]),
			})
		case string:
			out = append(out, Ingredient{Name: it})
		}
	}
	return out
}

func normalizeSteps(v any) []Step {
	items, ok := v.([]any)
	if !ok {
		return []Step{}
	}

	out := make([]Step, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}

		// step/text is the primary naming, stepNumber/instruction the alternate
		index, ok := positiveInt(fields["step"])
		if !ok {
			index, ok = positiveInt(fields["stepNumber"])
		}
		if !ok {
			index = i + 1
		}

		text := stringOr(fields["text"], "")
		if text == "" {
			text = stringOr(fields["instruction"], DefaultStepText)
		}

		minutes := DefaultStepMinutes
		if n, ok := number(fields["cookingTime"]); ok {
			minutes = int(math.Max(0, math.Round(n)))
		}

		out = append(out, Step{
			Index:              index,
			Text:               text,
			CookingTimeMinutes: minutes,
		})
	}
	return out
}

func normalizeServings(v any) string {
	if s := stringOr(v, ""); s != "" {
		return s
	}
	if n, ok := positiveInt(v); ok {
		return fmt.Sprintf("%d servings", n)
	}
	return DefaultServings
}

func stringOr(v any, fallback string) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// textOf renders scalars as text; amounts arrive as either "200g" or 200
func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64, json.Number, int, int64:
		return formatNumber(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func positiveInt(v any) (int, bool) {
	n, ok := number(v)
	if !ok || n < 1 || n != math.Trunc(n) {
		return 0, false
	}
	return int(n), true
}

func formatNumber(v any) string {
	n, ok := number(v)
	if !ok {
		return ""
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
