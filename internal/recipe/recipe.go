// Package recipe defines the canonical recipe shape and converts the
// heterogeneous payloads produced by generation, substitution and chat
// delivery into it.
package recipe

// Defaults applied when a payload omits a field
const (
	DefaultName         = "Untitled recipe"
	DefaultDescription  = "No description"
	DefaultStepText     = "Cooking step"
	DefaultDifficulty   = "Medium"
	DefaultServings     = "2 servings"
	DefaultStepMinutes  = 5
	DefaultTotalMinutes = 30
)

// Raw is an undecoded recipe payload as it arrives from the backend
type Raw map[string]any

// Recipe is the canonical recipe used by all rendering and chat embedding
type Recipe struct {
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	Ingredients      []Ingredient `json:"ingredients"`
	Steps            []Step       `json:"steps"`
	TotalTimeMinutes int          `json:"totalTimeMinutes"`
	Difficulty       string       `json:"difficulty"`
	Servings         string       `json:"servings"`
}

// Ingredient is one line of the ingredient list
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Unit   string `json:"unit,omitempty"`
}

// Step is one ordered cooking instruction
type Step struct {
	Index              int    `json:"index"`
	Text               string `json:"text"`
	CookingTimeMinutes int    `json:"cookingTimeMinutes"`
}
