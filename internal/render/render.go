// Package render formats chat messages, recipes and nutrition facts for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"RecipeChat/internal/backend"
	"RecipeChat/internal/chat"
	"RecipeChat/internal/recipe"
	"RecipeChat/internal/store"
)

// Shown for ingredient lines the payload left blank
const (
	defaultIngredientName = "Ingredient"
	defaultAmount         = "to taste"
)

var (
	// Styles
	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	otherStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("135"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	imageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// Message renders one chat message; empty messages render as ""
func Message(m chat.ChatMessage, me string) string {
	if m.Empty() {
		return ""
	}

	var lines []string
	switch {
	case m.IsSystem():
		if m.Text != "" {
			lines = append(lines, systemStyle.Render("* "+m.Text))
		}
	default:
		label := senderLabel(m, me)
		if m.Text != "" {
			lines = append(lines, label+" "+m.Text)
		} else {
			lines = append(lines, label)
		}
	}

	if m.ImageRef != "" {
		lines = append(lines, imageStyle.Render("[image: "+m.ImageRef+"]"))
	}
	if m.Recipe != nil {
		lines = append(lines, Recipe(*m.Recipe))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func senderLabel(m chat.ChatMessage, me string) string {
	switch {
	case m.SentByCurrentUser || (me != "" && m.Sender == me):
		return userStyle.Render("You:")
	case m.Sender == chat.SenderAssistant:
		return assistantStyle.Render("Chef:")
	default:
		return otherStyle.Render(m.Sender + ":")
	}
}

// Recipe renders a recipe card
func Recipe(r recipe.Recipe) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(r.Name))
	b.WriteString("\n")
	b.WriteString(r.Description)
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("Time: %d min | Difficulty: %s | Servings: %s",
		r.TotalTimeMinutes, r.Difficulty, r.Servings)))

	if len(r.Ingredients) > 0 {
		b.WriteString("\n\n")
		b.WriteString(titleStyle.Render("Ingredients"))
		for _, ing := range r.Ingredients {
			b.WriteString("\n- ")
			b.WriteString(Ingredient(ing))
		}
	}

	if len(r.Steps) > 0 {
		b.WriteString("\n\n")
		b.WriteString(titleStyle.Render("Steps"))
		for _, s := range r.Steps {
			b.WriteString("\n")
			b.WriteString(Step(s))
		}
	}

	return cardStyle.Render(b.String())
}

// Ingredient renders "name amount unit"
func Ingredient(ing recipe.Ingredient) string {
	name := ing.Name
	if strings.TrimSpace(name) == "" {
		name = defaultIngredientName
	}
	amount := ing.Amount
	if strings.TrimSpace(amount) == "" {
		amount = defaultAmount
	}
	if ing.Unit != "" {
		return fmt.Sprintf("%s %s %s", name, amount, ing.Unit)
	}
	return fmt.Sprintf("%s %s", name, amount)
}

// Step renders one numbered instruction with its cooking time
func Step(s recipe.Step) string {
	return fmt.Sprintf("%d. %s %s", s.Index, s.Text, labelStyle.Render(fmt.Sprintf("(%d min)", s.CookingTimeMinutes)))
}

// Nutrition renders the nutrition facts of a recipe
func Nutrition(name string, n backend.Nutrition) string {
	rows := [][2]string{
		{"Calories", fmt.Sprintf("%.0f kcal", n.Calories)},
		{"Carbohydrate", grams(n.Carbohydrate)},
		{"Protein", grams(n.Protein)},
		{"Fat", grams(n.Fat)},
		{"Sugar", grams(n.Sugar)},
		{"Sodium", fmt.Sprintf("%.1f mg", n.Sodium)},
		{"Saturated fat", grams(n.SaturatedFat)},
		{"Trans fat", grams(n.TransFat)},
		{"Cholesterol", fmt.Sprintf("%.1f mg", n.Cholesterol)},
	}
	if n.DietaryFiber != nil {
		rows = append(rows, [2]string{"Dietary fiber", grams(*n.DietaryFiber)})
	}
	optional := []struct {
		label string
		v     *float64
	}{
		{"Vitamin A", n.VitaminA},
		{"Vitamin C", n.VitaminC},
		{"Calcium", n.Calcium},
		{"Iron", n.Iron},
	}
	for _, o := range optional {
		if o.v != nil {
			rows = append(rows, [2]string{o.label, fmt.Sprintf("%.0f%%", *o.v)})
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Nutrition facts: " + name))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-14s", row[0])))
		b.WriteString(row[1])
	}
	if n.IsPlaceholder() {
		b.WriteString("\n")
		b.WriteString(systemStyle.Render("Estimated values; detailed data is not available."))
	}
	return cardStyle.Render(b.String())
}

func grams(v float64) string {
	return fmt.Sprintf("%.1f g", v)
}

// Summaries renders the archived transcript list
func Summaries(list []store.Summary) string {
	if len(list) == 0 {
		return systemStyle.Render("No chat history yet.")
	}
	lines := make([]string, 0, len(list))
	for i, s := range list {
		lines = append(lines, fmt.Sprintf("%d. %s %s %s",
			i+1,
			titleStyle.Render(s.StartedAt.Local().Format("2006-01-02 15:04")),
			labelStyle.Render(fmt.Sprintf("(%d messages, %s)", s.Messages, s.Username)),
			s.ID,
		))
	}
	return strings.Join(lines, "\n")
}

// Transcript renders an archived chat
func Transcript(t *store.Transcript) string {
	lines := []string{titleStyle.Render(fmt.Sprintf("Chat %s (%s)", t.ID, t.StartedAt.Local().Format("2006-01-02 15:04")))}
	for _, e := range t.Entries {
		if out := Message(chat.FromEntry(e), t.Username); out != "" {
			lines = append(lines, out)
		}
	}
	return strings.Join(lines, "\n")
}
