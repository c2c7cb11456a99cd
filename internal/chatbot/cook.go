package chatbot

import (
	"bufio"
	"strings"
	"time"

	"RecipeChat/internal/cooking"
	"RecipeChat/internal/recipe"
	"RecipeChat/internal/render"
)

// cook runs the step-by-step cooking mode until the user leaves it or input ends
func (cb *ChatBot) cook(r recipe.Recipe, scanner *bufio.Scanner) {
	a := cooking.New(r, cooking.WithTickInterval(cb.cookTick))
	defer a.Close()

	if _, ok := a.Current(); !ok {
		cb.println("This recipe has no steps to cook.")
		return
	}

	cb.printf("\nCooking %s. Commands: n(ext), p(rev), t(imer), s(top), q(uit)\n", r.Name)
	cb.showStep(a)

	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "n", "next":
			if !a.Next() {
				cb.println("This is the last step. Enjoy your meal!")
				continue
			}
			cb.showStep(a)
		case "p", "prev":
			if !a.Prev() {
				cb.println("This is the first step.")
				continue
			}
			cb.showStep(a)
		case "t", "timer":
			step, _ := a.Current()
			if !a.StartTimer(cb.onCookTick, func() { cb.printf("Step %d timer finished!\n", step.Index) }) {
				cb.println("A timer is already running.")
				continue
			}
			cb.printf("Timer started: %s\n", cooking.FormatRemaining(time.Duration(step.CookingTimeMinutes)*time.Minute))
		case "s", "stop":
			a.StopTimer()
			cb.println("Timer stopped.")
		case "q", "quit", "/quit":
			cb.println("Left cooking mode.")
			return
		case "":
		default:
			cb.println("Commands: n(ext), p(rev), t(imer), s(top), q(uit)")
		}
	}
}

func (cb *ChatBot) showStep(a *cooking.Assistant) {
	step, _ := a.Current()
	cb.printf("[%s] %s\n", a.Progress(), render.Step(step))
}

// onCookTick reports every full minute and the last ten seconds
func (cb *ChatBot) onCookTick(remaining time.Duration) {
	if remaining > 0 && (remaining%time.Minute == 0 || remaining <= 10*time.Second) {
		cb.printf("  %s left\n", cooking.FormatRemaining(remaining))
	}
}
