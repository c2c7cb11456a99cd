// Package forms collects user input through interactive terminal forms.
package forms

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"RecipeChat/internal/backend"
	"RecipeChat/internal/session"
)

// Habits offered on registration and profile edit; values are what the backend stores
var Habits = []huh.Option[string]{
	huh.NewOption("Not specified", ""),
	huh.NewOption("Balanced diet", "균형잡힌식단"),
	huh.NewOption("Vegetarian", "채식주의"),
	huh.NewOption("Vegan", "비건"),
	huh.NewOption("Low carb", "저탄수화물"),
	huh.NewOption("High protein", "고단백"),
	huh.NewOption("Other", "기타"),
}

// Runner runs a form; tests and non-interactive callers may swap it
type Runner func(ctx context.Context, f *huh.Form) error

// Forms builds and runs the application's forms
type Forms struct {
	run Runner
}

// New returns forms rendered with the default theme
func New(accessible bool) *Forms {
	return &Forms{run: func(ctx context.Context, f *huh.Form) error {
		return f.WithTheme(huh.ThemeCharm()).WithAccessible(accessible).RunWithContext(ctx)
	}}
}

// WithRunner returns forms that run through r
func WithRunner(r Runner) *Forms {
	return &Forms{run: r}
}

// Login holds the login form values
type Login struct {
	Email    string
	Password string
}

// Login asks for credentials
func (f *Forms) Login(ctx context.Context) (Login, error) {
	var in Login
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Email").Value(&in.Email).Validate(Email),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&in.Password).Validate(Required("password")),
	).Title("Log in"))

	if err := f.run(ctx, form); err != nil {
		return Login{}, err
	}
	in.Email = strings.TrimSpace(in.Email)
	return in, nil
}

// Profile holds the text values of the registration and profile forms
type Profile struct {
	Username   string
	Email      string
	Password   string
	Age        string
	Height     string
	Weight     string
	Habit      string
	Preference string
}

// Register asks for a new account
func (f *Forms) Register(ctx context.Context) (backend.RegisterRequest, error) {
	var p Profile
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name *").Value(&p.Username).Validate(Required("name")),
			huh.NewInput().Title("Email *").Value(&p.Email).Validate(Email),
			huh.NewInput().Title("Password *").EchoMode(huh.EchoModePassword).Value(&p.Password).Validate(Required("password")),
		).Title("Create an account"),
		bodyGroup(&p),
	)

	if err := f.run(ctx, form); err != nil {
		return backend.RegisterRequest{}, err
	}
	return p.RegisterRequest()
}

// EditProfile asks for profile changes, prefilled from current
func (f *Forms) EditProfile(ctx context.Context, current session.User) (backend.ProfileUpdate, error) {
	p := FromUser(current)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name *").Value(&p.Username).Validate(Required("name")),
			huh.NewInput().Title("New password").Description("Leave empty to keep the current password").
				EchoMode(huh.EchoModePassword).Value(&p.Password),
		).Title("Edit profile"),
		bodyGroup(&p),
	)

	if err := f.run(ctx, form); err != nil {
		return backend.ProfileUpdate{}, err
	}
	return p.ProfileUpdate()
}

func bodyGroup(p *Profile) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().Title("Age").Value(&p.Age).Validate(Count("age", 150)),
		huh.NewInput().Title("Height (cm)").Value(&p.Height).Validate(Count("height", 0)),
		huh.NewInput().Title("Weight (kg)").Value(&p.Weight).Validate(Count("weight", 0)),
		huh.NewSelect[string]().Title("Eating habit").Options(Habits...).Value(&p.Habit),
		huh.NewText().Title("Food preference").Placeholder("Foods or ingredients you like").Value(&p.Preference),
	)
}

// FromUser prefills the profile form
func FromUser(u session.User) Profile {
	return Profile{
		Username:   u.Username,
		Email:      u.Email,
		Age:        countText(float64(u.Age)),
		Height:     countText(u.Height),
		Weight:     countText(u.Weight),
		Habit:      u.Habit,
		Preference: u.Preference,
	}
}

func countText(v float64) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(int(v))
}

// RegisterRequest converts the form values; empty numbers become 0
func (p Profile) RegisterRequest() (backend.RegisterRequest, error) {
	age, height, weight, err := p.counts()
	if err != nil {
		return backend.RegisterRequest{}, err
	}
	return backend.RegisterRequest{
		Username:   strings.TrimSpace(p.Username),
		Email:      strings.TrimSpace(p.Email),
		Password:   p.Password,
		Age:        age,
		Height:     height,
		Weight:     weight,
		Habit:      p.Habit,
		Preference: p.Preference,
	}, nil
}

// ProfileUpdate converts the form values; empty numbers become 0
func (p Profile) ProfileUpdate() (backend.ProfileUpdate, error) {
	age, height, weight, err := p.counts()
	if err != nil {
		return backend.ProfileUpdate{}, err
	}
	return backend.ProfileUpdate{
		Username:   strings.TrimSpace(p.Username),
		Password:   p.Password,
		Age:        age,
		Height:     height,
		Weight:     weight,
		Habit:      p.Habit,
		Preference: p.Preference,
	}, nil
}

func (p Profile) counts() (age, height, weight int, err error) {
	if age, err = parseCount("age", p.Age); err != nil {
		return
	}
	if height, err = parseCount("height", p.Height); err != nil {
		return
	}
	weight, err = parseCount("weight", p.Weight)
	return
}

// Upload holds the recipe upload form values
type Upload struct {
	ImagePath    string
	Instructions string
}

// Upload asks for a food photo and generation instructions
func (f *Forms) Upload(ctx context.Context, prefill Upload) (Upload, error) {
	in := prefill
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Image file").Placeholder("path/to/photo.jpg").Value(&in.ImagePath).Validate(ImagePath),
		huh.NewText().Title("Instructions").Placeholder("e.g. make it spicy, vegetarian, under 20 minutes").
			Value(&in.Instructions).Validate(Required("instructions")),
	).Title("Generate a recipe"))

	if err := f.run(ctx, form); err != nil {
		return Upload{}, err
	}
	in.ImagePath = strings.TrimSpace(in.ImagePath)
	return in, nil
}

// Satisfaction holds a recipe rating
type Satisfaction struct {
	Rating  int
	Comment string
}

// Satisfaction asks for a 1-5 rating and an optional comment
func (f *Forms) Satisfaction(ctx context.Context, recipeName string) (Satisfaction, error) {
	in := Satisfaction{Rating: 5}
	ratings := make([]huh.Option[int], 0, 5)
	for i := 5; i >= 1; i-- {
		ratings = append(ratings, huh.NewOption(strings.Repeat("*", i), i))
	}
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().Title("How was "+recipeName+"?").Options(ratings...).Value(&in.Rating),
		huh.NewText().Title("Comment").Value(&in.Comment),
	))

	if err := f.run(ctx, form); err != nil {
		return Satisfaction{}, err
	}
	return in, nil
}

// Substitution holds an ingredient swap
type Substitution struct {
	Original   string
	Substitute string
}

// Substitution asks which ingredient to replace and with what
func (f *Forms) Substitution(ctx context.Context, recipeName string) (Substitution, error) {
	var in Substitution
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Ingredient to replace").Value(&in.Original).Validate(Required("ingredient")),
		huh.NewInput().Title("Replace with").Value(&in.Substitute).Validate(Required("substitute")),
	).Title("Substitute an ingredient in " + recipeName))

	if err := f.run(ctx, form); err != nil {
		return Substitution{}, err
	}
	in.Original = strings.TrimSpace(in.Original)
	in.Substitute = strings.TrimSpace(in.Substitute)
	return in, nil
}

func parseCount(label, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a whole number", label)
	}
	return n, nil
}

// WrapAbort maps an aborted form to a friendlier error
func WrapAbort(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, huh.ErrUserAborted) {
		return fmt.Errorf("cancelled")
	}
	return fmt.Errorf("failed to run form: %w", err)
}
