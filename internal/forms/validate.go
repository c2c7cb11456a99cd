package forms

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// imageExtensions are the photo formats the backend accepts
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".heic": true,
}

// Required returns a validator that checks for non-empty values
func Required(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

// Email checks for a non-empty, well-formed address
func Email(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email is required")
	}
	if err := validate.Var(s, "email"); err != nil {
		return fmt.Errorf("enter a valid email address")
	}
	return nil
}

// Count returns a validator for optional whole numbers; max <= 0 means unbounded
func Count(label string, max int) func(string) error {
	return func(s string) error {
		n, err := parseCount(label, s)
		if err != nil {
			return err
		}
		if max > 0 && n > max {
			return fmt.Errorf("%s must be at most %d", label, max)
		}
		return nil
	}
}

// Rating checks a 1-5 rating given as text
func Rating(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	return nil
}

// ImagePath checks that s names a readable image file
func ImagePath(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("select an image")
	}
	if !imageExtensions[strings.ToLower(filepath.Ext(s))] {
		return fmt.Errorf("only image files can be uploaded")
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("cannot read %s", s)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", s)
	}
	return nil
}
