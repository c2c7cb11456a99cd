package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"RecipeChat/internal/recipe"
)

// Phrases the backend uses in a description when a substitution cannot work
var infeasiblePhrases = []string{
	"적절하지 않",
	"생성할 수 없",
	"not appropriate",
	"cannot be generated",
	"cannot be substituted",
}

const substituteErrorMessage = "An error occurred while substituting the ingredient. Please try again."

// GenerateRecipe uploads an image with free-text instructions and returns the raw recipe payload
func (c *Client) GenerateRecipe(ctx context.Context, image io.Reader, filename, instructions string) (recipe.Raw, error) {
	if image == nil {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(instructions) == "" {
		return nil, fmt.Errorf("%w: instructions are required", ErrInvalidRequest)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := w.WriteField("instructions", instructions); err != nil {
		return nil, fmt.Errorf("failed to write instructions: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	resp, err := c.do(ctx, request{
		span:        "backend.generate_recipe",
		method:      http.MethodPost,
		path:        "/api/recipe/generate",
		body:        &buf,
		contentType: w.FormDataContentType(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate recipe: %w", err)
	}

	raw, err := recipe.Decode(resp.body)
	if err != nil {
		return nil, fmt.Errorf("failed to generate recipe: %w", err)
	}

	c.logger.Info("recipe generated", "recipe_id", raw.ID(), "name", raw["name"])
	return raw, nil
}

// FetchNutrition returns nutrition facts for a recipe.
// It never fails: without a token, or on any error, the placeholder is returned.
func (c *Client) FetchNutrition(ctx context.Context, recipeID string) Nutrition {
	if !c.session.Authenticated() {
		c.logger.Debug("no token, serving placeholder nutrition", "recipe_id", recipeID)
		return PlaceholderNutrition()
	}
	if recipeID == "" {
		return PlaceholderNutrition()
	}

	req, _ := jsonRequest("backend.fetch_nutrition", http.MethodGet,
		"/api/recipe/"+url.PathEscape(recipeID)+"/nutrition", nil)
	resp, err := c.do(ctx, req)
	if err != nil {
		c.logger.Warn("failed to fetch nutrition, serving placeholder", "recipe_id", recipeID, "error", err)
		return PlaceholderNutrition()
	}

	var n Nutrition
	if err := decodeJSON(resp.body, &n); err != nil {
		c.logger.Warn("malformed nutrition response, serving placeholder", "recipe_id", recipeID, "error", err)
		return PlaceholderNutrition()
	}
	return n
}

// SubmitSatisfaction records a 1-5 rating with an optional comment for a recipe
func (c *Client) SubmitSatisfaction(ctx context.Context, recipeID string, rating int, comment string) error {
	if recipeID == "" {
		return fmt.Errorf("%w: recipe id is required", ErrInvalidRequest)
	}
	body := SatisfactionRequest{Rate: rating, Comment: comment}
	if err := c.check(body); err != nil {
		return err
	}

	req, err := jsonRequest("backend.submit_satisfaction", http.MethodPost,
		"/api/recipe/"+url.PathEscape(recipeID)+"/satisfaction", body)
	if err != nil {
		return err
	}
	if _, err := c.do(ctx, req); err != nil {
		return fmt.Errorf("failed to submit satisfaction: %w", err)
	}

	c.logger.Info("satisfaction submitted", "recipe_id", recipeID, "rating", rating)
	return nil
}

// SubstituteIngredient asks the backend to rework a recipe with one ingredient replaced.
// Infeasible substitutions and transport failures both come back as Success=false.
func (c *Client) SubstituteIngredient(ctx context.Context, r SubstituteRequest) SubstituteResult {
	if err := c.check(r); err != nil {
		return SubstituteResult{Message: "Please enter both the original and the substitute ingredient."}
	}

	req, err := jsonRequest("backend.substitute_ingredient", http.MethodPost, "/api/recipe/substitute", substituteBody{
		OriginalIngredient:   r.OriginalIngredient,
		SubstituteIngredient: r.SubstituteIngredient,
		RecipeName:           r.RecipeName,
		RecipeID:             wireID(r.RecipeID),
	})
	if err != nil {
		return SubstituteResult{Message: substituteErrorMessage}
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		c.logger.Warn("substitution request failed", "error", err)
		return SubstituteResult{Message: substituteErrorMessage}
	}

	var raw recipe.Raw
	if len(bytes.TrimSpace(resp.body)) > 0 {
		raw, _ = recipe.Decode(resp.body)
	}

	if reason, ok := infeasible(raw); ok {
		c.logger.Info("substitution infeasible",
			"original", r.OriginalIngredient,
			"substitute", r.SubstituteIngredient,
			"reason", reason)
		msg, _ := raw["description"].(string)
		if strings.TrimSpace(msg) == "" {
			msg = fmt.Sprintf("%s cannot be substituted with %s.", r.OriginalIngredient, r.SubstituteIngredient)
		}
		return SubstituteResult{Message: msg}
	}

	return SubstituteResult{Success: true, Recipe: raw}
}

// infeasible reports whether a substitution response describes a recipe that could not be made
func infeasible(raw recipe.Raw) (string, bool) {
	if raw == nil {
		return "empty response", true
	}
	if desc, ok := raw["description"].(string); ok {
		for _, phrase := range infeasiblePhrases {
			if strings.Contains(desc, phrase) {
				return "description", true
			}
		}
	}
	if items, ok := raw["ingredients"].([]any); !ok || len(items) == 0 {
		return "no ingredients", true
	}
	if items, ok := raw["instructions"].([]any); !ok || len(items) == 0 {
		return "no instructions", true
	}
	return "", false
}

// wireID sends numeric identifiers as JSON numbers and anything else as a string
func wireID(id string) any {
	if id == "" {
		return nil
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
