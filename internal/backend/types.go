package backend

import "RecipeChat/internal/recipe"

// LoginRequest represents the request body for POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries the extracted session token
type LoginResult struct {
	Token string
	// Source names the extractor that found the token ("header", "body" or "text")
	Source string
}

// RegisterRequest represents the request body for POST /api/auth/register
type RegisterRequest struct {
	Username   string `json:"username" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	Age        int    `json:"age" validate:"gte=0,lte=150"`
	Height     int    `json:"height" validate:"gte=0"`
	Weight     int    `json:"weight" validate:"gte=0"`
	Habit      string `json:"habit"`
	Preference string `json:"preference"`
}

// ProfileUpdate represents the request body for POST /api/mypage.
// An empty Password leaves the password unchanged.
type ProfileUpdate struct {
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password,omitempty"`
	Age        int    `json:"age" validate:"gte=0,lte=150"`
	Height     int    `json:"height" validate:"gte=0"`
	Weight     int    `json:"weight" validate:"gte=0"`
	Habit      string `json:"habit"`
	Preference string `json:"preference"`
}

// SatisfactionRequest represents the request body for POST /api/recipe/{id}/satisfaction
type SatisfactionRequest struct {
	Rate    int    `json:"rate" validate:"min=1,max=5"`
	Comment string `json:"comment"`
}

// SubstituteRequest describes an ingredient substitution for an existing recipe
type SubstituteRequest struct {
	OriginalIngredient   string `validate:"required"`
	SubstituteIngredient string `validate:"required"`
	RecipeName           string
	RecipeID             string
}

// substituteBody is the wire form of SubstituteRequest; numeric ids go out as numbers
type substituteBody struct {
	OriginalIngredient   string `json:"originalIngredient"`
	SubstituteIngredient string `json:"substituteIngredient"`
	RecipeName           string `json:"recipeName"`
	RecipeID             any    `json:"recipeId"`
}

// SubstituteResult is the tagged outcome of a substitution request.
// Domain-infeasible substitutions are reported with Success=false, not as errors.
type SubstituteResult struct {
	Success bool
	Recipe  recipe.Raw
	Message string
}

// Nutrition represents the response from GET /api/recipe/{id}/nutrition
type Nutrition struct {
	Calories     float64  `json:"calories"`
	Carbohydrate float64  `json:"carbohydrate"`
	Protein      float64  `json:"protein"`
	Fat          float64  `json:"fat"`
	Sugar        float64  `json:"sugar"`
	Sodium       float64  `json:"sodium"`
	SaturatedFat float64  `json:"saturatedFat"`
	TransFat     float64  `json:"transFat"`
	Cholesterol  float64  `json:"cholesterol"`
	DietaryFiber *float64 `json:"dietaryFiber,omitempty"`
	VitaminA     *float64 `json:"vitaminA,omitempty"`
	VitaminC     *float64 `json:"vitaminC,omitempty"`
	Calcium      *float64 `json:"calcium,omitempty"`
	Iron         *float64 `json:"iron,omitempty"`
}

// PlaceholderNutrition is served whenever real nutrition data is unavailable
func PlaceholderNutrition() Nutrition {
	return Nutrition{
		Calories:     500.0,
		Carbohydrate: 30.0,
		Protein:      25.0,
		Fat:          15.0,
		Sugar:        5.0,
		Sodium:       400.0,
		SaturatedFat: 3.0,
		TransFat:     0.0,
		Cholesterol:  50.0,
	}
}

// IsPlaceholder reports whether n is the placeholder served when data is unavailable
func (n Nutrition) IsPlaceholder() bool {
	p := PlaceholderNutrition()
	return n.DietaryFiber == nil && n.VitaminA == nil && n.VitaminC == nil &&
		n.Calcium == nil && n.Iron == nil &&
		n.Calories == p.Calories && n.Carbohydrate == p.Carbohydrate &&
		n.Protein == p.Protein && n.Fat == p.Fat && n.Sugar == p.Sugar &&
		n.Sodium == p.Sodium && n.SaturatedFat == p.SaturatedFat &&
		n.TransFat == p.TransFat && n.Cholesterol == p.Cholesterol
}
