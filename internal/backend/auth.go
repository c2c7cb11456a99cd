package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"RecipeChat/internal/session"
)

// tokenExtractor pulls a session token out of a login response
type tokenExtractor struct {
	name    string
	extract func(*response) (string, bool)
}

var textTokenPattern = regexp.MustCompile(`accessToken: (.*?)(?:\n|$)`)

// loginExtractors are tried in order; the first hit wins
var loginExtractors = []tokenExtractor{
	{name: "header", extract: tokenFromHeader},
	{name: "body", extract: tokenFromJSONBody},
	{name: "text", extract: tokenFromTextBody},
}

func tokenFromHeader(r *response) (string, bool) {
	auth := r.header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return token, token != ""
}

func tokenFromJSONBody(r *response) (string, bool) {
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(r.body, &body); err != nil {
		return "", false
	}
	token := strings.TrimSpace(body.AccessToken)
	return token, token != ""
}

func tokenFromTextBody(r *response) (string, bool) {
	m := textTokenPattern.FindSubmatch(r.body)
	if m == nil {
		return "", false
	}
	token := strings.TrimSpace(string(m[1]))
	return token, token != ""
}

// Login authenticates with email and password and starts a session with the returned token
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body := LoginRequest{Email: email, Password: password}
	if err := c.check(body); err != nil {
		return LoginResult{}, err
	}

	req, err := jsonRequest("backend.login", http.MethodPost, "/api/auth/login", body)
	if err != nil {
		return LoginResult{}, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to login: %w", err)
	}

	for _, ex := range loginExtractors {
		token, ok := ex.extract(resp)
		if !ok {
			continue
		}
		if err := c.session.Begin(token); err != nil {
			return LoginResult{}, fmt.Errorf("failed to start session: %w", err)
		}
		c.logger.Info("login succeeded", "token_source", ex.name)
		return LoginResult{Token: token, Source: ex.name}, nil
	}

	c.logger.Warn("login response carried no token", "status", resp.status)
	return LoginResult{}, fmt.Errorf("failed to login: %w", session.ErrMissingToken)
}

// Register creates a new account. It does not start a session.
func (c *Client) Register(ctx context.Context, r RegisterRequest) error {
	if err := c.check(r); err != nil {
		return err
	}

	req, err := jsonRequest("backend.register", http.MethodPost, "/api/auth/register", r)
	if err != nil {
		return err
	}
	if _, err := c.do(ctx, req); err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}

	c.logger.Info("registration succeeded", "username", r.Username)
	return nil
}

// FetchProfile loads the current user's profile and caches it in the session
func (c *Client) FetchProfile(ctx context.Context) (session.User, error) {
	req, _ := jsonRequest("backend.fetch_profile", http.MethodGet, "/api/mypage", nil)
	resp, err := c.do(ctx, req)
	if err != nil {
		return session.User{}, fmt.Errorf("failed to fetch profile: %w", err)
	}

	var user session.User
	if err := decodeJSON(resp.body, &user); err != nil {
		return session.User{}, fmt.Errorf("failed to fetch profile: %w", err)
	}

	c.session.SetProfile(user)
	return user, nil
}

// UpdateProfile saves profile changes and returns the updated user
func (c *Client) UpdateProfile(ctx context.Context, u ProfileUpdate) (session.User, error) {
	if err := c.check(u); err != nil {
		return session.User{}, err
	}

	req, err := jsonRequest("backend.update_profile", http.MethodPost, "/api/mypage", u)
	if err != nil {
		return session.User{}, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return session.User{}, fmt.Errorf("failed to update profile: %w", err)
	}

	var user session.User
	if len(strings.TrimSpace(string(resp.body))) == 0 || decodeJSON(resp.body, &user) != nil || user.Username == "" {
		// some backends answer with an empty body; echo what was saved
		prev, _ := c.session.Profile()
		user = session.User{
			Username:   u.Username,
			Email:      prev.Email,
			Age:        u.Age,
			Height:     float64(u.Height),
			Weight:     float64(u.Weight),
			Habit:      u.Habit,
			Preference: u.Preference,
		}
	}

	c.session.SetProfile(user)
	c.logger.Info("profile updated", "username", user.Username)
	return user, nil
}
