package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"RecipeChat/internal/backend"
	"RecipeChat/internal/cache"
	"RecipeChat/internal/chat"
	"RecipeChat/internal/forms"
	"RecipeChat/internal/render"
)

// Gateway is the part of the backend the chat page calls
type Gateway interface {
	FetchNutrition(ctx context.Context, recipeID string) backend.Nutrition
	SubmitSatisfaction(ctx context.Context, recipeID string, rating int, comment string) error
	SubstituteIngredient(ctx context.Context, r backend.SubstituteRequest) backend.SubstituteResult
}

// Session names the current user
type Session interface {
	Username() string
}

// ChatBot represents the chat page
type ChatBot struct {
	controller *chat.Controller
	gateway    Gateway
	session    Session
	forms      *forms.Forms
	logger     *slog.Logger
	nutrition  *cache.Cache[backend.Nutrition]
	cookTick   time.Duration

	in  io.Reader
	out io.Writer
	mu  sync.Mutex
}

// Option configures a ChatBot
type Option func(*ChatBot)

// WithIO replaces stdin and stdout
func WithIO(in io.Reader, out io.Writer) Option {
	return func(cb *ChatBot) {
		cb.in = in
		cb.out = out
	}
}

// WithForms enables interactive forms for commands given without arguments
func WithForms(f *forms.Forms) Option {
	return func(cb *ChatBot) { cb.forms = f }
}

// WithCookingTick sets the wall time of one countdown second
func WithCookingTick(d time.Duration) Option {
	return func(cb *ChatBot) { cb.cookTick = d }
}

// NewChatBot creates a new ChatBot instance
func NewChatBot(ctrl *chat.Controller, gw Gateway, sess Session, logger *slog.Logger, opts ...Option) *ChatBot {
	cb := &ChatBot{
		controller: ctrl,
		gateway:    gw,
		session:    sess,
		logger:     logger,
		nutrition:  cache.New[backend.Nutrition](10 * time.Minute),
		cookTick:   time.Second,
		in:         os.Stdin,
		out:        os.Stdout,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

func (cb *ChatBot) printf(format string, args ...any) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	fmt.Fprintf(cb.out, format, args...)
}

func (cb *ChatBot) println(args ...any) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	fmt.Fprintln(cb.out, args...)
}

// show renders messages as they are appended; the user's own lines are already on screen
func (cb *ChatBot) show(m chat.ChatMessage) {
	if m.SentByCurrentUser {
		return
	}
	if out := render.Message(m, cb.session.Username()); out != "" {
		cb.println(out)
	}
}

// sendMessage publishes a line typed by the user
func (cb *ChatBot) sendMessage(text string, image *chat.Image) error {
	err := cb.controller.Send(text, image)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chat.ErrNotConnected):
		return fmt.Errorf("%w: use /retry to reconnect", err)
	case errors.Is(err, chat.ErrNotAuthenticated):
		return fmt.Errorf("%w: run 'recipechat login' first", err)
	case errors.Is(err, chat.ErrSendFailed):
		// the controller already appended a notice
		cb.logger.Warn("message not delivered")
		return nil
	default:
		return err
	}
}

// selectRecipe picks a recipe message by its 1-based position among recipe
// messages, or the latest when arg is empty
func (cb *ChatBot) selectRecipe(arg string) (chat.ChatMessage, error) {
	recipes := cb.controller.RecipeMessages()
	if len(recipes) == 0 {
		return chat.ChatMessage{}, fmt.Errorf("no recipe in this chat yet")
	}
	if arg == "" {
		return recipes[len(recipes)-1], nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(recipes) {
		return chat.ChatMessage{}, fmt.Errorf("recipe number must be between 1 and %d", len(recipes))
	}
	return recipes[n-1], nil
}

// handleCommand handles special commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string, scanner *bufio.Scanner) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/retry":
		cb.controller.Reconnect(ctx)
		return false, nil

	case "/recipes":
		recipes := cb.controller.RecipeMessages()
		if len(recipes) == 0 {
			cb.println("No recipe in this chat yet.")
			return false, nil
		}
		cb.println("\nRecipes in this chat:")
		for i, m := range recipes {
			cb.printf("%d. %s (%d min)\n", i+1, m.Recipe.Name, m.Recipe.TotalTimeMinutes)
		}
		cb.println()
		return false, nil

	case "/show":
		m, err := cb.selectRecipe(arg(parts, 1))
		if err != nil {
			return false, err
		}
		cb.println(render.Recipe(*m.Recipe))
		return false, nil

	case "/nutrition":
		m, err := cb.selectRecipe(arg(parts, 1))
		if err != nil {
			return false, err
		}
		cb.println(render.Nutrition(m.Recipe.Name, cb.fetchNutrition(ctx, m.RecipeID)))
		return false, nil

	case "/rate":
		return false, cb.rate(ctx, parts[1:])

	case "/substitute":
		return false, cb.substitute(ctx, parts[1:])

	case "/cook":
		m, err := cb.selectRecipe(arg(parts, 1))
		if err != nil {
			return false, err
		}
		cb.cook(*m.Recipe, scanner)
		return false, nil

	case "/image":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /image <path> [message]")
		}
		path := parts[1]
		if err := forms.ImagePath(path); err != nil {
			return false, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return false, fmt.Errorf("failed to read image: %w", err)
		}
		return false, cb.sendMessage(strings.Join(parts[2:], " "), &chat.Image{Ref: path, Data: data})

	case "/help":
		cb.println("Available commands:")
		cb.println("  /quit, /exit                          - Leave the chat")
		cb.println("  /retry                                - Reconnect to the chat server")
		cb.println("  /recipes                              - List recipes in this chat")
		cb.println("  /show [n]                             - Show a recipe (default: latest)")
		cb.println("  /nutrition [n]                        - Show nutrition facts")
		cb.println("  /rate <n> <1-5> [comment]             - Rate a recipe")
		cb.println("  /substitute <n> [original substitute] - Swap an ingredient")
		cb.println("  /cook [n]                             - Cook a recipe step by step")
		cb.println("  /image <path> [message]               - Send a photo with a message")
		cb.println("  /help                                 - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}

func arg(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

func (cb *ChatBot) fetchNutrition(ctx context.Context, recipeID string) backend.Nutrition {
	key := cache.GenerateKey(cb.session.Username(), recipeID)
	if n, ok := cb.nutrition.Load(key); ok {
		cb.logger.Debug("nutrition cache hit", "recipe_id", recipeID)
		return n
	}
	n := cb.gateway.FetchNutrition(ctx, recipeID)
	if !n.IsPlaceholder() {
		cb.nutrition.Store(key, n)
	}
	return n
}

func (cb *ChatBot) rate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /rate <n> <1-5> [comment]")
	}
	m, err := cb.selectRecipe(args[0])
	if err != nil {
		return err
	}

	var in forms.Satisfaction
	switch {
	case len(args) >= 2:
		if err := forms.Rating(args[1]); err != nil {
			return err
		}
		in.Rating, _ = strconv.Atoi(args[1])
		in.Comment = strings.Join(args[2:], " ")
	case cb.forms != nil:
		if in, err = cb.forms.Satisfaction(ctx, m.Recipe.Name); err != nil {
			return forms.WrapAbort(err)
		}
	default:
		return fmt.Errorf("usage: /rate <n> <1-5> [comment]")
	}

	if err := cb.gateway.SubmitSatisfaction(ctx, m.RecipeID, in.Rating, in.Comment); err != nil {
		return fmt.Errorf("failed to submit rating: %w", err)
	}
	cb.println("Thanks for your feedback!")
	return nil
}

func (cb *ChatBot) substitute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /substitute <n> [original substitute]")
	}
	m, err := cb.selectRecipe(args[0])
	if err != nil {
		return err
	}

	var in forms.Substitution
	switch {
	case len(args) >= 3:
		in = forms.Substitution{Original: args[1], Substitute: strings.Join(args[2:], " ")}
	case cb.forms != nil:
		if in, err = cb.forms.Substitution(ctx, m.Recipe.Name); err != nil {
			return forms.WrapAbort(err)
		}
	default:
		return fmt.Errorf("usage: /substitute <n> <original> <substitute>")
	}

	cb.printf("Creating a recipe with %s instead of %s...\n", in.Substitute, in.Original)
	res := cb.gateway.SubstituteIngredient(ctx, backend.SubstituteRequest{
		OriginalIngredient:   in.Original,
		SubstituteIngredient: in.Substitute,
		RecipeName:           m.Recipe.Name,
		RecipeID:             m.RecipeID,
	})
	cb.controller.AddSubstitution(res)
	return nil
}

// Run starts the chat page and blocks until the user quits or input ends
func (cb *ChatBot) Run(ctx context.Context) error {
	cb.controller.Subscribe(cb.show)

	cb.println("=== RecipeChat ===")
	if name := cb.session.Username(); name != "" {
		cb.printf("Logged in as: %s\n", name)
	}
	cb.println("Type /help for commands, /quit to exit")
	cb.println()

	cb.controller.Mount(ctx)

	scanner := bufio.NewScanner(cb.in)
	for {
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input, scanner)
			if err != nil {
				cb.printf("Error: %v\n", err)
				cb.logger.Error("command error", "command", strings.Fields(input)[0], "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		if err := cb.sendMessage(input, nil); err != nil {
			cb.printf("Error: %v\n", err)
			cb.logger.Error("failed to send message", "error", err)
		}
	}

	if err := cb.controller.Teardown(ctx); err != nil {
		cb.logger.Error("failed to archive chat on exit", "error", err)
		return err
	}

	cb.println("Goodbye!")
	return nil
}
