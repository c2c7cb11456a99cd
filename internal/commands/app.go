package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"RecipeChat/internal/backend"
	"RecipeChat/internal/chat"
	"RecipeChat/internal/config"
	"RecipeChat/internal/forms"
	"RecipeChat/internal/handoff"
	"RecipeChat/internal/messaging"
	"RecipeChat/internal/session"
	"RecipeChat/internal/store"
	"RecipeChat/internal/telemetry"
)

// App wires the components shared by every command. Exactly one messaging
// channel exists per App.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	DB          *sql.DB
	Session     *session.State
	Backend     *backend.Client
	Channel     *messaging.Channel
	Handoff     *handoff.Slot
	Transcripts *store.TranscriptStore
	Forms       *forms.Forms

	out     io.Writer
	errOut  io.Writer
	closers []func()
}

// NewApp initializes logging, telemetry, storage and the backend clients
func NewApp(ctx context.Context, cfg *config.Config, out, errOut io.Writer, accessible bool) (*App, error) {
	a := &App{Config: cfg, Handoff: &handoff.Slot{}, out: out, errOut: errOut}

	logger, closeLog, err := telemetry.InitLogger(cfg.Log.Dir, cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.Logger = logger
	a.closers = append(a.closers, closeLog)

	tracer, meter := telemetry.Noop()
	if cfg.Telemetry.Enabled {
		var shutdown func()
		tracer, meter, shutdown, err = telemetry.InitTelemetry(ctx, cfg.Log.Dir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		a.closers = append(a.closers, shutdown)
	}

	db, err := telemetry.InitDB(cfg.Storage.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	})

	if cfg.Log.Debug {
		logger.Info("Debug mode enabled")
	}

	a.Session = session.NewState(store.NewTokenStore(db), logger)
	a.Transcripts = store.NewTranscriptStore(db)
	a.Forms = forms.New(accessible)

	a.Backend = backend.NewClient(cfg.API.BaseURL, a.Session, logger,
		backend.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		backend.WithTelemetry(tracer, meter),
		backend.WithUnauthorizedHandler(a.loginRequired),
	)

	dialer, err := messaging.NewStompDialer(cfg.Broker.URL, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create broker dialer: %w", err)
	}
	a.Channel = messaging.New(dialer, a.Session,
		messaging.WithLogger(logger),
		messaging.WithReconnectDelay(cfg.Broker.ReconnectDelay),
		messaging.WithMeter(meter),
	)

	return a, nil
}

// loginRequired is the unauthorized hook: the session is gone, send the user to login
func (a *App) loginRequired() {
	fmt.Fprintln(a.errOut, "Authentication required. Log in with: recipechat login")
}

// NewChat creates a chat controller archiving into the transcript store
func (a *App) NewChat() *chat.Controller {
	return chat.NewController(a.Channel, a.Session, a.Handoff, a.Logger, chat.WithArchive(a.Transcripts))
}

// EnsureProfile loads the profile when a persisted token has none yet
func (a *App) EnsureProfile(ctx context.Context) {
	if !a.Session.Authenticated() {
		return
	}
	if _, ok := a.Session.Profile(); ok {
		return
	}
	if _, err := a.Backend.FetchProfile(ctx); err != nil {
		a.Logger.Warn("failed to load profile", "error", err)
	}
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() {
	if a.Channel != nil {
		a.Channel.Disconnect()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
