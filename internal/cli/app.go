package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/Cobzariu/CarApp/internal/cache"
	"github.com/Cobzariu/CarApp/internal/config"
	"github.com/Cobzariu/CarApp/internal/logging"
	"github.com/Cobzariu/CarApp/internal/models"
	"github.com/Cobzariu/CarApp/internal/netmon"
	"github.com/Cobzariu/CarApp/internal/remote"
	"github.com/Cobzariu/CarApp/internal/store"
)

// App wires the sync store, the reachability monitor and the realtime
// listener into an interactive client session.
type App struct {
	config  *config.Config
	logger  logging.Logger
	client  remote.Client
	store   *store.Store
	monitor *netmon.Monitor
	db      *sql.DB

	listener *remote.Listener
	reader   *bufio.Reader
}

func NewApp(c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	ctx := context.Background()

	cacheStore, db, err := cache.Open(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize offline cache: %w", err)
	}

	client := remote.NewHTTPClient(c.ServerBaseURL, remote.WithLogger(logger))
	st := store.New(cacheStore, client, logger)

	app := &App{
		config: c,
		logger: logger,
		client: client,
		store:  st,
		db:     db,
		reader: bufio.NewReader(os.Stdin),
	}
	app.monitor = netmon.New(client.Probe, c.OnlineCheckInterval, app.onOnline, logger)
	return app, nil
}

// onOnline fires on each offline→online edge. It must not block the
// monitor, so the replay runs in its own goroutine.
func (a *App) onOnline() {
	go func() {
		ctx := context.Background()
		if !a.isLoggedIn() {
			return
		}
		a.store.ReplayPending(ctx)
		a.store.Load(ctx)
	}()
}

func (a *App) isLoggedIn() bool {
	return a.store.Token() != ""
}

// startSession (re)establishes the realtime listener for the current
// token and refreshes the view. A failed websocket dial is not fatal:
// the session continues without push updates.
func (a *App) startSession(ctx context.Context) {
	a.closeListener()

	token := a.store.Token()
	if token == "" {
		return
	}

	l := remote.NewListener(a.config.ServerBaseURL, a.logger)
	err := l.Connect(ctx, token, func(eventType string, car *models.Car) {
		a.store.ApplyRemoteEvent(eventType, car)
	})
	if err != nil {
		a.logger.Warn(ctx, "realtime listener unavailable", "err", err)
	} else {
		a.listener = l
	}

	a.store.Load(ctx)
	if a.monitor.Connected() {
		a.store.ReplayPending(ctx)
	}
}

func (a *App) closeListener() {
	if a.listener != nil {
		_ = a.listener.Close()
		a.listener = nil
	}
}

// Run drives the interactive session until the user exits.
func (a *App) Run(ctx context.Context) {
	defer func() {
		a.closeListener()
		a.monitor.Stop()
		_ = a.db.Close()
	}()

	a.monitor.Start(ctx)

	printlnFn("Welcome to CarApp CLI (type 'help' for commands)")
	_ = a.Login(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}

func (a *App) getStatus() string {
	mode := "offline"
	if a.monitor.Connected() {
		mode = "online"
	}
	if !a.isLoggedIn() {
		return fmt.Sprintf("(%s)", mode)
	}
	return fmt.Sprintf("(%s, authenticated)", mode)
}
