package cli

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/onelinediary/client/internal/client/ai"
	"github.com/onelinediary/client/internal/client/cache"
	"github.com/onelinediary/client/internal/client/config"
	"github.com/onelinediary/client/internal/client/remote"
	"github.com/onelinediary/client/internal/client/store"
	"github.com/onelinediary/client/internal/logging"
)

type App struct {
	config *config.Config
	client *remote.RESTClient
	store  *store.Store
	cache  *cache.Cache
	log    logging.Logger
	reader *bufio.Reader
	out    io.Writer
	email  string
	now    func() time.Time
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	// The REPL owns stdout; structured logs go to stderr and stay quiet
	// unless something is actually wrong.
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	db, err := cache.Open(ctx, c.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	apiClient := remote.NewRESTClient(c.SupabaseURL, c.SupabaseAnonKey, logger)

	var generator *openai.Client
	if c.OpenAIAPIKey != "" {
		generator = openai.NewClient(c.OpenAIAPIKey)
	}
	feedback := ai.NewService(apiClient, generator, c.OpenAIModel, logger)

	st := store.New(apiClient, db, feedback, logger)

	return &App{
		config: c,
		client: apiClient,
		store:  st,
		cache:  db,
		log:    logger,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		now:    time.Now,
	}, nil
}

func (a *App) Run(ctx context.Context) {
	a.store.Hydrate(ctx)

	watcherCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.store.StartOnlineWatcher(watcherCtx, a.config.OnlineCheckInterval)

	a.Root(ctx)

	a.store.Close()
	if err := a.cache.Close(); err != nil {
		a.log.Warn(ctx, "closing cache", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.client.LoggedIn()
}
