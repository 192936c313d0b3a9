package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"guidance-lab/auth"
	"guidance-lab/internal"
	"guidance-lab/moderation"
	"guidance-lab/observability"
	"guidance-lab/repositories"
	"guidance-lab/runtime"
	"guidance-lab/runtime/workers"
	"guidance-lab/search"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages their lifecycle, and centralizes
// error reporting, so that every defer executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Stores (BadgerDB for records, Bluge for topic search)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = writer.Close()
	}()

	// 3. Repositories
	sessionRepo, err := repositories.NewSessionRepository(db, log)
	if err != nil {
		return fmt.Errorf("session repository failed: %w", err)
	}
	defer func() { _ = sessionRepo.Close() }()

	repos := runtime.Repos{
		Sessions:      sessionRepo,
		Messages:      repositories.NewMessageRepository(db, log),
		Notifications: repositories.NewNotificationRepository(db, log),
		Presence:      repositories.NewPresenceRepository(db, log, config.PresenceStaleness),
		Availability:  repositories.NewAvailabilityRepository(db, log),
	}
	repos.Stats = repositories.NewStatsRepository(db, log, sessionRepo)

	// 4. Moderation
	moderator, err := loadModerator(config)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}

	// 5. Core assembly
	monitoring := observability.NewMonitoringManager(log)
	core := runtime.NewCore(
		log,
		workers.NewSupervisor(log, config.RestartInterval),
		runtime.NewRegistry(),
		monitoring,
		repos,
		search.NewIndex(writer, log),
		moderator,
		auth.NewAuthenticator([]byte(config.AuthSecret), config.AuthTokenDuration),
		runtime.Settings{
			BufferSize:        config.BufferSize,
			NotificationLimit: config.NotificationLimit,
			SinkTimeout:       config.SinkTimeout,
			PushTimeout:       config.PushTimeout,
			OperationTimeout:  config.OperationTimeout,
			PresenceStaleness: config.PresenceStaleness,
			HeartbeatInterval: config.HeartbeatInterval,
			MetricInterval:    config.MetricInterval,
		},
	)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		core.Start(groupCtx)
		return nil
	})
	g.Go(func() error {
		monitoring.Listen(groupCtx, config.MetricInterval)
		return nil
	})

	log.Info("Guidance core started")
	if err := g.Wait(); err != nil {
		return err
	}
	core.Stop()
	log.Info("Program stopped cleanly")
	return nil
}

// loadModerator builds the censor from the configured word list. Without a
// list, messages pass through untouched.
func loadModerator(config internal.Config) (*moderation.Moderator, error) {
	if config.ModerationWordsFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(config.ModerationWordsFile)
	if err != nil {
		return nil, err
	}
	words := strings.Fields(string(raw))
	if len(words) == 0 {
		return nil, nil
	}
	r := []rune(config.ModerationCharReplacement)
	if len(r) != 1 {
		return nil, fmt.Errorf("MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			config.ModerationCharReplacement)
	}
	moderator, err := moderation.NewModerator(words, r[0])
	if err != nil {
		return nil, err
	}
	return &moderator, nil
}
