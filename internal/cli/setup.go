package cli

import (
	"fmt"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/k-egor-smirnov/lift/internal/config"
	"github.com/k-egor-smirnov/lift/internal/database"
	"github.com/k-egor-smirnov/lift/internal/eventbus"
	"github.com/k-egor-smirnov/lift/internal/events"
	"github.com/k-egor-smirnov/lift/internal/notify"
	"github.com/k-egor-smirnov/lift/internal/syncqueue"
)

// newLogger writes to stderr so command output on stdout stays clean.
func newLogger(verbose bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()
	if verbose {
		return logger.Level(zerolog.DebugLevel)
	}
	return logger.Level(zerolog.InfoLevel)
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv("LIFT_CONFIG_PATH")
	}
	return config.Load(path)
}

// newRedisClient returns nil when Redis is not configured; callers then
// fall back to the SQLite lease lock.
func newRedisClient(cfg *config.Config) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func buildBus(cfg *config.Config, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) *eventbus.Bus {
	var locker eventbus.Locker
	if rdb != nil {
		locker = eventbus.NewRedisLocker(rdb, cfg.LockLease(), logger)
	} else {
		locker = eventbus.NewLeaseLocker(db, cfg.LockLease(), logger)
	}

	busCfg := &eventbus.Config{
		Interval: cfg.BusInterval(),
		LockName: cfg.Bus.LockName,
		Backoff: eventbus.Backoff{
			BaseDelay:   cfg.BaseDelay(),
			MaxAttempts: cfg.Bus.MaxAttempts,
		},
		StuckTimeout: cfg.StuckTimeout(),
	}

	return eventbus.New(busCfg, db, db, locker, events.NewCodec(), logger)
}

// subscribeHandlers wires the standard consumers. Both serve and the
// one-shot process command go through here: a pass run without the
// consumers would complete envelopes without their side effects.
func subscribeHandlers(cfg *config.Config, bus *eventbus.Bus, db *database.DB, logger *zerolog.Logger) error {
	if cfg.Telegram.BotToken != "" {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("failed to create telegram bot: %w", err)
		}
		api.Debug = cfg.Telegram.Debug

		notifier := notify.NewTaskNotifier(api, cfg.Telegram.ChatID, logger)
		bus.Subscribe(events.TypeTaskCompleted, notifier)
		bus.Subscribe(events.TypeSummaryGenerated, notifier)
	} else {
		logger.Warn().Msg("telegram.bot_token is empty, notifications disabled")
	}

	bus.SubscribeToAll(syncqueue.NewTracker(db, logger))
	return nil
}
