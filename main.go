package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/makspace/kartabot/kartabot"
	"github.com/makspace/kartabot/kartabot/catalog"
	"github.com/makspace/kartabot/kartabot/database"
	"github.com/makspace/kartabot/kartabot/database/repositories"
	"github.com/makspace/kartabot/kartabot/dispenser"
	"github.com/makspace/kartabot/kartabot/handlers"
	"github.com/makspace/kartabot/kartabot/intake"
	"github.com/makspace/kartabot/kartabot/logger"
	"github.com/makspace/kartabot/kartabot/reminder"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	// The config decides the log level, but the handler has to exist
	// before anything logs.
	cfg, err := kartabot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))

	slog.Info("Starting KartaBot",
		slog.String("version", version),
		slog.String("commit", commit))

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	cards, err := catalog.Load(cfg.Cards.Path, cfg.Cards.ImageRoot)
	if err != nil {
		// An empty or broken catalog means no draw can ever be served.
		slog.Error("Failed to load card catalog", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Card catalog loaded", slog.Int("cards", cards.Size()))

	b := kartabot.New(cfg, version, commit)
	b.DB = db
	b.Catalog = cards

	if err := b.SetupClient(); err != nil {
		slog.Error("Failed to connect to Telegram", slog.Any("error", err))
		os.Exit(-1)
	}

	b.UserRepository = repositories.NewUserRepository(db.BunDB())
	b.DrawRepository = repositories.NewDrawRepository(db.BunDB())
	b.CustomerRepository = repositories.NewCustomerRepository(db.BunDB())

	b.Dispenser, err = dispenser.New(b.DrawRepository, cards)
	if err != nil {
		slog.Error("Failed to create card dispenser", slog.Any("error", err))
		os.Exit(-1)
	}

	notifier := handlers.NewAdminNotifier(b.Client, cfg.Bot.AdminChatID)
	b.Intake = intake.New(b.CustomerRepository, notifier)

	h := handlers.New(b.Client, b.UserRepository, b.Dispenser, b.Intake)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		h.Run(gCtx, b.Updates())
		return nil
	})

	if cfg.Reminder.Enabled {
		sweep := reminder.New(b.DrawRepository, func(telegramID int64, text string) error {
			_, err := b.Client.Send(tgbotapi.NewMessage(telegramID, text))
			return err
		})
		g.Go(func() error {
			sweep.Start(gCtx)
			return nil
		})
	}

	logger.LogSystem("Bot is running. Press CTRL-C to exit.")

	<-runCtx.Done()
	b.Client.StopReceivingUpdates()

	if err := g.Wait(); err != nil {
		slog.Error("Shutdown error", slog.Any("error", err))
	}

	logger.LogSystem("Bot stopped")
}
