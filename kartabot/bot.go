package kartabot

import (
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/makspace/kartabot/kartabot/catalog"
	"github.com/makspace/kartabot/kartabot/database"
	"github.com/makspace/kartabot/kartabot/database/repositories"
	"github.com/makspace/kartabot/kartabot/dispenser"
	"github.com/makspace/kartabot/kartabot/intake"
)

func New(cfg *Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
	}
}

type Bot struct {
	Cfg     *Config
	Client  *tgbotapi.BotAPI
	Version string
	Commit  string

	DB      *database.DB
	Catalog *catalog.Catalog

	UserRepository     repositories.UserRepository
	DrawRepository     repositories.DrawRepository
	CustomerRepository repositories.CustomerRepository

	Dispenser *dispenser.Dispenser
	Intake    *intake.Machine
}

// SetupClient authenticates against the Telegram Bot API.
func (b *Bot) SetupClient() error {
	client, err := tgbotapi.NewBotAPI(b.Cfg.Bot.Token)
	if err != nil {
		return err
	}
	client.Debug = b.Cfg.Bot.Debug

	b.Client = client

	slog.Info("KartaBot is now ready",
		slog.String("username", client.Self.UserName),
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))
	return nil
}

// Updates opens the long-polling update channel.
func (b *Bot) Updates() tgbotapi.UpdatesChannel {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	return b.Client.GetUpdatesChan(updateConfig)
}
