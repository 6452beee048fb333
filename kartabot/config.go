package kartabot

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}

	// Secrets may come from the environment instead of the config file.
	if token := os.Getenv("BOT_TOKEN"); token != "" {
		cfg.Bot.Token = token
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = password
	}

	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token not set (config [bot] token or BOT_TOKEN)")
	}
	if cfg.Bot.AdminChatID == 0 {
		return nil, fmt.Errorf("admin chat id not set (config [bot] admin_chat_id)")
	}

	return &cfg, nil
}

type Config struct {
	Log      LogConfig      `toml:"log"`
	Bot      BotConfig      `toml:"bot"`
	DB       DBConfig       `toml:"db"`
	Cards    CardsConfig    `toml:"cards"`
	Reminder ReminderConfig `toml:"reminder"`
}

type BotConfig struct {
	Token       string `toml:"token"`
	AdminChatID int64  `toml:"admin_chat_id"`
	Debug       bool   `toml:"debug"`
}

type LogConfig struct {
	Level slog.Level `toml:"level"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type CardsConfig struct {
	// Path to the JSON catalog; image refs inside are resolved
	// relative to ImageRoot.
	Path      string `toml:"path"`
	ImageRoot string `toml:"image_root"`
}

type ReminderConfig struct {
	Enabled bool `toml:"enabled"`
}
