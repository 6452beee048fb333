package models

import (
	"github.com/uptrace/bun"
)

// BotUser is anyone who has ever talked to the bot. Created on first
// contact, never mutated afterwards.
type BotUser struct {
	bun.BaseModel `bun:"table:bot_users,alias:bu"`

	TelegramID int64  `bun:"telegram_id,pk"`
	Username   string `bun:"username"`
	FirstSeen  int64  `bun:"first_seen,notnull"`
}
