package models

import (
	"github.com/uptrace/bun"
)

// DailyCard tracks the draw cooldown, one row per user. Absence of a row
// means the user has never drawn.
type DailyCard struct {
	bun.BaseModel `bun:"table:daily_cards,alias:dc"`

	TelegramID   int64 `bun:"telegram_id,pk"`
	LastCardTime int64 `bun:"last_card_time,notnull"`
}
