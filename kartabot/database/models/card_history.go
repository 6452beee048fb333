package models

import (
	"github.com/uptrace/bun"
)

// CardHistory is the append-only log of every card shown to every user.
// Only the trailing 30 days are ever queried.
type CardHistory struct {
	bun.BaseModel `bun:"table:card_history,alias:ch"`

	ID         int64  `bun:"id,pk,autoincrement"`
	TelegramID int64  `bun:"telegram_id,notnull"`
	CardID     string `bun:"card_id,notnull"`
	ShownAt    int64  `bun:"shown_at,notnull"`
}
