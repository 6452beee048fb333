package models

import (
	"github.com/uptrace/bun"
)

// Customer is a captured session lead: name and phone left through the
// intake flow. One row per user, phone and created_at refreshed on repeat
// requests.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:cu"`

	ID         int64  `bun:"id,pk,autoincrement"`
	TelegramID int64  `bun:"telegram_id,notnull,unique"`
	Username   string `bun:"username"`
	Name       string `bun:"name,notnull"`
	Phone      string `bun:"phone,notnull"`
	CreatedAt  int64  `bun:"created_at,notnull"`
}
