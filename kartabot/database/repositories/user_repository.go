package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/makspace/kartabot/kartabot/database/models"
	"github.com/makspace/kartabot/kartabot/logger"
	"github.com/uptrace/bun"
)

type UserRepository interface {
	// EnsureUser records a user on first contact. Returns true when the
	// user was seen for the first time.
	EnsureUser(ctx context.Context, telegramID int64, username string, now int64) (bool, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.BotUser, error)
}

type userRepository struct {
	*BaseRepository
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (r *userRepository) EnsureUser(ctx context.Context, telegramID int64, username string, now int64) (bool, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	start := time.Now()

	user := &models.BotUser{
		TelegramID: telegramID,
		Username:   username,
		FirstSeen:  now,
	}

	res, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (telegram_id) DO NOTHING").
		Exec(ctx)
	logger.LogQuery("insert bot_user", time.Since(start), err)
	if err != nil {
		return false, r.HandleErrorWithID("insert", "bot_user", telegramID, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleErrorWithID("insert", "bot_user", telegramID, err)
	}

	return inserted > 0, nil
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.BotUser, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	user := new(models.BotUser)
	err := r.db.NewSelect().
		Model(user).
		Where("telegram_id = ?", telegramID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "bot_user", ID: telegramID}
	}
	if err != nil {
		return nil, r.HandleErrorWithID("select", "bot_user", telegramID, err)
	}

	return user, nil
}
