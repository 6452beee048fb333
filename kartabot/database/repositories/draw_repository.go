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

type DrawRepository interface {
	// LastDrawTime returns the user's cooldown timestamp. ok is false when
	// the user has never drawn.
	LastDrawTime(ctx context.Context, telegramID int64) (lastTime int64, ok bool, err error)
	// HistorySince returns the distinct card ids shown to the user strictly
	// after the given time.
	HistorySince(ctx context.Context, telegramID int64, since int64) (map[string]struct{}, error)
	// RecordDraw commits a successful draw: the cooldown upsert and the
	// history append succeed or fail together.
	RecordDraw(ctx context.Context, telegramID int64, cardID string, now int64) error
	// ListCooldowns returns every user's cooldown row, for the reminder
	// sweep.
	ListCooldowns(ctx context.Context) ([]models.DailyCard, error)
}

type drawRepository struct {
	*BaseRepository
}

func NewDrawRepository(db *bun.DB) DrawRepository {
	return &drawRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (r *drawRepository) LastDrawTime(ctx context.Context, telegramID int64) (int64, bool, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	cooldown := new(models.DailyCard)
	err := r.db.NewSelect().
		Model(cooldown).
		Where("telegram_id = ?", telegramID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, r.HandleErrorWithID("select", "daily_card", telegramID, err)
	}

	return cooldown.LastCardTime, true, nil
}

func (r *drawRepository) HistorySince(ctx context.Context, telegramID int64, since int64) (map[string]struct{}, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	start := time.Now()

	var cardIDs []string
	err := r.db.NewSelect().
		Model((*models.CardHistory)(nil)).
		Column("card_id").
		Where("telegram_id = ? AND shown_at > ?", telegramID, since).
		Scan(ctx, &cardIDs)
	logger.LogQuery("select card_history", time.Since(start), err)
	if err != nil {
		return nil, r.HandleErrorWithID("select", "card_history", telegramID, err)
	}

	seen := make(map[string]struct{}, len(cardIDs))
	for _, id := range cardIDs {
		seen[id] = struct{}{}
	}
	return seen, nil
}

func (r *drawRepository) ListCooldowns(ctx context.Context) ([]models.DailyCard, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var cooldowns []models.DailyCard
	err := r.db.NewSelect().
		Model(&cooldowns).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("select", "daily_cards", err)
	}

	return cooldowns, nil
}

func (r *drawRepository) RecordDraw(ctx context.Context, telegramID int64, cardID string, now int64) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	start := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.HandleErrorWithID("begin", "draw", telegramID, err)
	}
	defer tx.Rollback()

	cooldown := &models.DailyCard{
		TelegramID:   telegramID,
		LastCardTime: now,
	}
	_, err = tx.NewInsert().
		Model(cooldown).
		On("CONFLICT (telegram_id) DO UPDATE").
		Set("last_card_time = EXCLUDED.last_card_time").
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("upsert", "daily_card", telegramID, err)
	}

	entry := &models.CardHistory{
		TelegramID: telegramID,
		CardID:     cardID,
		ShownAt:    now,
	}
	if _, err = tx.NewInsert().Model(entry).Exec(ctx); err != nil {
		return r.HandleErrorWithID("insert", "card_history", telegramID, err)
	}

	err = tx.Commit()
	logger.LogQuery("record draw", time.Since(start), err)
	if err != nil {
		return r.HandleErrorWithID("commit", "draw", telegramID, err)
	}

	return nil
}
