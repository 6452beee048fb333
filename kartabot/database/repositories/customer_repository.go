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

var ErrCustomerNotFound = errors.New("customer not found")

type CustomerRepository interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Customer, error)
	// Upsert inserts a new customer or, for an existing one, refreshes the
	// phone and capture time. The name from the first capture is kept.
	Upsert(ctx context.Context, customer *models.Customer) error
}

type customerRepository struct {
	*BaseRepository
}

func NewCustomerRepository(db *bun.DB) CustomerRepository {
	return &customerRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (r *customerRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Customer, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	customer := new(models.Customer)
	err := r.db.NewSelect().
		Model(customer).
		Where("telegram_id = ?", telegramID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, r.HandleErrorWithID("select", "customer", telegramID, err)
	}

	return customer, nil
}

func (r *customerRepository) Upsert(ctx context.Context, customer *models.Customer) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	start := time.Now()

	_, err := r.db.NewInsert().
		Model(customer).
		On("CONFLICT (telegram_id) DO UPDATE").
		Set("phone = EXCLUDED.phone").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	logger.LogQuery("upsert customer", time.Since(start), err)
	if err != nil {
		return r.HandleErrorWithID("upsert", "customer", customer.TelegramID, err)
	}

	return nil
}
