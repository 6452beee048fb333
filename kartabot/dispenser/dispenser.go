// Package dispenser decides whether a user may draw a card of the day and
// which card they get. A draw is allowed once per 24 hours; within a rolling
// 30-day window the same card is not dealt twice unless every card has
// already been seen.
package dispenser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/makspace/kartabot/kartabot/catalog"
)

const (
	// CooldownSeconds is the wait between draws. Drawing at exactly
	// last+CooldownSeconds is allowed.
	CooldownSeconds = 86400
	// HistoryWindowSeconds is the trailing period in which a card is not
	// repeated.
	HistoryWindowSeconds = 30 * 86400

	lastCardCacheSize = 1024
)

var ErrNoActiveCard = errors.New("no card has been drawn yet")

// Store is the persistence surface the dispenser needs. Satisfied by
// repositories.DrawRepository.
type Store interface {
	LastDrawTime(ctx context.Context, telegramID int64) (lastTime int64, ok bool, err error)
	HistorySince(ctx context.Context, telegramID int64, since int64) (map[string]struct{}, error)
	RecordDraw(ctx context.Context, telegramID int64, cardID string, now int64) error
}

// Result is the outcome of a draw request. Either OnCooldown is set with the
// hours left, or Card holds the dealt card.
type Result struct {
	OnCooldown bool
	HoursLeft  int64
	Card       catalog.Card
}

type Dispenser struct {
	store   Store
	catalog *catalog.Catalog

	// userLocks serializes the cooldown read-modify-write per user so two
	// concurrent taps cannot both pass the check.
	userLocks sync.Map

	// lastCards keeps the most recent card per user for the full
	// description follow-up. Transient, overwritten by the next draw.
	lastCards *lru.Cache

	randIntn func(n int) int
}

func New(store Store, cat *catalog.Catalog) (*Dispenser, error) {
	cache, err := lru.New(lastCardCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create last-card cache: %w", err)
	}

	return &Dispenser{
		store:     store,
		catalog:   cat,
		lastCards: cache,
		randIntn:  rand.Intn,
	}, nil
}

// RequestDraw deals one card to the user, or reports the remaining cooldown.
// The cooldown upsert and the history append are committed together; on a
// persistence failure no draw is reported and the user may simply retry.
func (d *Dispenser) RequestDraw(ctx context.Context, telegramID int64, now int64) (*Result, error) {
	mu := d.userLock(telegramID)
	mu.Lock()
	defer mu.Unlock()

	last, drawn, err := d.store.LastDrawTime(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cooldown: %w", err)
	}

	if drawn && now-last < CooldownSeconds {
		return &Result{
			OnCooldown: true,
			HoursLeft:  hoursLeft(now - last),
		}, nil
	}

	seen, err := d.store.HistorySince(ctx, telegramID, now-HistoryWindowSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to read card history: %w", err)
	}

	all := d.catalog.Cards()
	eligible := make([]catalog.Card, 0, len(all))
	for _, card := range all {
		if _, used := seen[card.ID]; !used {
			eligible = append(eligible, card)
		}
	}
	if len(eligible) == 0 {
		// Every card was shown within the window; repetition beats
		// refusing the draw.
		eligible = all
	}

	card := eligible[d.randIntn(len(eligible))]

	if err := d.store.RecordDraw(ctx, telegramID, card.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record draw: %w", err)
	}

	d.lastCards.Add(telegramID, card)

	return &Result{Card: card}, nil
}

// FullDescription returns the most recently drawn card for the user. No
// persistence access; the card lives only in memory.
func (d *Dispenser) FullDescription(telegramID int64) (catalog.Card, error) {
	v, ok := d.lastCards.Get(telegramID)
	if !ok {
		return catalog.Card{}, ErrNoActiveCard
	}
	return v.(catalog.Card), nil
}

func (d *Dispenser) userLock(telegramID int64) *sync.Mutex {
	v, _ := d.userLocks.LoadOrStore(telegramID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// hoursLeft reports the remaining cooldown in whole hours, rounded up so a
// user never sees 0 hours while the cooldown is still active.
func hoursLeft(elapsed int64) int64 {
	remaining := CooldownSeconds - elapsed
	return (remaining + 3599) / 3600
}
