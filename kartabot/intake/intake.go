// Package intake walks a user through the session sign-up conversation:
// name then phone for newcomers, a repeat confirmation then phone for users
// who already left a lead. State lives in memory only; a restart simply
// drops unfinished conversations.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/makspace/kartabot/kartabot/database/models"
	"github.com/makspace/kartabot/kartabot/database/repositories"
	"github.com/makspace/kartabot/kartabot/logger"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingName
	StateAwaitingPhoneAfterName
	StateAwaitingConfirmRepeat
	StateAwaitingPhoneAfterConfirm
)

// affirmativeToken confirms a repeat sign-up, compared after lowercasing
// and trimming.
const affirmativeToken = "так"

const (
	ReplyAskName      = "💬 Напиши, будь ласка, своє імʼя"
	ReplyAskPhone     = "📞 Напиши контактний номер телефону"
	ReplyRepeatPrompt = "💫 Ти вже залишав(ла) заявку раніше.\n" +
		"Хочеш записатися на МАК-сесію ще раз?\n\n" +
		"Напиши «так» або «ні»"
	ReplyDeclineAck = "🌿 Добре, якщо що — я поруч"
	ReplyThanks     = "✨ Дякую!\n\nМи отримали твою заявку і звʼяжемось з тобою найближчим часом 💛"
)

// User identifies the person talking to the bot.
type User struct {
	ID       int64
	Username string
}

// Lead is a completed sign-up handed to the admin notifier.
type Lead struct {
	Name       string
	Phone      string
	TelegramID int64
	Username   string
}

// LeadStore is the persistence surface of the intake flow. Satisfied by
// repositories.CustomerRepository.
type LeadStore interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Customer, error)
	Upsert(ctx context.Context, customer *models.Customer) error
}

// Notifier forwards a completed lead to the administrative contact.
type Notifier interface {
	NotifyNewLead(ctx context.Context, lead Lead) error
}

type session struct {
	state State
	name  string
}

// Machine runs one conversation per user. Starting the flow again while one
// is in progress discards the earlier progress.
type Machine struct {
	mu       sync.Mutex
	sessions map[int64]*session

	// userLocks serializes the whole transition per user, including the
	// lead upsert and admin notification, so two concurrent messages
	// cannot both observe the same state and complete the flow twice.
	userLocks sync.Map

	store    LeadStore
	notifier Notifier
	now      func() int64
}

func New(store LeadStore, notifier Notifier) *Machine {
	return &Machine{
		sessions: make(map[int64]*session),
		store:    store,
		notifier: notifier,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// Begin starts (or restarts) the sign-up flow and returns the prompt to send
// to the user.
func (m *Machine) Begin(ctx context.Context, user User) (string, error) {
	mu := m.userLock(user.ID)
	mu.Lock()
	defer mu.Unlock()

	customer, err := m.store.GetByTelegramID(ctx, user.ID)
	if err != nil && !errors.Is(err, repositories.ErrCustomerNotFound) {
		return "", fmt.Errorf("failed to look up existing lead: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if customer != nil {
		m.sessions[user.ID] = &session{
			state: StateAwaitingConfirmRepeat,
			name:  customer.Name,
		}
		return ReplyRepeatPrompt, nil
	}

	m.sessions[user.ID] = &session{state: StateAwaitingName}
	return ReplyAskName, nil
}

// HandleText advances the conversation with a free-text message. handled is
// false when the user has no conversation in progress, so the router can
// fall through.
func (m *Machine) HandleText(ctx context.Context, user User, text string) (reply string, handled bool, err error) {
	mu := m.userLock(user.ID)
	mu.Lock()
	defer mu.Unlock()

	m.mu.Lock()
	sess, ok := m.sessions[user.ID]
	m.mu.Unlock()
	if !ok {
		return "", false, nil
	}

	switch sess.state {
	case StateAwaitingName:
		sess.name = text
		sess.state = StateAwaitingPhoneAfterName
		return ReplyAskPhone, true, nil

	case StateAwaitingConfirmRepeat:
		if strings.ToLower(strings.TrimSpace(text)) == affirmativeToken {
			sess.state = StateAwaitingPhoneAfterConfirm
			return ReplyAskPhone, true, nil
		}
		m.mu.Lock()
		delete(m.sessions, user.ID)
		m.mu.Unlock()
		return ReplyDeclineAck, true, nil

	case StateAwaitingPhoneAfterName, StateAwaitingPhoneAfterConfirm:
		return m.completeLead(ctx, user, sess, text)

	default:
		return "", false, nil
	}
}

func (m *Machine) userLock(userID int64) *sync.Mutex {
	v, _ := m.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// InProgress reports whether the user currently has a conversation open.
func (m *Machine) InProgress(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

func (m *Machine) completeLead(ctx context.Context, user User, sess *session, phone string) (string, bool, error) {
	customer := &models.Customer{
		TelegramID: user.ID,
		Username:   user.Username,
		Name:       sess.name,
		Phone:      phone,
		CreatedAt:  m.now(),
	}

	// The session is kept on failure so the user can resend the phone
	// number and retry.
	if err := m.store.Upsert(ctx, customer); err != nil {
		return "", true, fmt.Errorf("failed to save lead: %w", err)
	}

	m.mu.Lock()
	delete(m.sessions, user.ID)
	m.mu.Unlock()

	lead := Lead{
		Name:       sess.name,
		Phone:      phone,
		TelegramID: user.ID,
		Username:   user.Username,
	}

	// The lead is already committed; a failed admin notification must not
	// block the user-facing confirmation.
	if err := m.notifier.NotifyNewLead(ctx, lead); err != nil {
		logger.LogError("Failed to notify admin about new lead", err,
			slog.Int64("user_id", user.ID))
	}

	return ReplyThanks, true, nil
}
