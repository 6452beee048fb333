// Package handlers routes inbound Telegram updates to the card dispenser and
// the lead-intake state machine. Each update runs in its own goroutine; a
// panic in one handler is logged and dropped without touching other users.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/makspace/kartabot/kartabot/database/repositories"
	"github.com/makspace/kartabot/kartabot/dispenser"
	"github.com/makspace/kartabot/kartabot/intake"
	"github.com/makspace/kartabot/kartabot/logger"
)

const handlerTimeout = 30 * time.Second

type Handler struct {
	bot       *tgbotapi.BotAPI
	users     repositories.UserRepository
	dispenser *dispenser.Dispenser
	intake    *intake.Machine
}

func New(bot *tgbotapi.BotAPI, users repositories.UserRepository, disp *dispenser.Dispenser, machine *intake.Machine) *Handler {
	return &Handler{
		bot:       bot,
		users:     users,
		dispenser: disp,
		intake:    machine,
	}
}

// Run consumes the update channel until ctx is cancelled.
func (h *Handler) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go h.dispatch(ctx, update)
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogError("Handler panic", fmt.Errorf("%v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	switch {
	case update.Message != nil && update.Message.IsCommand():
		h.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		h.handleText(ctx, update.Message)
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	start := time.Now()
	cmd := msg.Command()

	var err error
	switch cmd {
	case "start", "card":
		err = h.handleStart(ctx, msg)
	default:
		return
	}

	logger.LogCommand("/"+cmd, msg.From.ID, time.Since(start), err)
}

func (h *Handler) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	start := time.Now()

	// Acknowledge the button press right away so the client stops the
	// spinner even if the handler below is slow.
	if _, err := h.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		logger.LogError("Failed to answer callback query", err,
			"user_id", query.From.ID)
	}

	// Telegram omits the originating message from callbacks older than
	// 48 hours, so there is no chat to reply into.
	if query.Message == nil {
		return
	}

	var err error
	switch query.Data {
	case callbackGetCard:
		err = h.handleGetCard(ctx, query)
	case callbackShowFullCard:
		err = h.handleShowFullCard(ctx, query)
	case callbackWantSession:
		err = h.handleWantSession(ctx, query)
	default:
		return
	}

	logger.LogCommand(query.Data, query.From.ID, time.Since(start), err)
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	now := time.Now().Unix()

	first, err := h.users.EnsureUser(ctx, msg.From.ID, msg.From.UserName, now)
	if err != nil {
		h.sendText(msg.Chat.ID, msgTryAgain, nil)
		return err
	}

	keyboard := getCardKeyboard()
	if first {
		h.sendText(msg.Chat.ID, msgWelcome, &keyboard)
	} else {
		h.sendText(msg.Chat.ID, msgWelcomeBack, &keyboard)
	}
	return nil
}

func (h *Handler) handleGetCard(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	chatID := query.Message.Chat.ID
	now := time.Now().Unix()

	result, err := h.dispenser.RequestDraw(ctx, query.From.ID, now)
	if err != nil {
		// The draw was not committed; the user can simply tap again.
		h.sendText(chatID, msgTryAgain, nil)
		return err
	}

	if result.OnCooldown {
		keyboard := getCardKeyboard()
		h.sendText(chatID, fmt.Sprintf(msgCooldownFmt, result.HoursLeft), &keyboard)
		return nil
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(result.Card.Image))
	photo.Caption = msgPhotoCaption
	photo.ParseMode = tgbotapi.ModeMarkdown
	if _, err := h.bot.Send(photo); err != nil {
		return fmt.Errorf("failed to send card photo: %w", err)
	}

	// Short pause so the follow-up prompt lands after the photo.
	time.Sleep(time.Second)

	keyboard := showFullCardKeyboard()
	h.sendText(chatID, msgPressForDescription, &keyboard)
	return nil
}

func (h *Handler) handleShowFullCard(_ context.Context, query *tgbotapi.CallbackQuery) error {
	chatID := query.Message.Chat.ID

	card, err := h.dispenser.FullDescription(query.From.ID)
	if errors.Is(err, dispenser.ErrNoActiveCard) {
		h.sendText(chatID, msgDrawFirst, nil)
		return nil
	}
	if err != nil {
		return err
	}

	keyboard := wantSessionKeyboard()
	h.sendMarkdown(chatID, fmt.Sprintf(msgCardFmt, card.Title, card.Text), &keyboard)
	return nil
}

func (h *Handler) handleWantSession(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	chatID := query.Message.Chat.ID
	user := intake.User{ID: query.From.ID, Username: query.From.UserName}

	reply, err := h.intake.Begin(ctx, user)
	if err != nil {
		h.sendText(chatID, msgTryAgain, nil)
		return err
	}

	h.sendText(chatID, reply, nil)
	return nil
}

func (h *Handler) handleText(ctx context.Context, msg *tgbotapi.Message) {
	user := intake.User{ID: msg.From.ID, Username: msg.From.UserName}

	reply, handled, err := h.intake.HandleText(ctx, user, msg.Text)
	if err != nil {
		logger.LogError("Intake step failed", err, "user_id", msg.From.ID)
		h.sendText(msg.Chat.ID, msgTryAgain, nil)
		return
	}
	if !handled {
		// Free text outside a conversation is ignored, as is any text
		// the flow does not expect.
		return
	}

	h.sendText(msg.Chat.ID, reply, nil)
}

func (h *Handler) sendText(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	if _, err := h.bot.Send(msg); err != nil {
		logger.LogError("Failed to send message", err, "chat_id", chatID)
	}
}

func (h *Handler) sendMarkdown(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	if _, err := h.bot.Send(msg); err != nil {
		logger.LogError("Failed to send message", err, "chat_id", chatID)
	}
}
