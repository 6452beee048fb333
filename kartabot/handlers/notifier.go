package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/makspace/kartabot/kartabot/intake"
)

// AdminNotifier forwards completed leads to the admin chat.
type AdminNotifier struct {
	bot         *tgbotapi.BotAPI
	adminChatID int64
}

func NewAdminNotifier(bot *tgbotapi.BotAPI, adminChatID int64) *AdminNotifier {
	return &AdminNotifier{bot: bot, adminChatID: adminChatID}
}

func (n *AdminNotifier) NotifyNewLead(_ context.Context, lead intake.Lead) error {
	username := lead.Username
	if username == "" {
		username = msgNoUsername
	}

	msg := tgbotapi.NewMessage(n.adminChatID, fmt.Sprintf(msgNewLeadFmt,
		lead.Name, lead.Phone, lead.TelegramID, username))

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send admin notification: %w", err)
	}
	return nil
}
