package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback tags bound to the inline keyboard buttons.
const (
	callbackGetCard      = "get_card"
	callbackShowFullCard = "show_full_card"
	callbackWantSession  = "want_session"
)

const (
	msgWelcome = "🌿 Вітаю тебе у просторі МАК-карт\n\n" +
		"Цей бот допоможе тобі щодня отримувати\n" +
		"✨ одну карту дня — символ або підказку,\n" +
		"яка може відгукнутися саме тобі сьогодні.\n\n" +
		"🔮 Як це працює:\n" +
		"• щодня ти можеш отримати одну карту\n" +
		"• подивитись її значення\n" +
		"• за бажанням — записатися на МАК-сесію\n\n" +
		"🃏 Просто натисни кнопку нижче\n" +
		"і дозволь карті знайти тебе ✨"

	msgWelcomeBack = "🌿 Радий(а) тебе знову бачити\n\n" +
		"Натисни кнопку нижче, щоб отримати карту дня ✨"

	msgCooldownFmt = "🌿 Ти вже отримав(ла) свою сьогоднішню карту.\n" +
		"Повертайся приблизно через %d год 💛"

	msgPhotoCaption = "🃏 *Подумай, що ця карта значить саме для тебе?*"

	msgPressForDescription = "✨ Коли будеш готовий(а) — натисни кнопку нижче."

	msgCardFmt = "🔮 *%s*\n\n%s"

	msgDrawFirst = "Спочатку отримай карту дня 🌿"

	msgTryAgain = "🌿 Щось пішло не так, спробуй ще раз за хвилинку 💛"

	msgNewLeadFmt = "🆕 Нова заявка на МАК-сесію\n\n" +
		"👤 Імʼя: %s\n" +
		"📞 Телефон: %s\n" +
		"🆔 Telegram ID: %d\n" +
		"🔗 Username: @%s"

	msgNoUsername = "немає"
)

func getCardKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎴 Отримати карту дня", callbackGetCard),
		),
	)
}

func showFullCardKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 Дізнатися повний опис карти", callbackShowFullCard),
		),
	)
}

func wantSessionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💫 Хочу на МАК сесію", callbackWantSession),
		),
	)
}
