// internal/notify/telegram.go
package notify

import (
	"log"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// TelegramNotifier доставляет уведомления через Telegram Bot API.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier инициализирует бота по токену.
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Printf("NewTelegramNotifier: ошибка инициализации бота: %v", err)
		return nil, err
	}
	log.Printf("Telegram-бот авторизован как @%s.", bot.Self.UserName)
	return &TelegramNotifier{bot: bot}, nil
}

// Send отправляет текстовое сообщение в чат. Ошибки логируются и не
// возвращаются: уведомления не участвуют в транзакциях движка.
func (n *TelegramNotifier) Send(chatID int64, text string) {
	if chatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		log.Printf("TelegramNotifier.Send: ошибка отправки сообщения в чат %d: %v", chatID, err)
	}
}
