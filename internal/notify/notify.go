// internal/notify/notify.go
// Package notify отправляет участникам заказа уведомления о событиях
// жизненного цикла.
package notify

// Notifier - канал доставки уведомлений. Доставка best-effort: сбой
// отправки логируется и никогда не влияет на результат операции движка.
type Notifier interface {
	Send(chatID int64, text string)
}

// Nop - заглушка для тестов и окружений без Telegram-токена.
type Nop struct{}

func (Nop) Send(chatID int64, text string) {}
