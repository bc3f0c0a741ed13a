// internal/jobs/errors.go
package jobs

import (
	"errors"
	"fmt"
)

// Ошибки движка жизненного цикла. HTTP-слой сопоставляет их с кодами
// ответов через errors.Is.
var (
	ErrJobNotFound   = errors.New("заказ не найден")
	ErrOfferNotFound = errors.New("встречное предложение не найдено")

	// ErrUnauthorized - действие вызвано не той стороной заказа.
	ErrUnauthorized = errors.New("действие недоступно этому пользователю")

	// ErrForbidden - действие запрещено правилами домена (например,
	// отклик постера на собственный заказ).
	ErrForbidden = errors.New("действие запрещено")

	// ErrConflict - проигрыш гонки за атомарный переход: второй акцепт
	// встречного предложения, прямой отклик на уже назначенный заказ.
	ErrConflict = errors.New("заказ уже назначен другому исполнителю")

	// ErrInvalidState - переход вызван из неподходящего статуса.
	ErrInvalidState = errors.New("недопустимый статус заказа")

	// ErrPreconditionFailed - предусловие операции не выполнено:
	// не настроены платёжные реквизиты, нет запроса доп. времени.
	ErrPreconditionFailed = errors.New("предусловие операции не выполнено")

	// ErrRefundFailed - отмена прервана из-за сбоя возврата средств,
	// заказ остался в прежнем статусе.
	ErrRefundFailed = errors.New("возврат средств не выполнен, отмена прервана")
)

// invalidState оборачивает ErrInvalidState с указанием требуемого статуса.
func invalidState(action, required, current string) error {
	return fmt.Errorf("%w: операция '%s' требует статуса '%s', текущий статус '%s'", ErrInvalidState, action, required, current)
}
