package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Gateway - контракт escrow-платёжного процессора. Четыре операции:
// авторизация холда, захват холда, перевод на подключённый аккаунт
// получателя, возврат. Все вызовы принимают ключ идемпотентности:
// при таймауте операция считается "failed-but-possibly-applied", и
// повтор с тем же ключом не приводит к двойному списанию.
type Gateway interface {
	// AuthorizeCharge создает холд (авторизованный, но не захваченный
	// платёж) на плательщика. Возвращает id холда и URL подтверждения.
	AuthorizeCharge(ctx context.Context, payerID string, amount float64, idemKey string) (holdID string, confirmationURL string, err error)
	// CaptureHold захватывает ранее авторизованный холд.
	CaptureHold(ctx context.Context, holdID string, idemKey string) (receiptID string, err error)
	// Transfer переводит сумму с баланса платформы на payout destination получателя.
	Transfer(ctx context.Context, destination string, amount float64, idemKey string) (transferID string, err error)
	// Refund возвращает сумму по холду/платежу.
	Refund(ctx context.Context, holdID string, amount float64, idemKey string) (refundID string, err error)
}

// GatewayError - ошибка платёжного процессора с признаком повторяемости.
// Retryable=true для сетевых сбоев и 5xx, false для отказов по существу
// (карта отклонена, недостаточно средств).
type GatewayError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *GatewayError) Error() string {
	kind := "терминальная"
	if e.Retryable {
		kind = "повторяемая"
	}
	return fmt.Sprintf("ошибка платёжного шлюза (%s, %s): %v", e.Op, kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// idemNamespace - неймспейс для детерминированных UUIDv5 ключей идемпотентности.
var idemNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// IdempotencyKey строит детерминированный ключ идемпотентности из операции,
// id заказа и суммы в копейках. Повторный вызов по тому же заказу с той же
// суммой (ручной finish против прохода авторасчёта) даёт тот же ключ и не
// приводит к двойной выплате.
func IdempotencyKey(op string, jobID int64, amount float64) string {
	cents := int64(amount*100 + 0.5)
	return uuid.NewSHA1(idemNamespace, []byte(fmt.Sprintf("%s:%d:%d", op, jobID, cents))).String()
}
