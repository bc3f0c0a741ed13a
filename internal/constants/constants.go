package constants

// Статусы заказа (job)
// Job statuses
const (
	STATUS_POSTED    = "posted"
	STATUS_CONFIRMED = "confirmed"
	STATUS_ONGOING   = "ongoing"
	STATUS_COMPLETED = "completed"
	STATUS_PAID      = "paid"
	STATUS_CANCELED  = "cancelled"
)

// Типы оплаты заказа
const (
	PAYMENT_TYPE_FIXED  = "fixed"
	PAYMENT_TYPE_HOURLY = "hourly"
)

// Типы записей в леджере платёжных транзакций
// Payment ledger entry types
const (
	TX_TYPE_CAPTURE    = "capture"
	TX_TYPE_PAYOUT     = "payout"
	TX_TYPE_COMMISSION = "commission"
	TX_TYPE_REFUND     = "refund"
)

// Статусы записей леджера
const (
	TX_STATUS_SUCCEEDED = "succeeded"
	TX_STATUS_FAILED    = "failed"
)

// Роли пользователей
const (
	ROLE_USER     = "user"
	ROLE_OPERATOR = "operator"
	ROLE_OWNER    = "owner"
)

// Поля таймлайна заказа. Каждое поле выставляется не более одного раза,
// строго в порядке жизненного цикла.
const (
	TIMELINE_POSTED        = "posted_at"
	TIMELINE_COUNTER_OFFER = "counter_offer_at"
	TIMELINE_CONFIRMED     = "confirmed_at"
	TIMELINE_ONGOING       = "ongoing_at"
	TIMELINE_COMPLETED     = "completed_at"
	TIMELINE_PAID          = "paid_at"
)

// StatusDisplayMap - человекочитаемые названия статусов для уведомлений.
var StatusDisplayMap = map[string]string{
	STATUS_POSTED:    "Опубликован",
	STATUS_CONFIRMED: "Подтверждён",
	STATUS_ONGOING:   "В работе",
	STATUS_COMPLETED: "Выполнен",
	STATUS_PAID:      "Оплачен",
	STATUS_CANCELED:  "Отменён",
}

// JobsPerPage - размер страницы при постраничной выдаче заказов.
const JobsPerPage = 10
