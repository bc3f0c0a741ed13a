package models

import "time"

// CounterOffer - встречное предложение хелпера по цене и типу оплаты.
// До подтверждения заказа может существовать много офферов; при принятии
// одного остальные удаляются разом.
type CounterOffer struct {
	ID          int64
	JobID       int64
	HelperID    int64
	Amount      float64
	PaymentType string // fixed | hourly
	Note        string
	CreatedAt   time.Time
}
