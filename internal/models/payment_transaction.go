package models

import (
	"database/sql"
	"time"
)

// PaymentTransaction - запись аудиторского леджера движения денег.
// Append-only: после создания никогда не изменяется.
type PaymentTransaction struct {
	ID              int64
	JobID           int64
	UserID          sql.NullInt64 // получатель; NULL для платформенных записей (комиссия)
	Type            string        // capture | payout | commission | refund
	Amount          float64
	Status          string
	ReferenceNumber string // внешний id у платёжного шлюза
	CreatedAt       time.Time
}
