package models

import (
	"database/sql"
	"time"
)

type User struct {
	ID        int64
	ChatID    int64
	Role      string
	FirstName string
	LastName  string
	Phone     string
	// PayoutDestination хранится в БД зашифрованным (AES-256-GCM),
	// в модели - уже расшифрованное значение.
	PayoutDestination string
	IsBlocked         bool
	BlockReason       sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
