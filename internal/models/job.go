package models

import (
	"database/sql"
	"time"
)

type Job struct {
	ID                     int64
	PosterID               int64
	AssignedHelperID       sql.NullInt64
	AcceptedCounterOfferID sql.NullInt64
	Title                  string
	Description            string
	Price                  float64
	FinalPrice             sql.NullFloat64
	PaymentType            string // fixed | hourly
	HourlyRate             float64
	StartTime              sql.NullTime
	EndTime                sql.NullTime
	ActualStartTime        sql.NullTime
	ActualEndTime          sql.NullTime
	ActualHours            sql.NullFloat64
	ExtraTimeRequested     sql.NullFloat64 // часы, запрошенные постером сверх плана
	ExtraTimeApproved      bool
	TotalApprovedHours     float64
	PaymentIntentID        sql.NullString // внешний id холда у платёжного шлюза
	Status                 string
	Active                 bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// JobTimeline - сателлит заказа 1:1 с отметками этапов жизненного цикла.
// Каждое поле выставляется не более одного раза.
type JobTimeline struct {
	JobID          int64
	PostedAt       sql.NullTime
	CounterOfferAt sql.NullTime
	ConfirmedAt    sql.NullTime
	OngoingAt      sql.NullTime
	CompletedAt    sql.NullTime
	PaidAt         sql.NullTime
}
