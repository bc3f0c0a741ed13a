// internal/db/store.go
package db

import (
	"database/sql"
	"time"

	"metalhead/internal/models"
)

// Store адаптирует пакетные функции доступа к данным под интерфейсы
// движка жизненного цикла (JobStore, OfferStore, LedgerStore,
// UserStore). Состояния не несёт: вся работа идёт через глобальный
// пул соединений пакета.
type Store struct{}

func (Store) CreateJob(job models.Job) (models.Job, error) {
	return CreateJob(job)
}

func (Store) GetJobByID(jobID int64) (models.Job, error) {
	return GetJobByID(jobID)
}

func (Store) BindHelper(jobID, helperID, offerID int64, finalPrice float64, paymentType string, hourlyRate float64) (models.Job, error) {
	return BindHelper(jobID, helperID, offerID, finalPrice, paymentType, hourlyRate)
}

func (Store) StartJob(jobID int64, startedAt time.Time) (models.Job, error) {
	return StartJob(jobID, startedAt)
}

func (Store) CompleteJob(jobID int64, endedAt time.Time, actualHours sql.NullFloat64, finalPrice float64) (models.Job, error) {
	return CompleteJob(jobID, endedAt, actualHours, finalPrice)
}

func (Store) MarkPaid(jobID int64) error {
	return MarkPaid(jobID)
}

func (Store) CancelJob(jobID int64, fromStatuses []string) (models.Job, error) {
	return CancelJob(jobID, fromStatuses)
}

func (Store) SetPaymentIntent(jobID int64, intentID string) error {
	return SetPaymentIntent(jobID, intentID)
}

func (Store) SetExtraTimeRequest(jobID int64, hours sql.NullFloat64) error {
	return SetExtraTimeRequest(jobID, hours)
}

func (Store) ApplyExtraTime(jobID int64, approved bool, totalApprovedHours float64) error {
	return ApplyExtraTime(jobID, approved, totalApprovedHours)
}

func (Store) ListUnpaidCompletedBefore(cutoff time.Time) ([]models.Job, error) {
	return ListUnpaidCompletedBefore(cutoff)
}

func (Store) GetTimeline(jobID int64) (models.JobTimeline, error) {
	return GetTimeline(jobID)
}

func (Store) CreateCounterOffer(offer models.CounterOffer) (models.CounterOffer, error) {
	return CreateCounterOffer(offer)
}

func (Store) GetCounterOfferByID(offerID int64) (models.CounterOffer, error) {
	return GetCounterOfferByID(offerID)
}

func (Store) GetCounterOffersByJobID(jobID int64) ([]models.CounterOffer, error) {
	return GetCounterOffersByJobID(jobID)
}

func (Store) DeleteCounterOffer(offerID int64) error {
	return DeleteCounterOffer(offerID)
}

func (Store) HasActiveCounterOffers(jobID int64) (bool, error) {
	return HasActiveCounterOffers(jobID)
}

func (Store) AddTransaction(pt models.PaymentTransaction) (int64, error) {
	return AddTransaction(pt)
}

func (Store) GetUserByID(userID int64) (models.User, error) {
	return GetUserByID(userID)
}

func (Store) GetPayoutDestinationByUserID(userID int64) (string, error) {
	return GetPayoutDestinationByUserID(userID)
}
