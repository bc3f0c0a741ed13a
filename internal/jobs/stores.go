// internal/jobs/stores.go
package jobs

import (
	"database/sql"
	"time"

	"metalhead/internal/models"
)

// JobStore - операции хранилища заказов, нужные движку жизненного цикла.
// Реализуется адаптером db.Store; в тестах подменяется in-memory фейком.
type JobStore interface {
	CreateJob(job models.Job) (models.Job, error)
	GetJobByID(jobID int64) (models.Job, error)
	// BindHelper атомарно назначает исполнителя на заказ в статусе posted
	// (compare-and-swap). Проигравший гонку получает ErrNoTransition.
	BindHelper(jobID, helperID, offerID int64, finalPrice float64, paymentType string, hourlyRate float64) (models.Job, error)
	StartJob(jobID int64, startedAt time.Time) (models.Job, error)
	CompleteJob(jobID int64, endedAt time.Time, actualHours sql.NullFloat64, finalPrice float64) (models.Job, error)
	MarkPaid(jobID int64) error
	CancelJob(jobID int64, fromStatuses []string) (models.Job, error)
	SetPaymentIntent(jobID int64, intentID string) error
	SetExtraTimeRequest(jobID int64, hours sql.NullFloat64) error
	ApplyExtraTime(jobID int64, approved bool, totalApprovedHours float64) error
	ListUnpaidCompletedBefore(cutoff time.Time) ([]models.Job, error)
	GetTimeline(jobID int64) (models.JobTimeline, error)
}

// OfferStore - операции хранилища встречных предложений.
type OfferStore interface {
	CreateCounterOffer(offer models.CounterOffer) (models.CounterOffer, error)
	GetCounterOfferByID(offerID int64) (models.CounterOffer, error)
	GetCounterOffersByJobID(jobID int64) ([]models.CounterOffer, error)
	DeleteCounterOffer(offerID int64) error
	HasActiveCounterOffers(jobID int64) (bool, error)
}

// LedgerStore - журнал платёжных транзакций, только добавление.
type LedgerStore interface {
	AddTransaction(pt models.PaymentTransaction) (int64, error)
}

// UserStore - чтение участников заказа и их платёжных реквизитов.
type UserStore interface {
	GetUserByID(userID int64) (models.User, error)
	GetPayoutDestinationByUserID(userID int64) (string, error)
}
