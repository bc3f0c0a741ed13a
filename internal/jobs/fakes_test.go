package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"metalhead/internal/constants"
	"metalhead/internal/db"
	"metalhead/internal/models"
)

// fakeStore - потокобезопасное in-memory хранилище, воспроизводящее
// compare-and-swap семантику реального слоя данных.
type fakeStore struct {
	mu           sync.Mutex
	nextJobID    int64
	nextOfferID  int64
	nextTxID     int64
	jobs         map[int64]*models.Job
	timelines    map[int64]*models.JobTimeline
	offers       map[int64]*models.CounterOffer
	ledger       []models.PaymentTransaction
	users        map[int64]*models.User
	destinations map[int64]string
	ledgerErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:         make(map[int64]*models.Job),
		timelines:    make(map[int64]*models.JobTimeline),
		offers:       make(map[int64]*models.CounterOffer),
		users:        make(map[int64]*models.User),
		destinations: make(map[int64]string),
	}
}

func (f *fakeStore) CreateJob(job models.Job) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextJobID++
	job.ID = f.nextJobID
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	f.jobs[job.ID] = &job
	f.timelines[job.ID] = &models.JobTimeline{
		JobID:    job.ID,
		PostedAt: sql.NullTime{Time: time.Now(), Valid: true},
	}
	return job, nil
}

func (f *fakeStore) GetJobByID(jobID int64) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return models.Job{}, db.ErrNotFound
	}
	return *j, nil
}

func (f *fakeStore) BindHelper(jobID, helperID, offerID int64, finalPrice float64, paymentType string, hourlyRate float64) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return models.Job{}, db.ErrNotFound
	}
	if j.Status != constants.STATUS_POSTED || j.AssignedHelperID.Valid {
		return models.Job{}, db.ErrNoTransition
	}
	j.AssignedHelperID = sql.NullInt64{Int64: helperID, Valid: true}
	if offerID != 0 {
		j.AcceptedCounterOfferID = sql.NullInt64{Int64: offerID, Valid: true}
	}
	j.FinalPrice = sql.NullFloat64{Float64: finalPrice, Valid: true}
	j.PaymentType = paymentType
	j.HourlyRate = hourlyRate
	j.Status = constants.STATUS_CONFIRMED
	j.UpdatedAt = time.Now()
	for id, o := range f.offers {
		if o.JobID == jobID {
			delete(f.offers, id)
		}
	}
	f.stampLocked(jobID, func(t *models.JobTimeline) { t.ConfirmedAt = sql.NullTime{Time: time.Now(), Valid: true} })
	return *j, nil
}

func (f *fakeStore) StartJob(jobID int64, startedAt time.Time) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return models.Job{}, db.ErrNotFound
	}
	if j.Status != constants.STATUS_CONFIRMED {
		return models.Job{}, db.ErrNoTransition
	}
	j.Status = constants.STATUS_ONGOING
	j.ActualStartTime = sql.NullTime{Time: startedAt, Valid: true}
	j.UpdatedAt = time.Now()
	f.stampLocked(jobID, func(t *models.JobTimeline) { t.OngoingAt = sql.NullTime{Time: time.Now(), Valid: true} })
	return *j, nil
}

func (f *fakeStore) CompleteJob(jobID int64, endedAt time.Time, actualHours sql.NullFloat64, finalPrice float64) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return models.Job{}, db.ErrNotFound
	}
	if j.Status != constants.STATUS_ONGOING {
		return models.Job{}, db.ErrNoTransition
	}
	j.Status = constants.STATUS_COMPLETED
	j.ActualEndTime = sql.NullTime{Time: endedAt, Valid: true}
	j.ActualHours = actualHours
	j.FinalPrice = sql.NullFloat64{Float64: finalPrice, Valid: true}
	j.UpdatedAt = time.Now()
	f.stampLocked(jobID, func(t *models.JobTimeline) { t.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true} })
	return *j, nil
}

func (f *fakeStore) MarkPaid(jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return db.ErrNotFound
	}
	t := f.timelines[jobID]
	if j.Status != constants.STATUS_COMPLETED || (t != nil && t.PaidAt.Valid) {
		return db.ErrNoTransition
	}
	j.Status = constants.STATUS_PAID
	j.UpdatedAt = time.Now()
	f.stampLocked(jobID, func(t *models.JobTimeline) { t.PaidAt = sql.NullTime{Time: time.Now(), Valid: true} })
	return nil
}

func (f *fakeStore) CancelJob(jobID int64, fromStatuses []string) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return models.Job{}, db.ErrNotFound
	}
	allowed := false
	for _, st := range fromStatuses {
		if j.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.Job{}, db.ErrNoTransition
	}
	j.Status = constants.STATUS_CANCELED
	j.Active = false
	j.UpdatedAt = time.Now()
	return *j, nil
}

func (f *fakeStore) SetPaymentIntent(jobID int64, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return db.ErrNotFound
	}
	j.PaymentIntentID = sql.NullString{String: intentID, Valid: true}
	return nil
}

func (f *fakeStore) SetExtraTimeRequest(jobID int64, hours sql.NullFloat64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return db.ErrNotFound
	}
	j.ExtraTimeRequested = hours
	return nil
}

func (f *fakeStore) ApplyExtraTime(jobID int64, approved bool, totalApprovedHours float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return db.ErrNotFound
	}
	j.ExtraTimeApproved = approved
	j.TotalApprovedHours = totalApprovedHours
	j.ExtraTimeRequested = sql.NullFloat64{}
	return nil
}

func (f *fakeStore) ListUnpaidCompletedBefore(cutoff time.Time) ([]models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []models.Job
	for id, j := range f.jobs {
		t := f.timelines[id]
		if j.Status != constants.STATUS_COMPLETED || t == nil || !t.CompletedAt.Valid {
			continue
		}
		if t.PaidAt.Valid || !t.CompletedAt.Time.Before(cutoff) {
			continue
		}
		due = append(due, *j)
	}
	return due, nil
}

func (f *fakeStore) GetTimeline(jobID int64) (models.JobTimeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.timelines[jobID]
	if !ok {
		return models.JobTimeline{}, db.ErrNotFound
	}
	return *t, nil
}

func (f *fakeStore) stampLocked(jobID int64, fn func(*models.JobTimeline)) {
	t, ok := f.timelines[jobID]
	if !ok {
		t = &models.JobTimeline{JobID: jobID}
		f.timelines[jobID] = t
	}
	fn(t)
}

func (f *fakeStore) CreateCounterOffer(offer models.CounterOffer) (models.CounterOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextOfferID++
	offer.ID = f.nextOfferID
	offer.CreatedAt = time.Now()
	f.offers[offer.ID] = &offer
	f.stampLocked(offer.JobID, func(t *models.JobTimeline) {
		if !t.CounterOfferAt.Valid {
			t.CounterOfferAt = sql.NullTime{Time: time.Now(), Valid: true}
		}
	})
	return offer, nil
}

func (f *fakeStore) GetCounterOfferByID(offerID int64) (models.CounterOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[offerID]
	if !ok {
		return models.CounterOffer{}, db.ErrNotFound
	}
	return *o, nil
}

func (f *fakeStore) GetCounterOffersByJobID(jobID int64) ([]models.CounterOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []models.CounterOffer
	for _, o := range f.offers {
		if o.JobID == jobID {
			list = append(list, *o)
		}
	}
	return list, nil
}

func (f *fakeStore) DeleteCounterOffer(offerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.offers[offerID]; !ok {
		return db.ErrNotFound
	}
	delete(f.offers, offerID)
	return nil
}

func (f *fakeStore) HasActiveCounterOffers(jobID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.offers {
		if o.JobID == jobID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) AddTransaction(pt models.PaymentTransaction) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ledgerErr != nil {
		return 0, f.ledgerErr
	}
	f.nextTxID++
	pt.ID = f.nextTxID
	pt.CreatedAt = time.Now()
	f.ledger = append(f.ledger, pt)
	return pt.ID, nil
}

func (f *fakeStore) ledgerByType(txType string) []models.PaymentTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []models.PaymentTransaction
	for _, pt := range f.ledger {
		if pt.Type == txType {
			list = append(list, pt)
		}
	}
	return list
}

func (f *fakeStore) GetUserByID(userID int64) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return models.User{}, db.ErrNotFound
	}
	return *u, nil
}

func (f *fakeStore) GetPayoutDestinationByUserID(userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destinations[userID], nil
}

// fakeGateway считает вызовы и позволяет инжектировать сбои по операциям.
type fakeGateway struct {
	mu           sync.Mutex
	authorizeErr error
	captureErr   error
	transferErr  error
	refundErr    error

	authorizeCalls int
	captureCalls   int
	refundCalls    int
	transferKeys   map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{transferKeys: make(map[string]int)}
}

func (g *fakeGateway) AuthorizeCharge(ctx context.Context, payerID string, amount float64, idemKey string) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.authorizeErr != nil {
		return "", "", g.authorizeErr
	}
	g.authorizeCalls++
	return fmt.Sprintf("pi_%d", g.authorizeCalls), "https://pay.example/confirm", nil
}

func (g *fakeGateway) CaptureHold(ctx context.Context, holdID string, idemKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.captureErr != nil {
		return "", g.captureErr
	}
	g.captureCalls++
	return fmt.Sprintf("ch_%d", g.captureCalls), nil
}

func (g *fakeGateway) Transfer(ctx context.Context, destination string, amount float64, idemKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transferErr != nil {
		return "", g.transferErr
	}
	g.transferKeys[idemKey]++
	return "tr_" + idemKey[:8], nil
}

func (g *fakeGateway) Refund(ctx context.Context, holdID string, amount float64, idemKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refundCalls++
	return fmt.Sprintf("re_%d", g.refundCalls), nil
}

// uniqueTransfers возвращает число уникальных ключей идемпотентности,
// по которым выполнялись переводы.
func (g *fakeGateway) uniqueTransfers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.transferKeys)
}

func newTestService() (*Service, *fakeStore, *fakeGateway) {
	store := newFakeStore()
	gw := newFakeGateway()
	svc := NewService(store, store, store, store, gw, NewCommissionSplitter(0.10), nil)
	return svc, store, gw
}
