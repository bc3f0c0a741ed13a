package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"metalhead/internal/constants"
	"metalhead/internal/models"
)

// mustCompletedJob готовит выполненный заказ на 100.00 с настроенными
// платёжными реквизитами исполнителя.
func mustCompletedJob(t *testing.T, svc *Service, store *fakeStore) models.Job {
	t.Helper()
	job := mustCreateFixedJob(t, svc, 1, 100)
	if _, err := svc.DirectAccept(context.Background(), job.ID, 2); err != nil {
		t.Fatalf("DirectAccept: %v", err)
	}
	if _, err := svc.Start(job.ID, 2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	completed, err := svc.Complete(context.Background(), job.ID, 2)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	store.mu.Lock()
	store.destinations[2] = "acct_helper_2"
	store.mu.Unlock()
	return completed
}

func TestFinishSplitsAndMarksPaid(t *testing.T) {
	svc, store, gw := newTestService()
	job := mustCompletedJob(t, svc, store)

	paid, err := svc.Finish(context.Background(), job.ID, 1)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if paid.Status != constants.STATUS_PAID {
		t.Errorf("статус: ожидался paid, получен %s", paid.Status)
	}
	tl, _ := store.GetTimeline(job.ID)
	if !tl.PaidAt.Valid {
		t.Error("отметка paid не выставлена в таймлайне")
	}

	payouts := store.ledgerByType(constants.TX_TYPE_PAYOUT)
	commissions := store.ledgerByType(constants.TX_TYPE_COMMISSION)
	if len(payouts) != 1 || payouts[0].Amount != 90.00 {
		t.Errorf("выплата в леджере: ожидалась одна на 90.00, получено %+v", payouts)
	}
	if len(commissions) != 1 || commissions[0].Amount != 10.00 {
		t.Errorf("комиссия в леджере: ожидалась одна на 10.00, получено %+v", commissions)
	}
	if !payouts[0].UserID.Valid || payouts[0].UserID.Int64 != 2 {
		t.Errorf("выплата привязана не к исполнителю: %+v", payouts[0].UserID)
	}
	if commissions[0].UserID.Valid {
		t.Error("комиссия платформы не должна привязываться к пользователю")
	}
	if gw.uniqueTransfers() != 1 {
		t.Errorf("переводов: ожидался 1, получено %d", gw.uniqueTransfers())
	}
}

func TestFinishTwiceSingleTransferAndLedgerPair(t *testing.T) {
	svc, store, gw := newTestService()
	job := mustCompletedJob(t, svc, store)

	if _, err := svc.Finish(context.Background(), job.ID, 1); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	second, err := svc.Finish(context.Background(), job.ID, 1)
	if err != nil {
		t.Fatalf("повторный Finish: %v", err)
	}
	if second.Status != constants.STATUS_PAID {
		t.Errorf("статус: ожидался paid, получен %s", second.Status)
	}

	if gw.uniqueTransfers() != 1 {
		t.Errorf("переводов: ожидался 1, получено %d", gw.uniqueTransfers())
	}
	if got := len(store.ledgerByType(constants.TX_TYPE_PAYOUT)); got != 1 {
		t.Errorf("записей выплат: ожидалась 1, получено %d", got)
	}
	if got := len(store.ledgerByType(constants.TX_TYPE_COMMISSION)); got != 1 {
		t.Errorf("записей комиссий: ожидалась 1, получено %d", got)
	}
}

func TestFinishNoDestinationPreconditionFailed(t *testing.T) {
	svc, store, gw := newTestService()
	job := mustCompletedJob(t, svc, store)

	store.mu.Lock()
	delete(store.destinations, 2)
	store.mu.Unlock()

	_, err := svc.Finish(context.Background(), job.ID, 1)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("ожидалась ErrPreconditionFailed, получено %v", err)
	}
	if gw.uniqueTransfers() != 0 {
		t.Error("перевод выполнен без платёжных реквизитов")
	}
}

func TestFinishTransferFailureLeavesCompleted(t *testing.T) {
	svc, store, gw := newTestService()
	job := mustCompletedJob(t, svc, store)
	gw.transferErr = errors.New("шлюз недоступен")

	if _, err := svc.Finish(context.Background(), job.ID, 1); err == nil {
		t.Fatal("ожидалась ошибка перевода")
	}

	got, _ := svc.GetJob(job.ID)
	if got.Status != constants.STATUS_COMPLETED {
		t.Errorf("статус: ожидался completed (повторяемо), получен %s", got.Status)
	}
	if len(store.ledgerByType(constants.TX_TYPE_PAYOUT)) != 0 {
		t.Error("запись выплаты появилась при сбое перевода")
	}

	// После восстановления шлюза операция повторяема.
	gw.transferErr = nil
	if _, err := svc.Finish(context.Background(), job.ID, 1); err != nil {
		t.Fatalf("повторный Finish после сбоя: %v", err)
	}
	got, _ = svc.GetJob(job.ID)
	if got.Status != constants.STATUS_PAID {
		t.Errorf("статус: ожидался paid, получен %s", got.Status)
	}
}

func TestFinishByStrangerUnauthorized(t *testing.T) {
	svc, store, _ := newTestService()
	job := mustCompletedJob(t, svc, store)

	_, err := svc.Finish(context.Background(), job.ID, 99)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ожидалась ErrUnauthorized, получено %v", err)
	}
}

func TestFinishFromOngoingInvalidState(t *testing.T) {
	svc, store, _ := newTestService()
	job := mustOngoingHourlyJob(t, svc, store, 20, time.Hour)

	_, err := svc.Finish(context.Background(), job.ID, 1)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("ожидалась ErrInvalidState, получено %v", err)
	}
}
