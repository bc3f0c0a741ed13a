package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"metalhead/internal/constants"
	"metalhead/internal/models"
)

func mustCreateFixedJob(t *testing.T, svc *Service, posterID int64, price float64) models.Job {
	t.Helper()
	job, err := svc.CreateJob(posterID, "Разгрузка фургона", "Два часа работы", price, constants.PAYMENT_TYPE_FIXED, 0, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func TestProposeOnOwnJobForbidden(t *testing.T) {
	svc, _, _ := newTestService()
	job := mustCreateFixedJob(t, svc, 1, 100)

	_, err := svc.Propose(job.ID, 1, 80, constants.PAYMENT_TYPE_FIXED, "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("ожидалась ErrForbidden, получено %v", err)
	}
}

func TestProposeMarksDerivedCounterOfferView(t *testing.T) {
	svc, _, _ := newTestService()
	job := mustCreateFixedJob(t, svc, 1, 100)

	if _, err := svc.Propose(job.ID, 2, 80, constants.PAYMENT_TYPE_FIXED, "сделаю дешевле"); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// Предложения не меняют хранимый статус: заказ остаётся posted,
	// "counter_offer" - производное представление.
	got, _ := svc.GetJob(job.ID)
	if got.Status != constants.STATUS_POSTED {
		t.Errorf("статус: ожидался posted, получен %s", got.Status)
	}
	hasOffers, err := svc.HasActiveOffers(job.ID)
	if err != nil || !hasOffers {
		t.Errorf("HasActiveOffers: ожидалось true, получено %v, %v", hasOffers, err)
	}
}

func TestAcceptConfirmsOnOfferTerms(t *testing.T) {
	svc, store, gw := newTestService()
	job := mustCreateFixedJob(t, svc, 1, 100)

	offer, err := svc.Propose(job.ID, 2, 80, constants.PAYMENT_TYPE_FIXED, "")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := svc.Propose(job.ID, 3, 95, constants.PAYMENT_TYPE_FIXED, ""); err != nil {
		t.Fatalf("Propose (второе): %v", err)
	}

	confirmed, err := svc.Accept(context.Background(), offer.ID, 1)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if confirmed.Status != constants.STATUS_CONFIRMED {
		t.Errorf("статус: ожидался confirmed, получен %s", confirmed.Status)
	}
	if !confirmed.AssignedHelperID.Valid || confirmed.AssignedHelperID.Int64 != 2 {
		t.Errorf("исполнитель: ожидался 2, получено %+v", confirmed.AssignedHelperID)
	}
	if !confirmed.FinalPrice.Valid || confirmed.FinalPrice.Float64 != 80 {
		t.Errorf("итоговая цена: ожидалось 80, получено %+v", confirmed.FinalPrice)
	}
	if !confirmed.AcceptedCounterOfferID.Valid || confirmed.AcceptedCounterOfferID.Int64 != offer.ID {
		t.Errorf("принятое предложение: ожидалось %d, получено %+v", offer.ID, confirmed.AcceptedCounterOfferID)
	}

	// Остальные предложения удаляются при подтверждении.
	hasOffers, _ := store.HasActiveCounterOffers(job.ID)
	if hasOffers {
		t.Error("после акцепта не должно остаться активных предложений")
	}

	// Холд авторизован и привязан к заказу.
	if gw.authorizeCalls != 1 {
		t.Errorf("авторизаций холда: ожидалась 1, получено %d", gw.authorizeCalls)
	}
	got, _ := svc.GetJob(job.ID)
	if !got.PaymentIntentID.Valid {
		t.Error("id холда не сохранён в заказе")
	}
}

func TestAcceptByHelperUnauthorized(t *testing.T) {
	svc, _, _ := newTestService()
	job := mustCreateFixedJob(t, svc, 1, 100)

	offer, _ := svc.Propose(job.ID, 2, 80, constants.PAYMENT_TYPE_FIXED, "")
	if _, err := svc.Accept(context.Background(), offer.ID, 2); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ожидалась ErrUnauthorized, получено %v", err)
	}
}

func TestConcurrentAcceptExactlyOneWins(t *testing.T) {
	svc, _, _ := newTestService()
	job := mustCreateFixedJob(t, svc, 1, 100)

	offerA, _ := svc.Propose(job.ID, 2, 80, constants.PAYMENT_TYPE_FIXED, "")
	offerB, _ := svc.Propose(job.ID, 3, 90, constants.PAYMENT_TYPE_FIXED, "")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, offerID := range []int64{offerA.ID, offerB.ID} {
		wg.Add(1)
		go func(i int, offerID int64) {
			defer wg.Done()
			_, errs[i] = svc.Accept(context.Background(), offerID, 1)
		}(i, offerID)
	}
	wg.Wait()

	var okCount, conflictCount int
	for _, err := range errs {
		switch {
		case err == nil:
			okCount++
		case errors.Is(err, ErrConflict) || errors.Is(err, ErrOfferNotFound):
			// Проигравший может не найти своё предложение: акцепт
			// победителя удаляет все предложения по заказу.
			conflictCount++
		default:
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	}
	if okCount != 1 || conflictCount != 1 {
		t.Fatalf("ожидался ровно один успех и один конфликт, получено %d/%d", okCount, conflictCount)
	}

	got, _ := svc.GetJob(job.ID)
	if !got.AssignedHelperID.Valid {
		t.Fatal("исполнитель не назначен")
	}
	if got.AssignedHelperID.Int64 != 2 && got.AssignedHelperID.Int64 != 3 {
		t.Fatalf("назначен неожиданный исполнитель %d", got.AssignedHelperID.Int64)
	}
}

func TestDirectAcceptOnAssignedJobConflict(t *testing.T) {
	svc, _, _ := newTestService()
	job := mustCreateFixedJob(t, svc, 1, 100)

	if _, err := svc.DirectAccept(context.Background(), job.ID, 2); err != nil {
		t.Fatalf("DirectAccept: %v", err)
	}

	_, err := svc.DirectAccept(context.Background(), job.ID, 3)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("ожидалась ErrConflict, получено %v", err)
	}

	// Назначение не перезаписано.
	got, _ := svc.GetJob(job.ID)
	if got.AssignedHelperID.Int64 != 2 {
		t.Errorf("назначение изменилось: ожидался 2, получен %d", got.AssignedHelperID.Int64)
	}
}

func TestDeclineRemovesOffer(t *testing.T) {
	svc, _, _ := newTestService()
	job := mustCreateFixedJob(t, svc, 1, 100)

	offer, _ := svc.Propose(job.ID, 2, 80, constants.PAYMENT_TYPE_FIXED, "")

	if err := svc.Decline(offer.ID, 1); err != nil {
		t.Fatalf("Decline: %v", err)
	}

	hasOffers, _ := svc.HasActiveOffers(job.ID)
	if hasOffers {
		t.Error("предложение не удалено после отклонения")
	}
	got, _ := svc.GetJob(job.ID)
	if got.Status != constants.STATUS_POSTED {
		t.Errorf("статус: ожидался posted, получен %s", got.Status)
	}
}

func TestDeclineByStrangerUnauthorized(t *testing.T) {
	svc, _, _ := newTestService()
	job := mustCreateFixedJob(t, svc, 1, 100)

	offer, _ := svc.Propose(job.ID, 2, 80, constants.PAYMENT_TYPE_FIXED, "")
	if err := svc.Decline(offer.ID, 99); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ожидалась ErrUnauthorized, получено %v", err)
	}
}

func TestAcceptHourlyOfferSetsRate(t *testing.T) {
	svc, _, _ := newTestService()
	job := mustCreateFixedJob(t, svc, 1, 100)

	offer, _ := svc.Propose(job.ID, 2, 25, constants.PAYMENT_TYPE_HOURLY, "лучше почасово")
	confirmed, err := svc.Accept(context.Background(), offer.ID, 1)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if confirmed.PaymentType != constants.PAYMENT_TYPE_HOURLY {
		t.Errorf("тип оплаты: ожидался hourly, получен %s", confirmed.PaymentType)
	}
	if confirmed.HourlyRate != 25 {
		t.Errorf("ставка: ожидалось 25, получено %.2f", confirmed.HourlyRate)
	}
}
