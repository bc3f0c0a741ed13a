// internal/jobs/offers.go
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"metalhead/internal/constants"
	"metalhead/internal/db"
	"metalhead/internal/models"
	"metalhead/internal/payments"
)

// Propose создает встречное предложение исполнителя по заказу:
// свою цену и/или тип оплаты. Допустимо только пока заказ в статусе
// posted и исполнитель ещё не назначен.
func (s *Service) Propose(jobID, helperID int64, amount float64, paymentType, note string) (models.CounterOffer, error) {
	if amount <= 0 {
		return models.CounterOffer{}, fmt.Errorf("%w: сумма предложения должна быть > 0", ErrPreconditionFailed)
	}
	if paymentType != constants.PAYMENT_TYPE_FIXED && paymentType != constants.PAYMENT_TYPE_HOURLY {
		return models.CounterOffer{}, fmt.Errorf("%w: неизвестный тип оплаты '%s'", ErrPreconditionFailed, paymentType)
	}

	job, err := s.getJob(jobID)
	if err != nil {
		return models.CounterOffer{}, err
	}
	if job.PosterID == helperID {
		return models.CounterOffer{}, fmt.Errorf("%w: постер не может откликнуться на собственный заказ", ErrForbidden)
	}
	if job.Status != constants.STATUS_POSTED || job.AcceptedCounterOfferID.Valid {
		return models.CounterOffer{}, ErrConflict
	}

	offer, err := s.offers.CreateCounterOffer(models.CounterOffer{
		JobID:       jobID,
		HelperID:    helperID,
		Amount:      amount,
		PaymentType: paymentType,
		Note:        note,
	})
	if err != nil {
		log.Printf("Propose: ошибка создания предложения по заказу %d: %v", jobID, err)
		return models.CounterOffer{}, err
	}

	s.notifyUser(job.PosterID, fmt.Sprintf("💬 Новое предложение по заказу «%s»: %.2f (%s).", job.Title, amount, paymentType))
	log.Printf("Предложение #%d по заказу %d создано исполнителем %d.", offer.ID, jobID, helperID)
	return offer, nil
}

// Accept принимает встречное предложение. Назначение исполнителя -
// атомарный compare-and-swap: из двух конкурирующих акцептов выигрывает
// ровно один, второй получает ErrConflict. Принятие подтверждает заказ
// на условиях предложения и удаляет все остальные предложения.
func (s *Service) Accept(ctx context.Context, offerID, actingUserID int64) (models.Job, error) {
	offer, err := s.offers.GetCounterOfferByID(offerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Job{}, ErrOfferNotFound
		}
		log.Printf("Accept: ошибка получения предложения %d: %v", offerID, err)
		return models.Job{}, err
	}

	job, err := s.getJob(offer.JobID)
	if err != nil {
		return models.Job{}, err
	}
	if actingUserID == offer.HelperID {
		return models.Job{}, ErrUnauthorized
	}
	if actingUserID != job.PosterID {
		return models.Job{}, ErrUnauthorized
	}

	hourlyRate := 0.0
	if offer.PaymentType == constants.PAYMENT_TYPE_HOURLY {
		hourlyRate = offer.Amount
	}

	confirmed, err := s.jobs.BindHelper(job.ID, offer.HelperID, offer.ID, offer.Amount, offer.PaymentType, hourlyRate)
	if err != nil {
		if errors.Is(err, db.ErrNoTransition) {
			return models.Job{}, ErrConflict
		}
		log.Printf("Accept: ошибка назначения исполнителя по заказу %d: %v", job.ID, err)
		return models.Job{}, err
	}

	s.authorizeHold(ctx, confirmed)

	s.notifyUser(offer.HelperID, fmt.Sprintf("🤝 Ваше предложение по заказу «%s» принято. Заказ подтверждён.", job.Title))
	log.Printf("Заказ #%d подтверждён: предложение #%d, исполнитель %d, сумма %.2f.", job.ID, offer.ID, offer.HelperID, offer.Amount)
	return confirmed, nil
}

// Decline отклоняет встречное предложение (доступно только постеру).
// Предложение удаляется; заказ остаётся в статусе posted.
func (s *Service) Decline(offerID, actingUserID int64) error {
	offer, err := s.offers.GetCounterOfferByID(offerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrOfferNotFound
		}
		log.Printf("Decline: ошибка получения предложения %d: %v", offerID, err)
		return err
	}

	job, err := s.getJob(offer.JobID)
	if err != nil {
		return err
	}
	if actingUserID != job.PosterID {
		return ErrUnauthorized
	}

	if err := s.offers.DeleteCounterOffer(offerID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrOfferNotFound
		}
		log.Printf("Decline: ошибка удаления предложения %d: %v", offerID, err)
		return err
	}

	s.notifyUser(offer.HelperID, fmt.Sprintf("🚫 Ваше предложение по заказу «%s» отклонено.", job.Title))
	log.Printf("Предложение #%d по заказу %d отклонено постером.", offerID, job.ID)
	return nil
}

// DirectAccept - прямой отклик исполнителя на условиях постера, без
// переговоров. Конкурирует с акцептом предложений за тот же
// compare-and-swap: на уже назначенный заказ возвращает ErrConflict,
// не трогая существующее назначение.
func (s *Service) DirectAccept(ctx context.Context, jobID, helperID int64) (models.Job, error) {
	job, err := s.getJob(jobID)
	if err != nil {
		return models.Job{}, err
	}
	if job.PosterID == helperID {
		return models.Job{}, fmt.Errorf("%w: постер не может взять собственный заказ", ErrForbidden)
	}
	if job.Status != constants.STATUS_POSTED || job.AssignedHelperID.Valid {
		return models.Job{}, ErrConflict
	}

	confirmed, err := s.jobs.BindHelper(jobID, helperID, 0, job.Price, job.PaymentType, job.HourlyRate)
	if err != nil {
		if errors.Is(err, db.ErrNoTransition) {
			return models.Job{}, ErrConflict
		}
		log.Printf("DirectAccept: ошибка назначения исполнителя по заказу %d: %v", jobID, err)
		return models.Job{}, err
	}

	s.authorizeHold(ctx, confirmed)

	s.notifyUser(job.PosterID, fmt.Sprintf("🤝 Исполнитель принял заказ «%s» на ваших условиях.", job.Title))
	log.Printf("Заказ #%d подтверждён прямым откликом исполнителя %d.", jobID, helperID)
	return confirmed, nil
}

// ListOffers возвращает все активные предложения по заказу.
func (s *Service) ListOffers(jobID int64) ([]models.CounterOffer, error) {
	if _, err := s.getJob(jobID); err != nil {
		return nil, err
	}
	return s.offers.GetCounterOffersByJobID(jobID)
}

// HasActiveOffers сообщает, есть ли по заказу непринятые предложения.
// "counter_offer" - производное представление, а не хранимый статус:
// заказ при этом остаётся posted.
func (s *Service) HasActiveOffers(jobID int64) (bool, error) {
	return s.offers.HasActiveCounterOffers(jobID)
}

// authorizeHold создает эскроу-холд на подтверждённую сумму заказа.
// Сбой авторизации не откатывает подтверждение: холд опционален, и
// захват при завершении пропускается, если холда нет.
func (s *Service) authorizeHold(ctx context.Context, job models.Job) {
	if s.gateway == nil {
		return
	}
	amount := job.Price
	if job.FinalPrice.Valid {
		amount = job.FinalPrice.Float64
	}
	payer := fmt.Sprintf("%d", job.PosterID)
	holdID, _, err := s.gateway.AuthorizeCharge(ctx, payer, amount, payments.IdempotencyKey("authorize", job.ID, amount))
	if err != nil {
		log.Printf("authorizeHold: авторизация холда по заказу %d не выполнена: %v", job.ID, err)
		return
	}
	if err := s.jobs.SetPaymentIntent(job.ID, holdID); err != nil {
		log.Printf("authorizeHold: не удалось сохранить id холда по заказу %d: %v", job.ID, err)
	}
}
