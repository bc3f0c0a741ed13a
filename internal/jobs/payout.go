// internal/jobs/payout.go
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"metalhead/internal/constants"
	"metalhead/internal/db"
	"metalhead/internal/models"
	"metalhead/internal/payments"
)

// Finish - единый путь выплаты: его проходят и ручное подтверждение
// постера, и авторасчёт (actorID=0). Делит итоговую сумму на выплату
// исполнителю и комиссию платформы, выполняет перевод на платёжные
// реквизиты исполнителя и переводит заказ completed -> paid.
//
// Идемпотентность двухуровневая: по уже оплаченному заказу (taймлайн
// paid выставлен) операция - no-op без единого обращения к шлюзу, а
// сам перевод ключуется детерминированным токеном от (заказ, сумма),
// поэтому гонка ручного finish с проходом авторасчёта не приводит к
// двойной выплате.
func (s *Service) Finish(ctx context.Context, jobID, actorID int64) (models.Job, error) {
	job, err := s.getJob(jobID)
	if err != nil {
		return models.Job{}, err
	}
	if actorID != 0 && actorID != job.PosterID {
		return models.Job{}, ErrUnauthorized
	}

	// Проверка paid до любого вызова шлюза.
	if job.Status == constants.STATUS_PAID {
		return job, nil
	}
	if tl, errTl := s.jobs.GetTimeline(jobID); errTl == nil && tl.PaidAt.Valid {
		return job, nil
	}
	if job.Status != constants.STATUS_COMPLETED {
		return models.Job{}, invalidState("finish", constants.STATUS_COMPLETED, job.Status)
	}
	if !job.AssignedHelperID.Valid {
		return models.Job{}, fmt.Errorf("%w: у заказа нет назначенного исполнителя", ErrPreconditionFailed)
	}
	helperID := job.AssignedHelperID.Int64

	destination, err := s.users.GetPayoutDestinationByUserID(helperID)
	if err != nil {
		log.Printf("Finish: ошибка получения платёжных реквизитов исполнителя %d: %v", helperID, err)
		return models.Job{}, err
	}
	if destination == "" {
		return models.Job{}, fmt.Errorf("%w: у исполнителя не настроены платёжные реквизиты", ErrPreconditionFailed)
	}

	total := job.Price
	if job.FinalPrice.Valid {
		total = job.FinalPrice.Float64
	}
	payout, fee := s.splitter.Split(total)

	transferID, err := s.gateway.Transfer(ctx, destination, payout, payments.IdempotencyKey("transfer", jobID, payout))
	if err != nil {
		// Заказ остаётся completed; операция повторяема постером или
		// следующим проходом авторасчёта.
		log.Printf("Finish: перевод по заказу %d не выполнен: %v", jobID, err)
		return models.Job{}, err
	}

	// Смена статуса - атомарный compare-and-swap. Проигравший гонку не
	// дублирует записи леджера; перевод у шлюза один благодаря ключу
	// идемпотентности.
	if err := s.jobs.MarkPaid(jobID); err != nil {
		if errors.Is(err, db.ErrNoTransition) {
			log.Printf("Finish: заказ %d уже оплачен конкурирующим вызовом.", jobID)
			if refreshed, errGet := s.getJob(jobID); errGet == nil {
				return refreshed, nil
			}
			return job, nil
		}
		log.Printf("Finish: ошибка фиксации оплаты по заказу %d: %v", jobID, err)
		return models.Job{}, err
	}

	// Записи леджера best-effort: перевод уже выполнен и является
	// источником истины, сбой журнала не блокирует переход.
	if _, errTx := s.ledger.AddTransaction(models.PaymentTransaction{
		JobID:           jobID,
		UserID:          sql.NullInt64{Int64: helperID, Valid: true},
		Type:            constants.TX_TYPE_PAYOUT,
		Amount:          payout,
		Status:          constants.TX_STATUS_SUCCEEDED,
		ReferenceNumber: transferID,
	}); errTx != nil {
		log.Printf("Finish: не удалось записать выплату в леджер по заказу %d: %v", jobID, errTx)
	}
	if _, errTx := s.ledger.AddTransaction(models.PaymentTransaction{
		JobID:           jobID,
		Type:            constants.TX_TYPE_COMMISSION,
		Amount:          fee,
		Status:          constants.TX_STATUS_SUCCEEDED,
		ReferenceNumber: transferID,
	}); errTx != nil {
		log.Printf("Finish: не удалось записать комиссию в леджер по заказу %d: %v", jobID, errTx)
	}

	s.notifyUser(helperID, fmt.Sprintf("💰 Заказ «%s» оплачен. Вам переведено %.2f.", job.Title, payout))
	s.notifyUser(job.PosterID, fmt.Sprintf("💰 Оплата по заказу «%s» проведена (%.2f).", job.Title, total))
	log.Printf("Заказ #%d оплачен: выплата %.2f, комиссия %.2f, перевод %s.", jobID, payout, fee, transferID)

	refreshed, err := s.getJob(jobID)
	if err != nil {
		return job, nil
	}
	return refreshed, nil
}
