// internal/jobs/extratime.go
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"metalhead/internal/constants"
	"metalhead/internal/models"
	"metalhead/internal/payments"
)

// RequestExtraTime сохраняет запрос постера на дополнительные часы по
// почасовому заказу в работе. Часы добавятся к оплачиваемому времени
// только после одобрения и успешного доначисления.
func (s *Service) RequestExtraTime(jobID, posterID int64, hours float64) (models.Job, error) {
	if hours <= 0 {
		return models.Job{}, fmt.Errorf("%w: запрошенные часы должны быть > 0", ErrPreconditionFailed)
	}

	job, err := s.getJob(jobID)
	if err != nil {
		return models.Job{}, err
	}
	if job.PosterID != posterID {
		return models.Job{}, ErrUnauthorized
	}
	if job.Status != constants.STATUS_ONGOING {
		return models.Job{}, invalidState("request extra time", constants.STATUS_ONGOING, job.Status)
	}
	if job.PaymentType != constants.PAYMENT_TYPE_HOURLY {
		return models.Job{}, fmt.Errorf("%w: доп. время доступно только для почасовых заказов", ErrPreconditionFailed)
	}

	if err := s.jobs.SetExtraTimeRequest(jobID, sql.NullFloat64{Float64: hours, Valid: true}); err != nil {
		log.Printf("RequestExtraTime: ошибка сохранения запроса по заказу %d: %v", jobID, err)
		return models.Job{}, err
	}

	if job.AssignedHelperID.Valid {
		s.notifyUser(job.AssignedHelperID.Int64, fmt.Sprintf("⏱ По заказу «%s» запрошено доп. время: %.2f ч.", job.Title, hours))
	}
	log.Printf("По заказу #%d запрошено доп. время: %.2f ч.", jobID, hours)
	return s.getJob(jobID)
}

// ResolveExtraTime одобряет или отклоняет запрос доп. времени.
// Одобрение доначисляет постеру стоимость доп. часов с комиссией
// сверху (авторизация + немедленный захват). Одобрение не переживает
// сбой платежа: при любой ошибке шлюза флаг и накопленные часы
// откатываются к прежним значениям, а запрос восстанавливается.
func (s *Service) ResolveExtraTime(ctx context.Context, jobID, posterID int64, approve bool) (models.Job, error) {
	job, err := s.getJob(jobID)
	if err != nil {
		return models.Job{}, err
	}
	if job.PosterID != posterID {
		return models.Job{}, ErrUnauthorized
	}
	if job.Status != constants.STATUS_ONGOING {
		return models.Job{}, invalidState("resolve extra time", constants.STATUS_ONGOING, job.Status)
	}
	if !job.ExtraTimeRequested.Valid {
		return models.Job{}, fmt.Errorf("%w: по заказу нет запроса доп. времени", ErrPreconditionFailed)
	}

	if !approve {
		if err := s.jobs.SetExtraTimeRequest(jobID, sql.NullFloat64{}); err != nil {
			log.Printf("ResolveExtraTime: ошибка очистки запроса по заказу %d: %v", jobID, err)
			return models.Job{}, err
		}
		if job.AssignedHelperID.Valid {
			s.notifyUser(job.AssignedHelperID.Int64, fmt.Sprintf("⏱ Запрос доп. времени по заказу «%s» отклонён.", job.Title))
		}
		log.Printf("Запрос доп. времени по заказу #%d отклонён.", jobID)
		return s.getJob(jobID)
	}

	extra := job.ExtraTimeRequested.Float64
	base := round2(job.HourlyRate * extra)
	charge := s.splitter.GrossUp(base)
	prevApproved := job.ExtraTimeApproved
	prevTotal := job.TotalApprovedHours

	if err := s.jobs.ApplyExtraTime(jobID, true, prevTotal+extra); err != nil {
		log.Printf("ResolveExtraTime: ошибка фиксации одобрения по заказу %d: %v", jobID, err)
		return models.Job{}, err
	}

	payer := fmt.Sprintf("%d", job.PosterID)
	holdID, _, err := s.gateway.AuthorizeCharge(ctx, payer, charge, payments.IdempotencyKey("extra-auth", jobID, charge))
	if err != nil {
		log.Printf("ResolveExtraTime: авторизация доначисления по заказу %d не выполнена: %v", jobID, err)
		s.rollbackExtraTime(jobID, prevApproved, prevTotal, job.ExtraTimeRequested)
		return models.Job{}, err
	}

	receiptID, err := s.gateway.CaptureHold(ctx, holdID, payments.IdempotencyKey("extra-capture", jobID, charge))
	if err != nil {
		log.Printf("ResolveExtraTime: захват доначисления по заказу %d не выполнен: %v", jobID, err)
		s.rollbackExtraTime(jobID, prevApproved, prevTotal, job.ExtraTimeRequested)
		return models.Job{}, err
	}

	if _, errTx := s.ledger.AddTransaction(models.PaymentTransaction{
		JobID:           jobID,
		UserID:          sql.NullInt64{Int64: job.PosterID, Valid: true},
		Type:            constants.TX_TYPE_CAPTURE,
		Amount:          charge,
		Status:          constants.TX_STATUS_SUCCEEDED,
		ReferenceNumber: receiptID,
	}); errTx != nil {
		log.Printf("ResolveExtraTime: не удалось записать доначисление в леджер по заказу %d: %v", jobID, errTx)
	}

	if job.AssignedHelperID.Valid {
		s.notifyUser(job.AssignedHelperID.Int64, fmt.Sprintf("⏱ Доп. время по заказу «%s» одобрено: +%.2f ч.", job.Title, extra))
	}
	log.Printf("Доп. время по заказу #%d одобрено: +%.2f ч, доначислено %.2f.", jobID, extra, charge)
	return s.getJob(jobID)
}

// rollbackExtraTime откатывает одобрение доп. времени после сбоя
// платежа и восстанавливает исходный запрос, чтобы его можно было
// одобрить повторно.
func (s *Service) rollbackExtraTime(jobID int64, prevApproved bool, prevTotal float64, requested sql.NullFloat64) {
	if err := s.jobs.ApplyExtraTime(jobID, prevApproved, prevTotal); err != nil {
		log.Printf("rollbackExtraTime: ошибка отката одобрения по заказу %d: %v", jobID, err)
		return
	}
	if err := s.jobs.SetExtraTimeRequest(jobID, requested); err != nil {
		log.Printf("rollbackExtraTime: ошибка восстановления запроса по заказу %d: %v", jobID, err)
	}
}
