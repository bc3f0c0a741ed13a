// internal/jobs/service.go
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"metalhead/internal/constants"
	"metalhead/internal/db"
	"metalhead/internal/models"
	"metalhead/internal/notify"
	"metalhead/internal/payments"
)

// Service - движок жизненного цикла заказа. Владеет машиной состояний
// posted -> confirmed -> ongoing -> completed -> paid (и веткой cancelled),
// путём выплаты и согласованием доп. времени. Все зависимости
// инжектируются при конструировании.
type Service struct {
	jobs     JobStore
	offers   OfferStore
	ledger   LedgerStore
	users    UserStore
	gateway  payments.Gateway
	splitter *CommissionSplitter
	notifier notify.Notifier
}

// NewService создает движок жизненного цикла.
func NewService(jobs JobStore, offers OfferStore, ledger LedgerStore, users UserStore, gateway payments.Gateway, splitter *CommissionSplitter, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		jobs:     jobs,
		offers:   offers,
		ledger:   ledger,
		users:    users,
		gateway:  gateway,
		splitter: splitter,
		notifier: notifier,
	}
}

// getJob извлекает заказ, транслируя ошибку хранилища в ошибку движка.
func (s *Service) getJob(jobID int64) (models.Job, error) {
	job, err := s.jobs.GetJobByID(jobID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return job, ErrJobNotFound
		}
		log.Printf("getJob: ошибка получения заказа %d: %v", jobID, err)
		return job, err
	}
	return job, nil
}

// notifyUser отправляет пользователю уведомление по его chat_id.
// Сбой доставки логируется и не влияет на результат операции.
func (s *Service) notifyUser(userID int64, text string) {
	if userID == 0 {
		return
	}
	u, err := s.users.GetUserByID(userID)
	if err != nil {
		log.Printf("notifyUser: не удалось получить пользователя %d: %v", userID, err)
		return
	}
	s.notifier.Send(u.ChatID, text)
}

// CreateJob публикует новый заказ в статусе posted.
func (s *Service) CreateJob(posterID int64, title, description string, price float64, paymentType string, hourlyRate float64, startTime, endTime time.Time) (models.Job, error) {
	if title == "" {
		return models.Job{}, fmt.Errorf("%w: заголовок заказа не может быть пустым", ErrPreconditionFailed)
	}
	switch paymentType {
	case constants.PAYMENT_TYPE_FIXED:
		if price <= 0 {
			return models.Job{}, fmt.Errorf("%w: цена заказа с фиксированной оплатой должна быть > 0", ErrPreconditionFailed)
		}
	case constants.PAYMENT_TYPE_HOURLY:
		if hourlyRate <= 0 {
			return models.Job{}, fmt.Errorf("%w: почасовая ставка должна быть > 0", ErrPreconditionFailed)
		}
	default:
		return models.Job{}, fmt.Errorf("%w: неизвестный тип оплаты '%s'", ErrPreconditionFailed, paymentType)
	}

	job := models.Job{
		PosterID:    posterID,
		Title:       title,
		Description: description,
		Price:       price,
		PaymentType: paymentType,
		HourlyRate:  hourlyRate,
		Status:      constants.STATUS_POSTED,
		Active:      true,
	}
	if !startTime.IsZero() {
		job.StartTime = sql.NullTime{Time: startTime, Valid: true}
	}
	if !endTime.IsZero() {
		job.EndTime = sql.NullTime{Time: endTime, Valid: true}
	}

	created, err := s.jobs.CreateJob(job)
	if err != nil {
		log.Printf("CreateJob: ошибка создания заказа постера %d: %v", posterID, err)
		return models.Job{}, err
	}
	log.Printf("Заказ #%d опубликован постером %d ('%s').", created.ID, posterID, created.Title)
	return created, nil
}

// Start переводит заказ confirmed -> ongoing. Доступен только
// назначенному исполнителю; фиксирует фактическое время начала работы.
func (s *Service) Start(jobID, helperID int64) (models.Job, error) {
	job, err := s.getJob(jobID)
	if err != nil {
		return models.Job{}, err
	}
	if !job.AssignedHelperID.Valid || job.AssignedHelperID.Int64 != helperID {
		return models.Job{}, ErrUnauthorized
	}

	started, err := s.jobs.StartJob(jobID, time.Now())
	if err != nil {
		if errors.Is(err, db.ErrNoTransition) {
			return models.Job{}, invalidState("start", constants.STATUS_CONFIRMED, job.Status)
		}
		log.Printf("Start: ошибка перевода заказа %d в работу: %v", jobID, err)
		return models.Job{}, err
	}

	s.notifyUser(job.PosterID, fmt.Sprintf("▶️ Исполнитель приступил к заказу «%s».", job.Title))
	log.Printf("Заказ #%d переведён в работу исполнителем %d.", jobID, helperID)
	return started, nil
}

// Complete переводит заказ ongoing -> completed. Для почасовых заказов
// вычисляет фактические часы и итоговую цену; фактические часы никогда
// не принимаются от клиента. Повторный вызов по уже выполненному или
// оплаченному заказу - идемпотентный no-op.
func (s *Service) Complete(ctx context.Context, jobID, helperID int64) (models.Job, error) {
	job, err := s.getJob(jobID)
	if err != nil {
		return models.Job{}, err
	}
	if !job.AssignedHelperID.Valid || job.AssignedHelperID.Int64 != helperID {
		return models.Job{}, ErrUnauthorized
	}
	if job.Status == constants.STATUS_COMPLETED || job.Status == constants.STATUS_PAID {
		return job, nil
	}
	if job.Status != constants.STATUS_ONGOING {
		return models.Job{}, invalidState("complete", constants.STATUS_ONGOING, job.Status)
	}

	now := time.Now()
	var actualHours sql.NullFloat64
	finalPrice := job.Price
	if job.FinalPrice.Valid {
		finalPrice = job.FinalPrice.Float64
	}

	if job.PaymentType == constants.PAYMENT_TYPE_HOURLY {
		if !job.ActualStartTime.Valid {
			return models.Job{}, fmt.Errorf("%w: у почасового заказа %d нет фактического времени начала", ErrPreconditionFailed, jobID)
		}
		worked := math.Round(now.Sub(job.ActualStartTime.Time).Hours()*100) / 100
		if worked < 0 {
			worked = 0
		}
		actualHours = sql.NullFloat64{Float64: worked, Valid: true}
		totalHours := worked + job.TotalApprovedHours
		finalPrice = round2(job.HourlyRate * totalHours)
	}

	// Захват эскроу-холда выполняется до смены статуса: при сбое шлюза
	// заказ остаётся ongoing и операцию можно повторить. Холд опционален -
	// если авторизация при подтверждении не прошла, захватывать нечего.
	if job.PaymentIntentID.Valid && s.gateway != nil {
		idemKey := payments.IdempotencyKey("capture", jobID, finalPrice)
		receiptID, errCap := s.gateway.CaptureHold(ctx, job.PaymentIntentID.String, idemKey)
		if errCap != nil {
			log.Printf("Complete: захват холда по заказу %d не выполнен: %v", jobID, errCap)
			return models.Job{}, errCap
		}
		if _, errTx := s.ledger.AddTransaction(models.PaymentTransaction{
			JobID:           jobID,
			UserID:          sql.NullInt64{Int64: job.PosterID, Valid: true},
			Type:            constants.TX_TYPE_CAPTURE,
			Amount:          finalPrice,
			Status:          constants.TX_STATUS_SUCCEEDED,
			ReferenceNumber: receiptID,
		}); errTx != nil {
			log.Printf("Complete: не удалось записать захват в леджер по заказу %d: %v", jobID, errTx)
		}
	}

	completed, err := s.jobs.CompleteJob(jobID, now, actualHours, finalPrice)
	if err != nil {
		if errors.Is(err, db.ErrNoTransition) {
			// Гонка: кто-то успел завершить раньше. Возвращаем текущую
			// запись, если она уже completed/paid.
			refreshed, errGet := s.getJob(jobID)
			if errGet == nil && (refreshed.Status == constants.STATUS_COMPLETED || refreshed.Status == constants.STATUS_PAID) {
				return refreshed, nil
			}
			return models.Job{}, invalidState("complete", constants.STATUS_ONGOING, job.Status)
		}
		log.Printf("Complete: ошибка завершения заказа %d: %v", jobID, err)
		return models.Job{}, err
	}

	s.notifyUser(job.PosterID, fmt.Sprintf("✅ Заказ «%s» выполнен. Итоговая сумма: %.2f. Подтвердите оплату или она пройдёт автоматически.", job.Title, finalPrice))
	log.Printf("Заказ #%d выполнен, итоговая цена %.2f.", jobID, finalPrice)
	return completed, nil
}

// Cancel отменяет заказ из статуса posted или confirmed. Если по заказу
// существует эскроу-холд, сначала выполняется возврат; при сбое возврата
// отмена прерывается и статус заказа не меняется.
func (s *Service) Cancel(ctx context.Context, jobID, posterID int64) (models.Job, error) {
	job, err := s.getJob(jobID)
	if err != nil {
		return models.Job{}, err
	}
	if job.PosterID != posterID {
		return models.Job{}, ErrUnauthorized
	}
	if job.Status != constants.STATUS_POSTED && job.Status != constants.STATUS_CONFIRMED {
		return models.Job{}, invalidState("cancel", constants.STATUS_POSTED+"|"+constants.STATUS_CONFIRMED, job.Status)
	}

	if job.PaymentIntentID.Valid && s.gateway != nil {
		amount := job.Price
		if job.FinalPrice.Valid {
			amount = job.FinalPrice.Float64
		}
		refundID, errRef := s.gateway.Refund(ctx, job.PaymentIntentID.String, amount, payments.IdempotencyKey("refund", jobID, amount))
		if errRef != nil {
			log.Printf("Cancel: возврат по заказу %d не выполнен, отмена прервана: %v", jobID, errRef)
			return models.Job{}, fmt.Errorf("%w: %v", ErrRefundFailed, errRef)
		}
		if _, errTx := s.ledger.AddTransaction(models.PaymentTransaction{
			JobID:           jobID,
			UserID:          sql.NullInt64{Int64: job.PosterID, Valid: true},
			Type:            constants.TX_TYPE_REFUND,
			Amount:          amount,
			Status:          constants.TX_STATUS_SUCCEEDED,
			ReferenceNumber: refundID,
		}); errTx != nil {
			log.Printf("Cancel: не удалось записать возврат в леджер по заказу %d: %v", jobID, errTx)
		}
	}

	cancelled, err := s.jobs.CancelJob(jobID, []string{constants.STATUS_POSTED, constants.STATUS_CONFIRMED})
	if err != nil {
		if errors.Is(err, db.ErrNoTransition) {
			return models.Job{}, ErrConflict
		}
		log.Printf("Cancel: ошибка отмены заказа %d: %v", jobID, err)
		return models.Job{}, err
	}

	if job.AssignedHelperID.Valid {
		s.notifyUser(job.AssignedHelperID.Int64, fmt.Sprintf("❌ Заказ «%s» отменён постером.", job.Title))
	}
	log.Printf("Заказ #%d отменён постером %d.", jobID, posterID)
	return cancelled, nil
}

// GetJob возвращает заказ по id.
func (s *Service) GetJob(jobID int64) (models.Job, error) {
	return s.getJob(jobID)
}

// GetTimeline возвращает таймлайн заказа.
func (s *Service) GetTimeline(jobID int64) (models.JobTimeline, error) {
	tl, err := s.jobs.GetTimeline(jobID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return tl, ErrJobNotFound
		}
		return tl, err
	}
	return tl, nil
}
