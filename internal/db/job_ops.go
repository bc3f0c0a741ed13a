package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"metalhead/internal/constants"
	"metalhead/internal/models"
)

// ErrNotFound возвращается, когда запрошенная сущность отсутствует в БД.
var ErrNotFound = errors.New("запись не найдена")

// ErrNoTransition возвращается, когда условный UPDATE не затронул ни одной
// строки: ожидаемый статус уже изменён конкурентным действием.
var ErrNoTransition = errors.New("переход не выполнен: статус заказа уже изменён")

const jobColumns = `
        j.id, j.poster_id, j.assigned_helper_id, j.accepted_counter_offer_id,
        j.title, j.description, j.price, j.final_price, j.payment_type, j.hourly_rate,
        j.start_time, j.end_time, j.actual_start_time, j.actual_end_time, j.actual_hours,
        j.extra_time_requested, j.extra_time_approved, j.total_approved_hours,
        j.payment_intent_id, j.status, j.active, j.created_at, j.updated_at`

func scanJob(row interface{ Scan(...interface{}) error }) (models.Job, error) {
	var j models.Job
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.PosterID, &j.AssignedHelperID, &j.AcceptedCounterOfferID,
		&j.Title, &j.Description, &j.Price, &j.FinalPrice, &j.PaymentType, &j.HourlyRate,
		&j.StartTime, &j.EndTime, &j.ActualStartTime, &j.ActualEndTime, &j.ActualHours,
		&j.ExtraTimeRequested, &j.ExtraTimeApproved, &j.TotalApprovedHours,
		&j.PaymentIntentID, &j.Status, &j.Active, &createdAt, &updatedAt,
	)
	if err != nil {
		return j, err
	}
	if createdAt.Valid {
		j.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		j.UpdatedAt = updatedAt.Time
	}
	return j, nil
}

// CreateJob создает заказ и его таймлайн (с отметкой posted_at) в одной транзакции.
func CreateJob(job models.Job) (models.Job, error) {
	if job.PosterID == 0 {
		return job, errors.New("PosterID (идентификатор постера) не установлен для заказа")
	}
	if job.PaymentType != constants.PAYMENT_TYPE_FIXED && job.PaymentType != constants.PAYMENT_TYPE_HOURLY {
		return job, fmt.Errorf("некорректный тип оплаты: '%s'", job.PaymentType)
	}

	tx, err := DB.Begin()
	if err != nil {
		log.Printf("CreateJob: ошибка начала транзакции: %v", err)
		return job, err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO jobs (
            poster_id, title, description, price, payment_type, hourly_rate,
            start_time, end_time, status, active, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	err = tx.QueryRow(query,
		job.PosterID, job.Title, job.Description, job.Price, job.PaymentType, job.HourlyRate,
		job.StartTime, job.EndTime, constants.STATUS_POSTED,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		log.Printf("CreateJob: ошибка выполнения INSERT для заказа (постер %d): %v", job.PosterID, err)
		return job, err
	}
	job.Status = constants.STATUS_POSTED
	job.Active = true

	_, err = tx.Exec(`INSERT INTO job_timelines (job_id, posted_at) VALUES ($1, NOW())`, job.ID)
	if err != nil {
		log.Printf("CreateJob: ошибка создания таймлайна для заказа #%d: %v", job.ID, err)
		return job, err
	}

	if err = tx.Commit(); err != nil {
		log.Printf("CreateJob: ошибка фиксации транзакции: %v", err)
		return job, err
	}

	log.Printf("Заказ #%d успешно создан постером ID %d.", job.ID, job.PosterID)
	return job, nil
}

// GetJobByID извлекает заказ по его ID.
func GetJobByID(jobID int64) (models.Job, error) {
	job, err := scanJob(DB.QueryRow(`SELECT`+jobColumns+` FROM jobs j WHERE j.id = $1`, jobID))
	if err != nil {
		if err == sql.ErrNoRows {
			return job, ErrNotFound
		}
		log.Printf("GetJobByID: ошибка получения заказа #%d: %v", jobID, err)
		return job, err
	}
	return job, nil
}

// BindHelper привязывает хелпера к заказу: единственная атомарная операция,
// в которой выставляются assigned_helper_id, accepted_counter_offer_id,
// final_price и статус confirmed, удаляются оставшиеся контрофферы и
// ставится отметка confirmed_at. Условие WHERE гарантирует, что из двух
// конкурентных принятий выиграет ровно одно; проигравшее получает
// ErrNoTransition (ноль затронутых строк).
func BindHelper(jobID, helperID, offerID int64, finalPrice float64, paymentType string, hourlyRate float64) (models.Job, error) {
	tx, err := DB.Begin()
	if err != nil {
		log.Printf("BindHelper: ошибка начала транзакции: %v", err)
		return models.Job{}, err
	}
	defer tx.Rollback()

	var offerIDArg sql.NullInt64
	if offerID != 0 {
		offerIDArg = sql.NullInt64{Int64: offerID, Valid: true}
	}

	job, err := scanJob(tx.QueryRow(`
        UPDATE jobs j SET
            assigned_helper_id = $1,
            accepted_counter_offer_id = $2,
            final_price = $3,
            payment_type = $4,
            hourly_rate = $5,
            status = $6,
            updated_at = NOW()
        WHERE j.id = $7 AND j.status = $8 AND j.assigned_helper_id IS NULL
        RETURNING`+jobColumns,
		helperID, offerIDArg, finalPrice, paymentType, hourlyRate,
		constants.STATUS_CONFIRMED, jobID, constants.STATUS_POSTED))
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Job{}, ErrNoTransition
		}
		log.Printf("BindHelper: ошибка привязки хелпера %d к заказу #%d: %v", helperID, jobID, err)
		return models.Job{}, err
	}

	// Принятый оффер и все его соседи удаляются разом: после подтверждения
	// у заказа не может оставаться активных контрофферов.
	_, err = tx.Exec(`DELETE FROM counter_offers WHERE job_id = $1`, jobID)
	if err != nil {
		log.Printf("BindHelper: ошибка удаления контрофферов заказа #%d: %v", jobID, err)
		return models.Job{}, err
	}

	if err = stampTimelineInTx(tx, jobID, constants.TIMELINE_CONFIRMED); err != nil {
		return models.Job{}, err
	}

	if err = tx.Commit(); err != nil {
		log.Printf("BindHelper: ошибка фиксации транзакции: %v", err)
		return models.Job{}, err
	}

	log.Printf("Заказ #%d подтверждён: хелпер %d, итоговая цена %.2f.", jobID, helperID, finalPrice)
	return job, nil
}

// StartJob переводит заказ confirmed -> ongoing и фиксирует фактическое
// время начала работ.
func StartJob(jobID int64, startedAt time.Time) (models.Job, error) {
	tx, err := DB.Begin()
	if err != nil {
		log.Printf("StartJob: ошибка начала транзакции: %v", err)
		return models.Job{}, err
	}
	defer tx.Rollback()

	job, err := scanJob(tx.QueryRow(`
        UPDATE jobs j SET status = $1, actual_start_time = $2, updated_at = NOW()
        WHERE j.id = $3 AND j.status = $4
        RETURNING`+jobColumns,
		constants.STATUS_ONGOING, startedAt, jobID, constants.STATUS_CONFIRMED))
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Job{}, ErrNoTransition
		}
		log.Printf("StartJob: ошибка перевода заказа #%d в работу: %v", jobID, err)
		return models.Job{}, err
	}

	if err = stampTimelineInTx(tx, jobID, constants.TIMELINE_ONGOING); err != nil {
		return models.Job{}, err
	}

	if err = tx.Commit(); err != nil {
		log.Printf("StartJob: ошибка фиксации транзакции: %v", err)
		return models.Job{}, err
	}
	log.Printf("Заказ #%d переведён в работу.", jobID)
	return job, nil
}

// CompleteJob переводит заказ ongoing -> completed, фиксируя фактические
// часы и итоговую цену, рассчитанные движком (никогда не клиентом).
func CompleteJob(jobID int64, endedAt time.Time, actualHours sql.NullFloat64, finalPrice float64) (models.Job, error) {
	tx, err := DB.Begin()
	if err != nil {
		log.Printf("CompleteJob: ошибка начала транзакции: %v", err)
		return models.Job{}, err
	}
	defer tx.Rollback()

	job, err := scanJob(tx.QueryRow(`
        UPDATE jobs j SET status = $1, actual_end_time = $2, actual_hours = $3,
            final_price = $4, updated_at = NOW()
        WHERE j.id = $5 AND j.status = $6
        RETURNING`+jobColumns,
		constants.STATUS_COMPLETED, endedAt, actualHours, finalPrice, jobID, constants.STATUS_ONGOING))
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Job{}, ErrNoTransition
		}
		log.Printf("CompleteJob: ошибка завершения заказа #%d: %v", jobID, err)
		return models.Job{}, err
	}

	if err = stampTimelineInTx(tx, jobID, constants.TIMELINE_COMPLETED); err != nil {
		return models.Job{}, err
	}

	if err = tx.Commit(); err != nil {
		log.Printf("CompleteJob: ошибка фиксации транзакции: %v", err)
		return models.Job{}, err
	}
	log.Printf("Заказ #%d завершён, итоговая цена %.2f.", jobID, finalPrice)
	return job, nil
}

// MarkPaid переводит заказ completed -> paid. Двойная защита от повторной
// выплаты: условие по статусу заказа и по paid_at IS NULL в таймлайне.
// Вызывается только после успешного перевода средств.
func MarkPaid(jobID int64) error {
	tx, err := DB.Begin()
	if err != nil {
		log.Printf("MarkPaid: ошибка начала транзакции: %v", err)
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
        UPDATE job_timelines SET paid_at = NOW()
        WHERE job_id = $1 AND paid_at IS NULL`, jobID)
	if err != nil {
		log.Printf("MarkPaid: ошибка отметки paid_at для заказа #%d: %v", jobID, err)
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrNoTransition
	}

	res, err = tx.Exec(`
        UPDATE jobs SET status = $1, updated_at = NOW()
        WHERE id = $2 AND status = $3`,
		constants.STATUS_PAID, jobID, constants.STATUS_COMPLETED)
	if err != nil {
		log.Printf("MarkPaid: ошибка обновления статуса заказа #%d: %v", jobID, err)
		return err
	}
	rowsAffected, _ = res.RowsAffected()
	if rowsAffected == 0 {
		return ErrNoTransition
	}

	if err = tx.Commit(); err != nil {
		log.Printf("MarkPaid: ошибка фиксации транзакции: %v", err)
		return err
	}
	log.Printf("Заказ #%d помечен как оплаченный.", jobID)
	return nil
}

// CancelJob отменяет заказ, если он находится в одном из допустимых статусов.
func CancelJob(jobID int64, fromStatuses []string) (models.Job, error) {
	job, err := scanJob(DB.QueryRow(`
        UPDATE jobs j SET status = $1, active = FALSE, updated_at = NOW()
        WHERE j.id = $2 AND j.status = ANY($3)
        RETURNING`+jobColumns,
		constants.STATUS_CANCELED, jobID, pq.Array(fromStatuses)))
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Job{}, ErrNoTransition
		}
		log.Printf("CancelJob: ошибка отмены заказа #%d: %v", jobID, err)
		return models.Job{}, err
	}
	log.Printf("Заказ #%d отменён.", jobID)
	return job, nil
}

// SetPaymentIntent сохраняет внешний идентификатор платёжного холда.
func SetPaymentIntent(jobID int64, intentID string) error {
	_, err := DB.Exec(`UPDATE jobs SET payment_intent_id = $1, updated_at = NOW() WHERE id = $2`, intentID, jobID)
	if err != nil {
		log.Printf("SetPaymentIntent: ошибка сохранения payment_intent для заказа #%d: %v", jobID, err)
		return err
	}
	return nil
}

// SetExtraTimeRequest сохраняет (или очищает, при невалидном аргументе)
// запрос постера на дополнительные часы.
func SetExtraTimeRequest(jobID int64, hours sql.NullFloat64) error {
	_, err := DB.Exec(`UPDATE jobs SET extra_time_requested = $1, updated_at = NOW() WHERE id = $2`, hours, jobID)
	if err != nil {
		log.Printf("SetExtraTimeRequest: ошибка сохранения запроса доп. времени для заказа #%d: %v", jobID, err)
		return err
	}
	return nil
}

// ApplyExtraTime выставляет флаг одобрения и накопленные одобренные часы.
// Используется и для отката одобрения при сбое платежа.
func ApplyExtraTime(jobID int64, approved bool, totalApprovedHours float64) error {
	_, err := DB.Exec(`
        UPDATE jobs SET extra_time_approved = $1, total_approved_hours = $2,
            extra_time_requested = NULL, updated_at = NOW()
        WHERE id = $3`, approved, totalApprovedHours, jobID)
	if err != nil {
		log.Printf("ApplyExtraTime: ошибка обновления доп. времени для заказа #%d: %v", jobID, err)
		return err
	}
	return nil
}

// ListUnpaidCompletedBefore извлекает выполненные, но не оплаченные заказы,
// завершённые раньше отсечки. Выборка для прохода авторасчёта.
func ListUnpaidCompletedBefore(cutoff time.Time) ([]models.Job, error) {
	rows, err := DB.Query(`
        SELECT`+jobColumns+`
        FROM jobs j
        JOIN job_timelines t ON t.job_id = j.id
        WHERE j.status = $1 AND t.completed_at < $2 AND t.paid_at IS NULL
        ORDER BY t.completed_at ASC`,
		constants.STATUS_COMPLETED, cutoff)
	if err != nil {
		log.Printf("ListUnpaidCompletedBefore: ошибка выборки заказов для авторасчёта: %v", err)
		return nil, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		j, errScan := scanJob(rows)
		if errScan != nil {
			log.Printf("ListUnpaidCompletedBefore: ошибка сканирования заказа: %v", errScan)
			continue
		}
		jobs = append(jobs, j)
	}
	if err = rows.Err(); err != nil {
		log.Printf("ListUnpaidCompletedBefore: ошибка после итерации по строкам: %v", err)
		return nil, err
	}
	return jobs, nil
}

// GetJobsByPosterIDAndStatus извлекает заказы постера постранично.
func GetJobsByPosterIDAndStatus(posterID int64, status string, page int) ([]models.Job, error) {
	offset := page * constants.JobsPerPage
	queryParams := []interface{}{posterID}
	queryBase := `SELECT` + jobColumns + ` FROM jobs j WHERE j.poster_id = $1 AND j.active = TRUE`
	if status != "" {
		queryBase += " AND j.status = $2"
		queryParams = append(queryParams, status)
	}
	queryBase += fmt.Sprintf(" ORDER BY j.created_at DESC LIMIT %d OFFSET $%d", constants.JobsPerPage, len(queryParams)+1)
	queryParams = append(queryParams, offset)

	rows, err := DB.Query(queryBase, queryParams...)
	if err != nil {
		log.Printf("GetJobsByPosterIDAndStatus: ошибка запроса заказов постера %d, статус '%s': %v", posterID, status, err)
		return nil, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		j, errScan := scanJob(rows)
		if errScan != nil {
			log.Printf("GetJobsByPosterIDAndStatus: ошибка сканирования заказа постера %d: %v", posterID, errScan)
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// GetPaidJobsForExcel выдаёт строки по оплаченным заказам для Excel-отчета.
func GetPaidJobsForExcel(startDate, endDate time.Time) (*sql.Rows, error) {
	query := `
        SELECT j.id, u.first_name, u.last_name, h.first_name, h.last_name,
               j.payment_type, j.final_price, t.completed_at, t.paid_at
        FROM jobs j
        JOIN users u ON j.poster_id = u.id
        LEFT JOIN users h ON j.assigned_helper_id = h.id
        JOIN job_timelines t ON t.job_id = j.id
        WHERE j.status = $1 AND t.paid_at BETWEEN $2 AND $3
        ORDER BY t.paid_at DESC`
	rows, err := DB.Query(query, constants.STATUS_PAID, startDate, endDate)
	if err != nil {
		log.Printf("GetPaidJobsForExcel: ошибка получения данных для Excel: %v", err)
		return nil, err
	}
	return rows, nil
}
