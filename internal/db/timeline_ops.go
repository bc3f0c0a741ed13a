package db

import (
	"database/sql"
	"fmt"
	"log"

	"metalhead/internal/constants"
	"metalhead/internal/models"
)

// Белый список полей таймлайна: штамповать можно только известные этапы.
var allowedTimelineFields = map[string]bool{
	constants.TIMELINE_POSTED:        true,
	constants.TIMELINE_COUNTER_OFFER: true,
	constants.TIMELINE_CONFIRMED:     true,
	constants.TIMELINE_ONGOING:       true,
	constants.TIMELINE_COMPLETED:     true,
	constants.TIMELINE_PAID:          true,
}

// stampTimelineInTx ставит отметку этапа в таймлайне заказа в рамках
// транзакции. Условие IS NULL делает штамп идемпотентным: поле
// выставляется не более одного раза, повторная попытка - no-op.
func stampTimelineInTx(tx *sql.Tx, jobID int64, field string) error {
	if !allowedTimelineFields[field] {
		return fmt.Errorf("штамп поля '%s' не разрешён в таймлайне", field)
	}
	query := fmt.Sprintf(`UPDATE job_timelines SET %s = NOW() WHERE job_id = $1 AND %s IS NULL`, field, field)
	_, err := tx.Exec(query, jobID)
	if err != nil {
		log.Printf("stampTimelineInTx: ошибка отметки '%s' для заказа #%d: %v", field, jobID, err)
		return err
	}
	return nil
}

// StampTimeline ставит отметку этапа вне транзакции.
func StampTimeline(jobID int64, field string) error {
	if !allowedTimelineFields[field] {
		return fmt.Errorf("штамп поля '%s' не разрешён в таймлайне", field)
	}
	query := fmt.Sprintf(`UPDATE job_timelines SET %s = NOW() WHERE job_id = $1 AND %s IS NULL`, field, field)
	_, err := DB.Exec(query, jobID)
	if err != nil {
		log.Printf("StampTimeline: ошибка отметки '%s' для заказа #%d: %v", field, jobID, err)
		return err
	}
	return nil
}

// GetTimeline извлекает таймлайн заказа.
func GetTimeline(jobID int64) (models.JobTimeline, error) {
	var t models.JobTimeline
	err := DB.QueryRow(`
        SELECT job_id, posted_at, counter_offer_at, confirmed_at, ongoing_at, completed_at, paid_at
        FROM job_timelines WHERE job_id = $1`, jobID).Scan(
		&t.JobID, &t.PostedAt, &t.CounterOfferAt, &t.ConfirmedAt, &t.OngoingAt, &t.CompletedAt, &t.PaidAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return t, ErrNotFound
		}
		log.Printf("GetTimeline: ошибка получения таймлайна заказа #%d: %v", jobID, err)
		return t, err
	}
	return t, nil
}
