package db

import (
	"database/sql"
	"log"

	"metalhead/internal/constants"
	"metalhead/internal/models"
)

// CreateCounterOffer создает контроффер и при первом оффере по заказу
// ставит отметку counter_offer_at в таймлайне - в одной транзакции.
func CreateCounterOffer(offer models.CounterOffer) (models.CounterOffer, error) {
	tx, err := DB.Begin()
	if err != nil {
		log.Printf("CreateCounterOffer: ошибка начала транзакции: %v", err)
		return offer, err
	}
	defer tx.Rollback()

	err = tx.QueryRow(`
        INSERT INTO counter_offers (job_id, helper_id, amount, payment_type, note, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        RETURNING id, created_at`,
		offer.JobID, offer.HelperID, offer.Amount, offer.PaymentType, offer.Note,
	).Scan(&offer.ID, &offer.CreatedAt)
	if err != nil {
		log.Printf("CreateCounterOffer: ошибка добавления контроффера хелпера %d к заказу #%d: %v", offer.HelperID, offer.JobID, err)
		return offer, err
	}

	if err = stampTimelineInTx(tx, offer.JobID, constants.TIMELINE_COUNTER_OFFER); err != nil {
		return offer, err
	}

	if err = tx.Commit(); err != nil {
		log.Printf("CreateCounterOffer: ошибка фиксации транзакции: %v", err)
		return offer, err
	}
	log.Printf("Контроффер #%d (%.2f, %s) к заказу #%d создан хелпером %d.",
		offer.ID, offer.Amount, offer.PaymentType, offer.JobID, offer.HelperID)
	return offer, nil
}

// GetCounterOfferByID извлекает контроффер по ID.
func GetCounterOfferByID(offerID int64) (models.CounterOffer, error) {
	var o models.CounterOffer
	err := DB.QueryRow(`
        SELECT id, job_id, helper_id, amount, payment_type, note, created_at
        FROM counter_offers WHERE id = $1`, offerID).Scan(
		&o.ID, &o.JobID, &o.HelperID, &o.Amount, &o.PaymentType, &o.Note, &o.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return o, ErrNotFound
		}
		log.Printf("GetCounterOfferByID: ошибка получения контроффера #%d: %v", offerID, err)
		return o, err
	}
	return o, nil
}

// GetCounterOffersByJobID извлекает все активные контрофферы заказа.
func GetCounterOffersByJobID(jobID int64) ([]models.CounterOffer, error) {
	rows, err := DB.Query(`
        SELECT id, job_id, helper_id, amount, payment_type, note, created_at
        FROM counter_offers WHERE job_id = $1
        ORDER BY created_at ASC`, jobID)
	if err != nil {
		log.Printf("GetCounterOffersByJobID: ошибка получения контрофферов заказа #%d: %v", jobID, err)
		return nil, err
	}
	defer rows.Close()

	var offers []models.CounterOffer
	for rows.Next() {
		var o models.CounterOffer
		if errScan := rows.Scan(&o.ID, &o.JobID, &o.HelperID, &o.Amount, &o.PaymentType, &o.Note, &o.CreatedAt); errScan != nil {
			log.Printf("GetCounterOffersByJobID: ошибка сканирования контроффера заказа #%d: %v", jobID, errScan)
			continue
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// DeleteCounterOffer удаляет контроффер (отклонение постером).
func DeleteCounterOffer(offerID int64) error {
	res, err := DB.Exec(`DELETE FROM counter_offers WHERE id = $1`, offerID)
	if err != nil {
		log.Printf("DeleteCounterOffer: ошибка удаления контроффера #%d: %v", offerID, err)
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	log.Printf("Контроффер #%d удалён.", offerID)
	return nil
}

// HasActiveCounterOffers сообщает, есть ли у заказа непринятые контрофферы.
// "counter_offer" не хранится как эксклюзивный статус заказа - это
// производное представление поверх наличия строк в counter_offers.
func HasActiveCounterOffers(jobID int64) (bool, error) {
	var count int
	err := DB.QueryRow(`SELECT COUNT(*) FROM counter_offers WHERE job_id = $1`, jobID).Scan(&count)
	if err != nil {
		log.Printf("HasActiveCounterOffers: ошибка проверки контрофферов заказа #%d: %v", jobID, err)
		return false, err
	}
	return count > 0, nil
}
