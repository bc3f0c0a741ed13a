package db

import (
	"database/sql"
	"log"
	"time"

	"metalhead/internal/models"
)

// addTransactionWithinTx добавляет запись леджера в рамках существующей транзакции.
// addTransactionWithinTx adds a ledger record within an existing transaction.
func addTransactionWithinTx(tx *sql.Tx, pt models.PaymentTransaction) (int64, error) {
	var id int64
	err := tx.QueryRow(`
        INSERT INTO payment_transactions (job_id, user_id, type, amount, status, reference_number, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        RETURNING id`,
		pt.JobID, pt.UserID, pt.Type, pt.Amount, pt.Status, pt.ReferenceNumber,
	).Scan(&id)
	if err != nil {
		log.Printf("addTransactionWithinTx: ошибка добавления записи '%s' по заказу #%d: %v", pt.Type, pt.JobID, err)
		return 0, err
	}
	log.Printf("addTransactionWithinTx: запись леджера #%d ('%s', %.2f) по заказу #%d добавлена.", id, pt.Type, pt.Amount, pt.JobID)
	return id, nil
}

// AddTransaction добавляет новую запись в леджер платёжных транзакций.
// Леджер append-only: записи никогда не изменяются после создания.
func AddTransaction(pt models.PaymentTransaction) (int64, error) {
	tx, err := DB.Begin()
	if err != nil {
		log.Printf("AddTransaction: ошибка начала транзакции: %v", err)
		return 0, err
	}
	defer tx.Rollback()

	id, err := addTransactionWithinTx(tx, pt)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		log.Printf("AddTransaction: ошибка коммита транзакции: %v", err)
		return 0, err
	}
	return id, nil
}

// GetTransactionsByJobID извлекает записи леджера по заказу.
func GetTransactionsByJobID(jobID int64) ([]models.PaymentTransaction, error) {
	rows, err := DB.Query(`
        SELECT id, job_id, user_id, type, amount, status, reference_number, created_at
        FROM payment_transactions
        WHERE job_id = $1
        ORDER BY created_at ASC`, jobID)
	if err != nil {
		log.Printf("GetTransactionsByJobID: ошибка получения записей по заказу #%d: %v", jobID, err)
		return nil, err
	}
	defer rows.Close()

	var txs []models.PaymentTransaction
	for rows.Next() {
		var pt models.PaymentTransaction
		errScan := rows.Scan(&pt.ID, &pt.JobID, &pt.UserID, &pt.Type, &pt.Amount, &pt.Status, &pt.ReferenceNumber, &pt.CreatedAt)
		if errScan != nil {
			log.Printf("GetTransactionsByJobID: ошибка сканирования записи по заказу #%d: %v", jobID, errScan)
			continue
		}
		txs = append(txs, pt)
	}
	return txs, rows.Err()
}

// GetLedgerForExcel выдаёт строки леджера за период для Excel-отчета.
func GetLedgerForExcel(startDate, endDate time.Time) (*sql.Rows, error) {
	query := `
        SELECT pt.id, pt.job_id, pt.type, pt.amount, pt.status, pt.reference_number,
               COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), pt.created_at
        FROM payment_transactions pt
        LEFT JOIN users u ON pt.user_id = u.id
        WHERE pt.created_at BETWEEN $1 AND $2
        ORDER BY pt.created_at DESC`
	rows, err := DB.Query(query, startDate, endDate)
	if err != nil {
		log.Printf("GetLedgerForExcel: ошибка получения данных для Excel: %v", err)
		return nil, err
	}
	return rows, nil
}
