package db

import (
	"database/sql"
	"fmt"
	"log"

	"metalhead/internal/models"
	"metalhead/internal/utils"
)

// GetUserByID извлекает пользователя по ID. Payout destination остаётся
// зашифрованным; для выплат используйте GetPayoutDestinationByUserID.
func GetUserByID(userID int64) (models.User, error) {
	var u models.User
	var createdAt, updatedAt sql.NullTime
	err := DB.QueryRow(`
        SELECT id, chat_id, role, first_name, last_name, phone, is_blocked, block_reason, created_at, updated_at
        FROM users WHERE id = $1`, userID).Scan(
		&u.ID, &u.ChatID, &u.Role, &u.FirstName, &u.LastName, &u.Phone, &u.IsBlocked, &u.BlockReason, &createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return u, ErrNotFound
		}
		log.Printf("GetUserByID: ошибка получения пользователя %d: %v", userID, err)
		return u, err
	}
	if createdAt.Valid {
		u.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		u.UpdatedAt = updatedAt.Time
	}
	return u, nil
}

// GetUserByChatID извлекает пользователя по chat_id Telegram.
func GetUserByChatID(chatID int64) (models.User, error) {
	var u models.User
	var createdAt, updatedAt sql.NullTime
	err := DB.QueryRow(`
        SELECT id, chat_id, role, first_name, last_name, phone, is_blocked, block_reason, created_at, updated_at
        FROM users WHERE chat_id = $1`, chatID).Scan(
		&u.ID, &u.ChatID, &u.Role, &u.FirstName, &u.LastName, &u.Phone, &u.IsBlocked, &u.BlockReason, &createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return u, ErrNotFound
		}
		log.Printf("GetUserByChatID: ошибка получения пользователя с chat_id %d: %v", chatID, err)
		return u, err
	}
	if createdAt.Valid {
		u.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		u.UpdatedAt = updatedAt.Time
	}
	return u, nil
}

// GetPayoutDestinationByUserID извлекает и расшифровывает payout
// destination хелпера. Возвращает пустую строку, если реквизиты
// не настроены.
func GetPayoutDestinationByUserID(userID int64) (string, error) {
	var encrypted sql.NullString
	err := DB.QueryRow(`SELECT payout_destination FROM users WHERE id = $1`, userID).Scan(&encrypted)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("пользователь с ID %d не найден", userID)
		}
		log.Printf("GetPayoutDestinationByUserID: ошибка получения реквизитов для userID %d: %v", userID, err)
		return "", err
	}

	if !encrypted.Valid || encrypted.String == "" {
		return "", nil
	}

	destination, errDecrypt := utils.DecryptPayoutDestination(encrypted.String)
	if errDecrypt != nil {
		log.Printf("GetPayoutDestinationByUserID: ошибка дешифрования реквизитов для userID %d: %v", userID, errDecrypt)
		return "", fmt.Errorf("ошибка дешифрования платёжных реквизитов")
	}
	return destination, nil
}

// SetPayoutDestination шифрует и сохраняет payout destination пользователя.
func SetPayoutDestination(userID int64, destination string) error {
	encrypted, err := utils.EncryptPayoutDestination(destination)
	if err != nil {
		log.Printf("SetPayoutDestination: ошибка шифрования реквизитов для userID %d: %v", userID, err)
		return err
	}
	_, err = DB.Exec(`UPDATE users SET payout_destination = $1, updated_at = NOW() WHERE id = $2`, encrypted, userID)
	if err != nil {
		log.Printf("SetPayoutDestination: ошибка сохранения реквизитов для userID %d: %v", userID, err)
		return err
	}
	log.Printf("Платёжные реквизиты пользователя %d обновлены.", userID)
	return nil
}

// CreateUser создает пользователя (используется при первом обращении из Telegram).
func CreateUser(u models.User) (int64, error) {
	var id int64
	err := DB.QueryRow(`
        INSERT INTO users (chat_id, role, first_name, last_name, phone, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        RETURNING id`,
		u.ChatID, u.Role, u.FirstName, u.LastName, u.Phone,
	).Scan(&id)
	if err != nil {
		log.Printf("CreateUser: ошибка создания пользователя chat_id %d: %v", u.ChatID, err)
		return 0, err
	}
	log.Printf("Пользователь #%d (chat_id %d) создан.", id, u.ChatID)
	return id, nil
}
