// internal/utils/job_links.go
package utils

import (
	"fmt"
	"log"

	"github.com/skip2/go-qrcode"
)

// GenerateJobLink строит deep link на карточку заказа в веб-приложении
// бота. botUsername передаётся из конфигурации.
func GenerateJobLink(botUsername string, jobID int64) (string, error) {
	if botUsername == "" {
		log.Println("GenerateJobLink: botUsername не предоставлен.")
		return "", fmt.Errorf("имя пользователя бота не настроено")
	}
	if jobID == 0 {
		log.Printf("GenerateJobLink: невалидный jobID: %d", jobID)
		return "", fmt.Errorf("невалидный ID заказа для ссылки")
	}
	return fmt.Sprintf("https://t.me/%s?startapp=job_%d", botUsername, jobID), nil
}

// GenerateJobQRCode кодирует ссылку на заказ в QR-код (PNG).
func GenerateJobQRCode(botUsername string, jobID int64) ([]byte, error) {
	link, err := GenerateJobLink(botUsername, jobID)
	if err != nil {
		log.Printf("GenerateJobQRCode: ошибка генерации ссылки на заказ %d: %v", jobID, err)
		return nil, err
	}

	// qrcode.Medium - уровень коррекции ошибок, 256 - размер QR-кода в пикселях.
	qrBytes, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		log.Printf("GenerateJobQRCode: ошибка кодирования QR-кода для ссылки '%s': %v", link, err)
		return nil, err
	}
	return qrBytes, nil
}
