package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// API-адрес Stripe
const stripeAPIEndpoint = "https://api.stripe.com/v1"

// StripeClient - клиент Stripe прямыми HTTP-запросами (form-encoded).
type StripeClient struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

// NewStripeClient создает клиент Stripe с фиксированным таймаутом.
func NewStripeClient(secretKey string) *StripeClient {
	return &StripeClient{
		secretKey: secretKey,
		baseURL:   stripeAPIEndpoint,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// NewStripeClientWithBaseURL - для тестов против локальной заглушки API.
func NewStripeClientWithBaseURL(secretKey, baseURL string) *StripeClient {
	c := NewStripeClient(secretKey)
	c.baseURL = baseURL
	return c
}

// stripeObject - общий вид ответа Stripe API.
type stripeObject struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
	NextAction   *struct {
		RedirectToURL struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// doForm выполняет form-encoded POST-запрос к Stripe API с ключом
// идемпотентности и разбирает ответ.
func (c *StripeClient) doForm(ctx context.Context, op, path string, form url.Values, idemKey string) (stripeObject, error) {
	var obj stripeObject

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		log.Printf("StripeClient.%s: ошибка создания HTTP-запроса: %v", op, err)
		return obj, &GatewayError{Op: op, Retryable: false, Err: fmt.Errorf("ошибка создания HTTP-запроса: %w", err)}
	}

	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", idemKey)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("StripeClient.%s: ошибка выполнения HTTP-запроса: %v", op, err)
		// Таймаут или сетевой сбой: операция могла примениться, повтор
		// безопасен благодаря ключу идемпотентности.
		return obj, &GatewayError{Op: op, Retryable: true, Err: fmt.Errorf("ошибка выполнения запроса к API Stripe: %w", err)}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("StripeClient.%s: ошибка чтения ответа от API Stripe: %v", op, err)
		return obj, &GatewayError{Op: op, Retryable: true, Err: fmt.Errorf("ошибка чтения ответа API: %w", err)}
	}

	if err := json.Unmarshal(responseBody, &obj); err != nil {
		log.Printf("StripeClient.%s: ошибка демаршалинга ответа от API Stripe: %v", op, err)
		return obj, &GatewayError{Op: op, Retryable: false, Err: fmt.Errorf("ошибка обработки ответа API: %w", err)}
	}

	if resp.StatusCode >= 500 {
		log.Printf("StripeClient.%s: API Stripe вернул ошибку: статус %d, тело: %s", op, resp.StatusCode, string(responseBody))
		return obj, &GatewayError{Op: op, Retryable: true, Err: fmt.Errorf("ошибка API Stripe, статус: %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		msg := "неизвестная ошибка"
		if obj.Error != nil {
			msg = obj.Error.Message
		}
		log.Printf("StripeClient.%s: API Stripe отклонил запрос: статус %d, %s", op, resp.StatusCode, msg)
		return obj, &GatewayError{Op: op, Retryable: false, Err: fmt.Errorf("отказ API Stripe (статус %d): %s", resp.StatusCode, msg)}
	}

	return obj, nil
}

// AuthorizeCharge создает платёж с ручным захватом (escrow-холд).
func (c *StripeClient) AuthorizeCharge(ctx context.Context, payerID string, amount float64, idemKey string) (string, string, error) {
	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", toCents(amount)))
	form.Set("currency", "usd")
	form.Set("customer", payerID)
	form.Set("capture_method", "manual")
	form.Set("confirm", "true")

	obj, err := c.doForm(ctx, "AuthorizeCharge", "/payment_intents", form, idemKey)
	if err != nil {
		return "", "", err
	}

	confirmationURL := ""
	if obj.NextAction != nil {
		confirmationURL = obj.NextAction.RedirectToURL.URL
	}
	log.Printf("Успешно создан холд Stripe ID: %s, статус: %s", obj.ID, obj.Status)
	return obj.ID, confirmationURL, nil
}

// CaptureHold захватывает авторизованный холд.
func (c *StripeClient) CaptureHold(ctx context.Context, holdID string, idemKey string) (string, error) {
	obj, err := c.doForm(ctx, "CaptureHold", "/payment_intents/"+holdID+"/capture", url.Values{}, idemKey)
	if err != nil {
		return "", err
	}
	log.Printf("Холд Stripe %s захвачен, статус: %s", holdID, obj.Status)
	return obj.ID, nil
}

// Transfer переводит сумму на подключённый аккаунт получателя.
func (c *StripeClient) Transfer(ctx context.Context, destination string, amount float64, idemKey string) (string, error) {
	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", toCents(amount)))
	form.Set("currency", "usd")
	form.Set("destination", destination)

	obj, err := c.doForm(ctx, "Transfer", "/transfers", form, idemKey)
	if err != nil {
		return "", err
	}
	log.Printf("Перевод Stripe %s на %s выполнен (%.2f).", obj.ID, destination, amount)
	return obj.ID, nil
}

// Refund возвращает сумму по платежу.
func (c *StripeClient) Refund(ctx context.Context, holdID string, amount float64, idemKey string) (string, error) {
	form := url.Values{}
	form.Set("payment_intent", holdID)
	form.Set("amount", fmt.Sprintf("%d", toCents(amount)))

	obj, err := c.doForm(ctx, "Refund", "/refunds", form, idemKey)
	if err != nil {
		return "", err
	}
	log.Printf("Возврат Stripe %s по холду %s выполнен (%.2f).", obj.ID, holdID, amount)
	return obj.ID, nil
}

func toCents(amount float64) int64 {
	return int64(amount*100 + 0.5)
}
