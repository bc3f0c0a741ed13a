// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"metalhead/internal/config"
	"metalhead/internal/constants"
	"metalhead/internal/db"
	"metalhead/internal/jobs"
	"metalhead/internal/models"
	"metalhead/internal/payments"
	"metalhead/internal/reports"
	"metalhead/internal/utils"
)

// Handlers - HTTP-обработчики поверх движка жизненного цикла.
type Handlers struct {
	Svc *jobs.Service
	Cfg *config.Config
}

type jsonResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// --- Вспомогательные функции для JSON-ответов ---

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(jsonResponse{Status: "error", Message: message})
}

func writeJSONSuccess(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonResponse{Status: "success", Message: message, Data: data})
}

// writeEngineError транслирует ошибку движка в HTTP-код.
func writeEngineError(w http.ResponseWriter, err error) {
	var gwErr *payments.GatewayError
	switch {
	case errors.Is(err, jobs.ErrJobNotFound), errors.Is(err, jobs.ErrOfferNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, jobs.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, jobs.ErrConflict):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrInvalidState):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, jobs.ErrRefundFailed):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrPreconditionFailed):
		writeJSONError(w, http.StatusPreconditionFailed, err.Error())
	case errors.As(err, &gwErr):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("writeEngineError: внутренняя ошибка: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
	}
}

func currentUser(r *http.Request) (models.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(models.User)
	return user, ok
}

func jobIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// --- Представления сущностей в JSON ---

type jobView struct {
	ID                     int64      `json:"id"`
	PosterID               int64      `json:"poster_id"`
	AssignedHelperID       *int64     `json:"assigned_helper_id,omitempty"`
	AcceptedCounterOfferID *int64     `json:"accepted_counter_offer_id,omitempty"`
	Title                  string     `json:"title"`
	Description            string     `json:"description,omitempty"`
	Price                  float64    `json:"price"`
	FinalPrice             *float64   `json:"final_price,omitempty"`
	PaymentType            string     `json:"payment_type"`
	HourlyRate             float64    `json:"hourly_rate,omitempty"`
	ActualHours            *float64   `json:"actual_hours,omitempty"`
	ExtraTimeRequested     *float64   `json:"extra_time_requested,omitempty"`
	ExtraTimeApproved      bool       `json:"extra_time_approved"`
	TotalApprovedHours     float64    `json:"total_approved_hours"`
	Status                 string     `json:"status"`
	StatusDisplay          string     `json:"status_display"`
	HasActiveOffers        bool       `json:"has_active_offers"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func toJobView(job models.Job, hasOffers bool) jobView {
	v := jobView{
		ID:                 job.ID,
		PosterID:           job.PosterID,
		Title:              job.Title,
		Description:        job.Description,
		Price:              job.Price,
		PaymentType:        job.PaymentType,
		HourlyRate:         job.HourlyRate,
		ExtraTimeApproved:  job.ExtraTimeApproved,
		TotalApprovedHours: job.TotalApprovedHours,
		Status:             job.Status,
		StatusDisplay:      constants.StatusDisplayMap[job.Status],
		HasActiveOffers:    hasOffers,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
	}
	if job.AssignedHelperID.Valid {
		v.AssignedHelperID = &job.AssignedHelperID.Int64
	}
	if job.AcceptedCounterOfferID.Valid {
		v.AcceptedCounterOfferID = &job.AcceptedCounterOfferID.Int64
	}
	if job.FinalPrice.Valid {
		v.FinalPrice = &job.FinalPrice.Float64
	}
	if job.ActualHours.Valid {
		v.ActualHours = &job.ActualHours.Float64
	}
	if job.ExtraTimeRequested.Valid {
		v.ExtraTimeRequested = &job.ExtraTimeRequested.Float64
	}
	return v
}

type offerView struct {
	ID          int64     `json:"id"`
	JobID       int64     `json:"job_id"`
	HelperID    int64     `json:"helper_id"`
	Amount      float64   `json:"amount"`
	PaymentType string    `json:"payment_type"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toOfferView(o models.CounterOffer) offerView {
	return offerView{
		ID:          o.ID,
		JobID:       o.JobID,
		HelperID:    o.HelperID,
		Amount:      o.Amount,
		PaymentType: o.PaymentType,
		Note:        o.Note,
		CreatedAt:   o.CreatedAt,
	}
}

// --- Заказы ---

// CreateJob обрабатывает публикацию нового заказа.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}

	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		PaymentType string  `json:"payment_type"`
		HourlyRate  float64 `json:"hourly_rate"`
		StartTime   string  `json:"start_time"`
		EndTime     string  `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	startTime, _ := time.Parse(time.RFC3339, req.StartTime)
	endTime, _ := time.Parse(time.RFC3339, req.EndTime)

	job, err := h.Svc.CreateJob(user.ID, req.Title, req.Description, req.Price, req.PaymentType, req.HourlyRate, startTime, endTime)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONSuccess(w, "Заказ опубликован", toJobView(job, false))
}

// GetJob возвращает заказ с производным признаком активных предложений.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}

	job, err := h.Svc.GetJob(jobID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	hasOffers, _ := h.Svc.HasActiveOffers(jobID)
	writeJSONSuccess(w, "", toJobView(job, hasOffers))
}

// GetUserJobs возвращает заказы текущего пользователя постранично.
func (h *Handlers) GetUserJobs(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}
	status := r.URL.Query().Get("status")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	list, err := db.GetJobsByPosterIDAndStatus(user.ID, status, page)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "ошибка получения заказов")
		return
	}

	views := make([]jobView, 0, len(list))
	for _, j := range list {
		views = append(views, toJobView(j, false))
	}
	writeJSONSuccess(w, "", views)
}

// --- Встречные предложения ---

// ProposeOffer создает встречное предложение по заказу.
func (h *Handlers) ProposeOffer(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}

	var req struct {
		Amount      float64 `json:"amount"`
		PaymentType string  `json:"payment_type"`
		Note        string  `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	offer, err := h.Svc.Propose(jobID, user.ID, req.Amount, req.PaymentType, req.Note)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONSuccess(w, "Предложение отправлено", toOfferView(offer))
}

// ListOffers возвращает активные предложения по заказу.
func (h *Handlers) ListOffers(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}
	offers, err := h.Svc.ListOffers(jobID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	views := make([]offerView, 0, len(offers))
	for _, o := range offers {
		views = append(views, toOfferView(o))
	}
	writeJSONSuccess(w, "", views)
}

// AcceptOffer принимает встречное предложение и подтверждает заказ.
func (h *Handlers) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}
	offerID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID предложения")
		return
	}

	job, err := h.Svc.Accept(r.Context(), offerID, user.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONSuccess(w, "Предложение принято, заказ подтверждён", toJobView(job, false))
}

// DeclineOffer отклоняет встречное предложение.
func (h *Handlers) DeclineOffer(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}
	offerID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID предложения")
		return
	}

	if err := h.Svc.Decline(offerID, user.ID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONSuccess(w, "Предложение отклонено", nil)
}

// DirectAccept - прямой отклик исполнителя на условиях постера.
func (h *Handlers) DirectAccept(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}

	job, err := h.Svc.DirectAccept(r.Context(), jobID, user.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONSuccess(w, "Заказ подтверждён", toJobView(job, false))
}

// --- Жизненный цикл ---

// StartJob переводит заказ в работу.
func (h *Handlers) StartJob(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}

	job, err := h.Svc.Start(jobID, user.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONSuccess(w, "Заказ переведён в работу", toJobView(job, false))
}

// CompleteJob отмечает заказ выполненным.
func (h *Handlers) CompleteJob(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}

	job, err := h.Svc.Complete(r.Context(), jobID, user.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONSuccess(w, "Заказ выполнен", toJobView(job, false))
}

// FinishJob запускает выплату по выполненному заказу.
func (h *Handlers) FinishJob(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}

	job, err := h.Svc.Finish(r.Context(), jobID, user.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONSuccess(w, "Оплата проведена", toJobView(job, false))
}

// CancelJob отменяет заказ.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}

	job, err := h.Svc.Cancel(r.Context(), jobID, user.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONSuccess(w, "Заказ отменён", toJobView(job, false))
}

// RequestExtraTime сохраняет запрос доп. времени по почасовому заказу.
func (h *Handlers) RequestExtraTime(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}

	var req struct {
		Hours float64 `json:"hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	job, err := h.Svc.RequestExtraTime(jobID, user.ID, req.Hours)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONSuccess(w, "Запрос доп. времени сохранён", toJobView(job, false))
}

// ResolveExtraTime одобряет или отклоняет запрос доп. времени.
func (h *Handlers) ResolveExtraTime(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}

	var req struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	job, err := h.Svc.ResolveExtraTime(r.Context(), jobID, user.ID, req.Approve)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONSuccess(w, "Запрос доп. времени обработан", toJobView(job, false))
}

// --- Платёжные данные ---

// GetJobTransactions возвращает записи леджера по заказу.
func (h *Handlers) GetJobTransactions(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}
	if _, err := h.Svc.GetJob(jobID); err != nil {
		writeEngineError(w, err)
		return
	}

	txs, err := db.GetTransactionsByJobID(jobID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "ошибка получения записей леджера")
		return
	}

	type txView struct {
		ID              int64     `json:"id"`
		JobID           int64     `json:"job_id"`
		UserID          *int64    `json:"user_id,omitempty"`
		Type            string    `json:"type"`
		Amount          float64   `json:"amount"`
		Status          string    `json:"status"`
		ReferenceNumber string    `json:"reference_number,omitempty"`
		CreatedAt       time.Time `json:"created_at"`
	}
	views := make([]txView, 0, len(txs))
	for _, t := range txs {
		v := txView{
			ID:              t.ID,
			JobID:           t.JobID,
			Type:            t.Type,
			Amount:          t.Amount,
			Status:          t.Status,
			ReferenceNumber: t.ReferenceNumber,
			CreatedAt:       t.CreatedAt,
		}
		if t.UserID.Valid {
			v.UserID = &t.UserID.Int64
		}
		views = append(views, v)
	}
	writeJSONSuccess(w, "", views)
}

// GetJobQR отдаёт PNG с QR-кодом deep link на карточку заказа.
func (h *Handlers) GetJobQR(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "некорректный ID заказа")
		return
	}
	if _, err := h.Svc.GetJob(jobID); err != nil {
		writeEngineError(w, err)
		return
	}

	qrBytes, err := utils.GenerateJobQRCode(h.Cfg.BotUsername, jobID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "ошибка генерации QR-кода")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(qrBytes)
}

// SetPayoutDestination сохраняет платёжные реквизиты текущего пользователя.
func (h *Handlers) SetPayoutDestination(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "пользователь не найден в контексте")
		return
	}

	var req struct {
		Destination string `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Destination == "" {
		writeJSONError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	if err := db.SetPayoutDestination(user.ID, req.Destination); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "ошибка сохранения реквизитов")
		return
	}
	writeJSONSuccess(w, "Платёжные реквизиты сохранены", nil)
}

// --- Отчеты ---

// reportPeriod разбирает границы периода из query-параметров.
func reportPeriod(r *http.Request) (time.Time, time.Time) {
	end := time.Now()
	start := end.AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("start"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			start = t
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			end = t.Add(24*time.Hour - time.Second)
		}
	}
	return start, end
}

// GetLedgerReport отдаёт Excel-отчет по леджеру за период.
func (h *Handlers) GetLedgerReport(w http.ResponseWriter, r *http.Request) {
	start, end := reportPeriod(r)
	f, err := reports.BuildLedgerReport(start, end)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "ошибка формирования отчета")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger_report.xlsx"`)
	if err := f.Write(w); err != nil {
		log.Printf("GetLedgerReport: ошибка записи Excel в ответ: %v", err)
	}
}

// GetPaidJobsReport отдаёт Excel-отчет по оплаченным заказам за период.
func (h *Handlers) GetPaidJobsReport(w http.ResponseWriter, r *http.Request) {
	start, end := reportPeriod(r)
	f, err := reports.BuildPaidJobsReport(start, end)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "ошибка формирования отчета")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="paid_jobs_report.xlsx"`)
	if err := f.Write(w); err != nil {
		log.Printf("GetPaidJobsReport: ошибка записи Excel в ответ: %v", err)
	}
}
