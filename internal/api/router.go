// internal/api/router.go
package api

import (
	"github.com/go-chi/chi/v5"

	"metalhead/internal/constants"
)

// SetupRoutes настраивает все маршруты API.
func SetupRoutes(r *chi.Mux, h *Handlers, secretKey string) {
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(secretKey))

		// --- Заказы ---
		r.Post("/api/jobs", h.CreateJob)
		r.Get("/api/jobs/{id}", h.GetJob)
		r.Get("/api/user/jobs", h.GetUserJobs)

		// --- Переговоры ---
		r.Get("/api/jobs/{id}/offers", h.ListOffers)
		r.Post("/api/jobs/{id}/offers", h.ProposeOffer)
		r.Post("/api/offers/{id}/accept", h.AcceptOffer)
		r.Post("/api/offers/{id}/decline", h.DeclineOffer)
		r.Post("/api/jobs/{id}/direct-accept", h.DirectAccept)

		// --- Жизненный цикл ---
		r.Post("/api/jobs/{id}/start", h.StartJob)
		r.Post("/api/jobs/{id}/complete", h.CompleteJob)
		r.Post("/api/jobs/{id}/finish", h.FinishJob)
		r.Post("/api/jobs/{id}/cancel", h.CancelJob)
		r.Post("/api/jobs/{id}/extra-time", h.RequestExtraTime)
		r.Post("/api/jobs/{id}/extra-time/resolve", h.ResolveExtraTime)

		// --- Платёжные данные ---
		r.Get("/api/jobs/{id}/transactions", h.GetJobTransactions)
		r.Get("/api/jobs/{id}/qr", h.GetJobQR)
		r.Post("/api/user/payout-destination", h.SetPayoutDestination)

		// --- Отчеты (операторы и выше) ---
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(RoleMiddleware(constants.ROLE_OPERATOR))
			r.Get("/reports/ledger", h.GetLedgerReport)
			r.Get("/reports/paid-jobs", h.GetPaidJobsReport)
		})
	})
}
