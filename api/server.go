/*
server.go - Router wiring

PURPOSE:
  Assembles the chi router: middleware, CORS, and the /api route tree.

SEE ALSO:
  - handlers.go: the endpoints themselves
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the HTTP routing tree around a Handler. An empty
// origins list allows any origin.
func NewRouter(h *Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Employee-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.CreateRequest)
			r.Get("/", h.ListRequests)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetRequest)
				r.Put("/", h.UpdateRequest)
				r.Delete("/", h.DeleteRequest)
				r.Post("/submit", h.SubmitRequest)
				r.Post("/decide", h.DecideRequest)
				r.Get("/approver", h.GetApprover)
				r.Post("/notes", h.AddNote)
				r.Get("/audit", h.GetAuditTrail)
				r.Get("/document", h.GetDocument)
			})
		})

		r.Route("/employees", func(r chi.Router) {
			r.Post("/", h.CreateEmployee)
			r.Get("/", h.ListEmployees)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/entries", h.GetEntries)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/adjustments", h.CreateAdjustment)
			r.Post("/grants", h.CreateGrant)
			r.Post("/carryover", h.TriggerCarryOver)
			r.Post("/assignments", h.CreateAssignment)
			r.Get("/assignments", h.ListAssignments)
			r.Delete("/assignments/{id}", h.DeleteAssignment)
			r.Post("/holidays", h.CreateHoliday)
			r.Get("/holidays", h.ListHolidays)
			r.Delete("/holidays/{id}", h.DeleteHoliday)
		})

		r.Get("/workdays", h.GetWorkdays)
		r.Get("/reports/balances.xlsx", h.GetBalanceReport)

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
