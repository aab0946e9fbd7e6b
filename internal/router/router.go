package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"leaddesk/internal/chatbot"
	"leaddesk/internal/config"
	"leaddesk/internal/events"
	"leaddesk/internal/handlers"
	"leaddesk/internal/middleware"
	"leaddesk/internal/repository/postgres"
)

func New(log zerolog.Logger, db *pgxpool.Pool, broker *events.Broker, responder chatbot.Responder, cfg config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(200, time.Minute))

	// Health
	r.Get("/healthz", handlers.Health())
	r.Get("/api/info", handlers.Info())

	// Repos + handlers
	leadRepo := postgres.NewLeadRepo(db)
	msgRepo := postgres.NewMessageRepo(db)

	ch := handlers.NewCustomerHTTP(leadRepo)
	mh := handlers.NewChatHTTP(msgRepo, responder, broker, log)
	ah := handlers.NewAgentHTTP(leadRepo, msgRepo, broker)
	dh := handlers.NewAdminHTTP(leadRepo)

	r.Route("/api", func(r chi.Router) {
		r.Route("/customer", func(r chi.Router) {
			r.Post("/save", ch.Save())
			r.Post("/update-time", ch.UpdateTime())
			r.Post("/request-agent", ch.RequestAgent())
			r.Post("/end-session", ch.EndSession())
		})

		r.Post("/chatbot/message", mh.BotMessage())
		r.Post("/chat/save-message", mh.SaveMessage())

		r.Route("/agent", func(r chi.Router) {
			r.Get("/queue", ah.Queue())
			r.Post("/send-message", ah.SendMessage())
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/all", dh.List())
			r.Get("/stats", dh.Stats())
			r.Get("/priority-queue", dh.PriorityQueue())
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", mh.Messages())
				r.Get("/stream", mh.Stream())
				r.Put("/status", dh.UpdateStatus())
				r.Get("/notes", dh.GetNotes())
				r.Put("/notes", dh.UpdateNotes())
				r.Delete("/", dh.Delete())
			})
		})
	})

	return r
}
