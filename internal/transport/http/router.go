package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tablemend/tablemend-api/internal/application/device"
	"github.com/tablemend/tablemend-api/internal/application/dispatch"
	"github.com/tablemend/tablemend-api/internal/application/message"
	"github.com/tablemend/tablemend-api/internal/application/proposal"
	"github.com/tablemend/tablemend-api/internal/application/threadsync"
	"github.com/tablemend/tablemend-api/internal/application/typing"
	"github.com/tablemend/tablemend-api/internal/application/unread"
	"github.com/tablemend/tablemend-api/internal/config"
	"github.com/tablemend/tablemend-api/internal/domain"
	jwtinfra "github.com/tablemend/tablemend-api/internal/infrastructure/jwt"
	"github.com/tablemend/tablemend-api/internal/transport/http/handler"
	appmiddleware "github.com/tablemend/tablemend-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	MessageRepo   MessageRepository
	ThreadRepo    ThreadRepository
	ReadStateRepo ReadStateRepository
	TypingRepo    TypingStateRepository
	TriggerRepo   TriggerRepository
	DeviceRepo    DeviceRepository
	Endpoints     EndpointCreator
	IssueUpdater  domain.IssueUpdater
	Attachments   domain.AttachmentStore
	Dispatcher    dispatch.Service
	JWTProvider   *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10, applied to write-heavy endpoints.
	sendRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	hub := threadsync.NewHub(deps.MessageRepo, deps.ReadStateRepo)

	messageSvc := message.NewService(message.Deps{
		Messages:    deps.MessageRepo,
		Threads:     deps.ThreadRepo,
		ReadStates:  deps.ReadStateRepo,
		Triggers:    deps.TriggerRepo,
		Typing:      deps.TypingRepo,
		Dispatcher:  deps.Dispatcher,
		Hub:         hub,
		Attachments: deps.Attachments,
	})
	unreadSvc := unread.NewService(deps.ThreadRepo, deps.ReadStateRepo)
	typingSvc := typing.NewService(deps.TypingRepo, hub, cfg.TypingTTL)
	proposalSvc := proposal.NewService(deps.MessageRepo, deps.IssueUpdater, hub)
	deviceSvc := device.NewService(deps.DeviceRepo, deps.Endpoints)

	healthH := handler.NewHealthHandler()
	messageH := handler.NewMessageHandler(messageSvc)
	threadH := handler.NewThreadHandler(messageSvc, unreadSvc)
	typingH := handler.NewTypingHandler(typingSvc)
	proposalH := handler.NewProposalHandler(proposalSvc)
	eventsH := handler.NewEventsHandler(hub)
	deviceH := handler.NewDeviceHandler(deviceSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/unread", threadH.UnreadMap)

			r.Get("/devices", deviceH.List)
			r.Put("/devices", deviceH.Register)
			r.Delete("/devices/{id}", deviceH.Disable)

			r.Route("/threads/{id}", func(r chi.Router) {
				r.Get("/messages", messageH.List)
				r.With(sendRL.Limit).Post("/messages", messageH.Send)
				r.Get("/events", eventsH.Stream)
				r.Post("/read", threadH.MarkRead)
				r.Get("/typing", typingH.List)
				r.Post("/typing", typingH.Set)
				r.Delete("/typing", typingH.Clear)

				r.Route("/messages/{mid}", func(r chi.Router) {
					r.Put("/reactions", messageH.AddReaction)
					r.Delete("/reactions", messageH.RemoveReaction)
					r.Post("/proposal", proposalH.Resolve)
				})
			})
		})
	})

	return r
}
