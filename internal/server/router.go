package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medisync/realtime/internal/client"
	"github.com/medisync/realtime/internal/domain"
	"github.com/medisync/realtime/internal/observability"
	"github.com/medisync/realtime/internal/session"
	"github.com/medisync/realtime/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Messenger is the part of the connection manager the status server needs.
type Messenger interface {
	State() client.State
	IsConnected() bool
	Identity() *session.Identity
	Store() *store.Store
	SendMessage(receiverID, content string, typ domain.MessageType, attachments []string) domain.ChatMessage
	SendBroadcast(content string, recipients []string) domain.BroadcastNotification
}

type Options struct {
	ServiceName    string
	MetricsEnabled bool
	// RateLimit caps POST requests per client IP per RateWindow; 0 disables it.
	RateLimit  int
	RateWindow time.Duration
}

func NewRouter(m Messenger, opts Options) http.Handler {
	h := &Handler{messenger: m}

	r := chi.NewRouter()
	r.Use(observability.MetricsMiddleware(opts.ServiceName))
	r.Use(Recovery())

	r.Get("/health/live", observability.HealthLiveHandler)
	r.Get("/health/ready", observability.HealthReadyHandler(m.IsConnected))
	if opts.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/state", h.State)
	r.Get("/messages", h.Messages)
	r.Get("/notifications", h.Notifications)

	r.Group(func(p chi.Router) {
		p.Use(RateLimit(opts.RateLimit, opts.RateWindow))
		p.Post("/messages", h.SendMessage)
		p.Post("/broadcasts", h.SendBroadcast)
	})

	return otelhttp.NewHandler(r, opts.ServiceName)
}
