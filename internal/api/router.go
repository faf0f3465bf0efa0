package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/rss-broadcaster/internal/api/handler"
	apimw "github.com/notifyhub/rss-broadcaster/internal/api/middleware"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	status handler.BroadcastStatus,
	trigger handler.FeedTrigger,
	db handler.Pinger,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 16))
	r.Use(apimw.RequestID)
	r.Use(apimw.RequestLogger(logger))

	bh := handler.NewBroadcastHandler(status, logger)
	fh := handler.NewFeedHandler(trigger, logger)
	hh := handler.NewHealthHandler(db)

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/broadcast/status", bh.Status)
		r.Post("/feed/check", fh.Check)
	})

	return r
}
