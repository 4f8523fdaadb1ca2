package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/netrixlabs/keygate/internal/config"
	"github.com/netrixlabs/keygate/internal/metrics"
	"github.com/netrixlabs/keygate/internal/middleware"
	"github.com/netrixlabs/keygate/internal/ratelimit"
)

// Deps carries the wired handlers and cross-cutting pieces the router needs.
type Deps struct {
	Session *SessionHandler
	Keys    *KeyHandler
	Ads     *AdHandler
	WS      *WSHandler
	Admin   *AdminHandler

	JWTAuth *middleware.JWTAuth
	Limiter *ratelimit.Limiter
	Config  *config.Holder
	Metrics *metrics.Collector
}

// NewRouter assembles the full HTTP surface.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS)

	// Ops
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	rlRedeem := func() ratelimit.LimitConfig { return d.Config.Get().RateLimit.Redeem }
	rlLogin := func() ratelimit.LimitConfig { return d.Config.Get().RateLimit.Login }
	rlClaim := func() ratelimit.LimitConfig { return d.Config.Get().RateLimit.Claim }

	r.Route("/api/v1", func(r chi.Router) {
		// Client surface
		r.Post("/session/hello", d.Session.Hello)
		r.Get("/predict", d.Session.Predict)
		r.Get("/ws", d.WS.Stream)

		r.With(middleware.RateLimit(d.Limiter, "redeem", rlRedeem)).
			Post("/keys/redeem", d.Keys.Redeem)

		r.Get("/ads/eligibility", d.Ads.Eligibility)
		r.Post("/ads/watch", d.Ads.Watch)
		r.With(middleware.RateLimit(d.Limiter, "claim", rlClaim)).
			Post("/ads/claim", d.Ads.Claim)

		// Admin surface
		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.RateLimit(d.Limiter, "login", rlLogin)).
				Post("/login", d.Admin.Login)

			r.Group(func(r chi.Router) {
				r.Use(d.JWTAuth.Middleware)

				r.Post("/logout", d.Admin.Logout)
				r.Get("/ws", d.WS.AdminStream)

				r.Post("/keys", d.Admin.GenerateKeys)
				r.Get("/keys", d.Admin.ListKeys)
				r.Delete("/keys/{key}", d.Admin.DeleteKey)
				r.Delete("/keys", d.Admin.DeleteAllKeys)

				r.Get("/users", d.Admin.ListUsers)
				r.Post("/users/{id}/ban", d.Admin.ToggleBan)

				r.Get("/settings", d.Admin.GetSettings)
				r.Put("/settings", d.Admin.SaveSettings)

				r.Get("/stats", d.Admin.Stats)
				r.Get("/audit", d.Admin.AuditLog)
			})
		})
	})

	return r
}
