package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"PuertoComercio/internal/auth"
	"PuertoComercio/internal/brochure"
	"PuertoComercio/internal/catalog"
	"PuertoComercio/internal/upload"
	"PuertoComercio/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

type Deps struct {
	Auth   *auth.Service
	Store  catalog.Store
	Sink   *upload.Sink
	Pinger Pinger

	Placeholder     string
	MaxUploadBytes  int64
	LoginRatePerMin int
	TrustProxy      bool
}

// Pinger is an extra dependency that must answer before /readyz reports ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

const readyTimeout = 2 * time.Second

type healthResp struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg"`
}

func NewHandler(deps Deps, httpDeps HTTPDeps) (http.Handler, error) {
	if deps.Auth == nil || deps.Store == nil || deps.Sink == nil {
		return nil, errors.New("gateway: auth, store and sink are required")
	}
	log := httpDeps.Log
	if log == nil {
		log = zap.NewNop()
		httpDeps.Log = log
	}

	authSrv := &auth.Server{Log: log, Service: deps.Auth}
	catalogSrv := &catalog.Server{Store: deps.Store, Log: log, Placeholder: deps.Placeholder}
	uploadSrv := &upload.Server{Sink: deps.Sink, Log: log, MaxBytes: deps.MaxUploadBytes}
	pdfSrv := &brochure.Server{
		Store:    deps.Store,
		Renderer: &brochure.Renderer{Images: deps.Sink, Log: log},
		Log:      log,
	}

	r := chi.NewRouter()
	setupMiddleware(r, httpDeps)
	setupMetrics(r, httpDeps)

	r.Get("/health", health)
	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps, log))

	limiter := kit.NewIPRateLimiter(deps.LoginRatePerMin, time.Minute)
	limiter.TrustProxy = deps.TrustProxy
	r.With(limiter.Middleware).Post("/auth/login", authSrv.LoginHandler())

	r.Get("/productos", catalogSrv.ListHandler())
	r.Get("/productos/{id}", catalogSrv.GetHandler())
	r.Get("/uploads/{filename}", uploadSrv.ServeHandler())
	r.Get("/catalogo-pdf", pdfSrv.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(RequireToken(deps.Auth.Tokens))

		pr.Get("/auth/whoami", authSrv.WhoAmIHandler())
		pr.Post("/productos", catalogSrv.CreateHandler())
		pr.Put("/productos/{id}", catalogSrv.UpdateHandler())
		pr.Delete("/productos/{id}", catalogSrv.DeleteHandler())
		pr.Post("/upload-image", uploadSrv.UploadHandler())
	})

	return r, nil
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer(deps.Log))
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func health(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, healthResp{OK: true, Msg: "api up"})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(deps Deps, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := deps.Store.Ping(ctx); err != nil {
			log.Warn("readyz failed: catalog", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog not ready", nil)
			return
		}

		if deps.Pinger != nil {
			if err := deps.Pinger.Ping(ctx); err != nil {
				log.Warn("readyz failed: credentials", zap.Error(err))
				kit.WriteError(w, r, http.StatusServiceUnavailable, "credentials not ready", nil)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}
