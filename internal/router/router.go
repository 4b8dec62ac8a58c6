package router

import (
	"database/sql"
	"net/http"

	_ "panacea/docs"
	mem "panacea/internal/adapters/storage/memory"
	pg "panacea/internal/adapters/storage/postgres"
	"panacea/internal/domain/doses"
	"panacea/internal/domain/dosetime"
	"panacea/internal/domain/medications"
	"panacea/internal/domain/subscriptions"
	"panacea/internal/middleware"
	"panacea/internal/platform/logger"
	"panacea/internal/platform/metrics"
	"panacea/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	Logger  logger.Logger
	Metrics *metrics.Metrics // nil = sin /metrics
	Clock   dosetime.Clock

	StockDecrementOnce bool

	// RateLimitRPS <= 0 desactiva el límite por IP.
	RateLimitRPS   float64
	RateLimitBurst int
}

// App es el router más los repos, que main reutiliza para los sweeps.
type App struct {
	Handler http.Handler

	Medications   medications.Repository
	Doses         doses.Repository
	Subscriptions subscriptions.Repository
}

func NewRouter(opts Options) http.Handler {
	return Build(opts).Handler
}

func Build(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))
	r.Use(middleware.RequestLog(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	var (
		medRepo  medications.Repository
		doseRepo doses.Repository
		subsRepo subscriptions.Repository
	)

	if opts.DB != nil {
		medRepo = pg.NewMedicationsRepo(opts.DB)
		doseRepo = pg.NewDosesRepo(opts.DB)
		subsRepo = pg.NewSubscriptionsRepo(opts.DB)
	} else {
		medRepo = mem.NewMedicationRepo()
		doseRepo = mem.NewDoseRepo()
		subsRepo = mem.NewSubscriptionRepo()
	}

	// doses primero: medications lo usa como ledger (siembra y cascada).
	dosesSvc := doses.NewService(doseRepo, medRepo, doses.Options{
		Clock:              opts.Clock,
		Logger:             log,
		Metrics:            opts.Metrics,
		StockDecrementOnce: opts.StockDecrementOnce,
	})
	medsSvc := medications.NewService(medRepo, dosesSvc, log)
	subsSvc := subscriptions.NewService(subsRepo)

	// API de usuario, con límite por IP.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

		doses.RegisterRoutes(r, dosesSvc)
		medications.RegisterRoutes(r, medsSvc)
		subscriptions.RegisterRoutes(r, subsSvc)
	})

	return &App{
		Handler:       r,
		Medications:   medRepo,
		Doses:         doseRepo,
		Subscriptions: subsRepo,
	}
}
