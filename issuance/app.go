package issuance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"golang.org/x/exp/slog"

	"github.com/nimblebank/cardissuer/internal/auth"
	"github.com/nimblebank/cardissuer/internal/bankprovider"
	"github.com/nimblebank/cardissuer/internal/expiry"
	"github.com/nimblebank/cardissuer/internal/middleware"
	"github.com/nimblebank/cardissuer/issuance/models"
)

// App is the main application. It wires the repository, provider client,
// service and API together and is responsible for starting and stopping
// them.
type App struct {
	srv    *http.Server
	wg     *sync.WaitGroup
	Addr   string
	logger *slog.Logger
	config *Config
	db     *sql.DB
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "cardissuer"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger))

	var repository *Repository
	switch a.config.Database.Backend {
	case "pg":
		if a.config.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the pg backend")
		}
		db, err := sql.Open("postgres", a.config.Database.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)
		if err := db.Ping(); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		a.db = db
		repository = NewPGRepository(db)
	case "mem":
		repository = NewRepository()
	default:
		return fmt.Errorf("unsupported database backend %q", a.config.Database.Backend)
	}

	if a.config.Database.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repository.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}

	if a.config.ExpiryTimezone != "" {
		if loc, err := time.LoadLocation(a.config.ExpiryTimezone); err == nil {
			expiry.SetDefaultLocation(loc)
		} else {
			a.logger.Info("invalid expiry timezone; using UTC",
				slog.String("tz", a.config.ExpiryTimezone), slog.Any("err", err))
		}
	}

	provider := bankprovider.New(
		a.config.Provider.BaseURL,
		time.Duration(a.config.Provider.TimeoutSeconds)*time.Second,
	)

	service := NewService(repository, provider, a.logger)
	api := NewAPI(service, a.logger)

	authn := auth.Middleware(auth.UserSourceFunc(
		func(ctx context.Context, apiKey string) (*models.User, bool, error) {
			user, err := repository.GetUserByAPIKey(ctx, apiKey)
			if errors.Is(err, ErrNotFound) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, err
			}
			return user, true, nil
		},
	))

	createLimit := middleware.RateLimit(middleware.RateLimitOptions{
		RPS:   a.config.RateLimit.RPS,
		Burst: a.config.RateLimit.Burst,
		KeyFn: func(r *http.Request) string {
			if user, ok := auth.UserFromContext(r.Context()); ok {
				return user.ID
			}
			return r.RemoteAddr
		},
	})

	api.AppendRoutes(router, authn, createLimit)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := repository.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler: router,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	a.srv.Shutdown(context.Background())

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("closing database", "err", err)
		}
	}

	a.wg.Wait()

	a.logger.Info("app stopped")
}
