package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docregistry/apiserver/config"
	"github.com/docregistry/apiserver/internal/auth"
	"github.com/docregistry/apiserver/internal/db"
	"github.com/docregistry/apiserver/internal/events"
	"github.com/docregistry/apiserver/internal/graph"
	"github.com/docregistry/apiserver/internal/handlers"
	"github.com/docregistry/apiserver/internal/logger"
	"github.com/docregistry/apiserver/internal/metrics"
	"github.com/docregistry/apiserver/internal/mq"
	"github.com/docregistry/apiserver/internal/ratelimit"
	"github.com/docregistry/apiserver/internal/services"
	"github.com/docregistry/apiserver/internal/storage"
	"github.com/docregistry/apiserver/internal/store"
)

const shutdownTimeout = 15 * time.Second

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	redis      *redis.Client
	log        *logger.Logger
}

// New validates the auth configuration, connects to the backing services
// and builds the router. It fails before touching the database when the
// token secrets are missing or equal.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*Server, error) {
	issuer, err := auth.NewIssuer(auth.Config{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{db: dbConn, log: log}

	if s.queue, err = mq.Open(ctx, cfg.MQ); err != nil {
		s.close()
		return nil, err
	}
	var publisher events.Publisher = events.Nop{}
	if s.queue != nil {
		publisher = events.NewMQPublisher(s.queue, cfg.MQ.Channel, log)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.close()
		return nil, err
	}
	var attachments services.AttachmentStore
	if objects != nil {
		attachments = objects
	}

	if s.redis, err = ratelimit.NewRedisClient(ctx, cfg.Redis); err != nil {
		log.Warn("login rate limiting disabled", zap.Error(err))
	}
	limiter := ratelimit.New(s.redis, cfg.Redis.LoginLimit, cfg.Redis.LoginWindow)

	userRepo := store.NewUserRepository(dbConn)
	personRepo := store.NewPersonRepository(dbConn)
	addressRepo := store.NewAddressRepository(dbConn)

	userService := services.NewUserService(userRepo, publisher)
	personService := services.NewPersonService(personRepo)
	addressService := services.NewAddressService(addressRepo)
	residencyService := services.NewResidencyService(store.NewResidencyRepository(dbConn), addressRepo, publisher)
	documentService := services.NewDocumentService(store.NewDocumentRepository(dbConn), personRepo, attachments, publisher).WithLogger(log)

	schema, err := graph.NewSchema(graph.NewResolver(graph.Deps{
		Issuer:      issuer,
		Users:       userService,
		Persons:     personService,
		Addresses:   addressService,
		Residencies: residencyService,
		Documents:   documentService,
		Limiter:     limiter,
		Logger:      log,
	}))
	if err != nil {
		s.close()
		return nil, fmt.Errorf("build graphql schema: %w", err)
	}

	cookie := handlers.RefreshCookieFromConfig(cfg.Auth)
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(log),
		middleware.Recoverer,
		handlers.Metrics,
		handlers.CORS(cfg.CORSOrigin),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	graphQL := handlers.NewGraphQLHandler(schema, cookie, log)
	router.Method(http.MethodPost, "/graphql", graphQL)
	router.Method(http.MethodGet, "/graphql", graphQL)

	handlers.AuthRouter(router, auth.NewRefresher(issuer, userRepo), cookie, log)
	router.Route("/documents", func(r chi.Router) {
		handlers.DocumentRouter(r, documentService, handlers.RequireAuth(issuer), handlers.RequireClerk(issuer), log)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 4000
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves until ctx is cancelled or the listener fails, then shuts down
// gracefully and releases the backing connections.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	s.log.Info("http server stopped")
	return err
}

func (s *Server) close() {
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
