package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eventra/authserver/config"
	"github.com/eventra/authserver/internal/db"
	"github.com/eventra/authserver/internal/handlers"
	"github.com/eventra/authserver/internal/logging"
	"github.com/eventra/authserver/internal/mq"
	"github.com/eventra/authserver/internal/notify"
	"github.com/eventra/authserver/internal/ratelimit"
	"github.com/eventra/authserver/internal/services"
	"github.com/eventra/authserver/internal/store"
	"github.com/eventra/authserver/internal/token"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	queue      *mq.MQ
	logger     *zap.Logger
}

// routes bundles what the router needs so it can be built without
// infrastructure.
type routes struct {
	auth      handlers.AuthService
	users     handlers.UserService
	verifier  handlers.AccessTokenVerifier
	limiter   handlers.Limiter
	started   time.Time
	authBase  string
	usersBase string
	origins   []string
}

// New opens the database and optional Redis and queue connections, wires
// the services and builds the router.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	s := &Server{db: dbConn, logger: logger}

	userRepo := store.NewUserRepository(dbConn)
	otpRepo := store.NewOTPRepository(dbConn)
	refreshRepo := store.NewRefreshTokenRepository(dbConn)
	tokens := token.NewManager(cfg.JWT)

	var httpLimiter handlers.Limiter
	var otpLimiter services.RequestLimiter
	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, rate limits fail open", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}

		l, err := ratelimit.New(s.redis, "rl:auth", cfg.RateLimit.Limit, cfg.RateLimit.Window, cfg.RateLimit.Block)
		if err != nil {
			_ = s.close()
			return nil, fmt.Errorf("http rate limiter: %w", err)
		}
		httpLimiter = l

		ol, err := ratelimit.New(s.redis, "rl:otp", cfg.OTP.RequestLimit, cfg.OTP.RequestWindow, cfg.OTP.RequestBlock)
		if err != nil {
			_ = s.close()
			return nil, fmt.Errorf("otp rate limiter: %w", err)
		}
		otpLimiter = ol
	}

	s.queue, err = mq.Open(ctx, cfg)
	if err != nil {
		_ = s.close()
		return nil, err
	}

	sender, err := newOTPSender(cfg, s.queue, logger)
	if err != nil {
		_ = s.close()
		return nil, err
	}

	otpService := services.NewOTPService(userRepo, otpRepo, sender, otpLimiter, cfg.OTP, logger)
	authService := services.NewAuthService(userRepo, refreshRepo, otpService, tokens, logger)
	userService := services.NewUserService(userRepo)

	s.router = newRouter(routes{
		auth:      authService,
		users:     userService,
		verifier:  tokens,
		limiter:   httpLimiter,
		started:   time.Now(),
		authBase:  cfg.AuthBasePath,
		usersBase: cfg.UsersBasePath,
		origins:   cfg.CORS.AllowedOrigins,
	}, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func newRouter(rt routes, logger *zap.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(logger),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins: rt.origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			MaxAge:         300,
		}),
	)

	authMiddleware := handlers.RequireAuth(rt.verifier)
	var limit func(http.Handler) http.Handler
	if rt.limiter != nil {
		limit = handlers.RateLimit(rt.limiter, logger)
	}

	router.Get("/health", handlers.Health(rt.started))
	router.Route(rt.authBase, func(r chi.Router) {
		handlers.AuthRouter(r, rt.auth, authMiddleware, limit, logger)
	})
	router.Route(rt.usersBase, func(r chi.Router) {
		handlers.UserRouter(r, rt.users, authMiddleware, logger)
	})
	return router
}

// newOTPSender picks where OTP codes go: the queue when one is configured,
// SMTP when a host is set, the log otherwise.
func newOTPSender(cfg config.Config, queue *mq.MQ, logger *zap.Logger) (services.OTPSender, error) {
	if queue != nil {
		return notify.NewQueueSender(queue, cfg.MQ.OTPChannel), nil
	}
	if cfg.SMTP.Host != "" {
		mailer, err := notify.NewMailer(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		return mailer, nil
	}
	if !cfg.IsDev() {
		logger.Warn("no OTP delivery configured, codes are only logged")
	}
	return notify.NewLogSender(logger), nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the queue, Redis and
// database connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	return errors.Join(err, s.close())
}

func (s *Server) close() error {
	var errs []error
	if s.queue != nil {
		errs = append(errs, s.queue.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
