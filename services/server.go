package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/airies-ai/backend/crypto"
	"github.com/airies-ai/backend/events"
	"github.com/airies-ai/backend/metrics"
	"github.com/airies-ai/backend/repository"
	ws "github.com/airies-ai/backend/websocket"
)

// Server holds all server dependencies
type Server struct {
	config *Config

	gormDB *repository.GORMRepository
	rawDB  *gorm.DB

	trunkRepo        *repository.TrunkRepository
	callRepo         *repository.CallRepository
	conversationRepo *repository.ConversationRepository
	usageRepo        *repository.UsageRepository

	keyring     *crypto.Keyring
	redisClient *redis.Client
	rateLimiter *RateLimiter
	publisher   events.Publisher

	accountService *AccountService
	authService    *AuthService
	usageService   *UsageService
	trunkService   *SipTrunkService
	callService    *CallService
	healthMonitor  *TrunkHealthMonitor
	seeder         *DatabaseSeeder

	userEndpoints         *UserEndpoints
	agentEndpoints        *AgentEndpoints
	conversationEndpoints *ConversationEndpoints
	knowledgeEndpoints    *KnowledgeEndpoints
	usageEndpoints        *UsageEndpoints
	telephonyEndpoints    *TelephonyEndpoints

	wsHub         *ws.Hub
	streamHandler *StreamHandler
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{config: config}
}

// SetDatabase sets the database connection and builds the repositories.
func (s *Server) SetDatabase(repo *repository.GORMRepository, rawDB *gorm.DB) {
	s.gormDB = repo
	s.rawDB = rawDB
	s.trunkRepo = repository.NewTrunkRepository(rawDB)
	s.callRepo = repository.NewCallRepository(rawDB)
	s.conversationRepo = repository.NewConversationRepository(rawDB)
	s.usageRepo = repository.NewUsageRepository(rawDB)
}

// Seeder returns the database seeder, or nil when no database is wired.
func (s *Server) Seeder() *DatabaseSeeder {
	return s.seeder
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices() error {
	if s.config.Secrets.Keyring != "" {
		keyring, err := crypto.ParseKeyring(s.config.Secrets.Keyring)
		if err != nil {
			return fmt.Errorf("failed to parse secret keyring: %w", err)
		}
		s.keyring = keyring
		slog.Info("Secret keyring loaded")
	} else {
		slog.Warn("No secret keyring configured, trunk credentials will be stored in plaintext")
	}

	if s.config.Redis.URL != "" {
		opts, err := redis.ParseURL(s.config.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		s.redisClient = redis.NewClient(opts)
		s.rateLimiter = NewRateLimiter(s.redisClient, int64(s.config.RateLimit.PerMinute))
		slog.Info("Rate limiter initialized", "per_minute", s.config.RateLimit.PerMinute)
	}

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	s.publisher = events.NewNoop(slog.Default())
	if s.config.AMQP.URL != "" {
		pub, err := events.New(s.config.AMQP.URL, s.config.AMQP.Exchange, slog.Default())
		if err != nil {
			slog.Error("Failed to connect to message broker, broker events disabled", "error", err)
		} else {
			s.publisher = pub
			slog.Info("Event publisher initialized", "exchange", s.config.AMQP.Exchange)
		}
	}
	// Connected dashboards receive the same events over the stream.
	s.publisher = events.Fanout(s.publisher, NewStreamPublisher(s.wsHub))

	if s.gormDB == nil {
		slog.Warn("Database not configured, API routes will be unavailable")
		return nil
	}

	s.accountService = NewAccountService(s.gormDB)
	s.usageService = NewUsageService(s.usageRepo)
	s.trunkService = NewSipTrunkService(s.trunkRepo, s.callRepo, s.keyring, s.publisher, &s.config.Telephony)
	s.callService = NewCallService(s.trunkRepo, s.callRepo, s.trunkService, s.usageService, s.publisher, &s.config.Telephony)
	s.healthMonitor = NewTrunkHealthMonitor(s.trunkRepo, s.trunkService, &s.config.Telephony)
	s.seeder = NewDatabaseSeeder(s.gormDB, s.trunkRepo, s.usageService)
	slog.Info("Telephony services initialized")

	if s.config.JWT.Secret == "" {
		slog.Warn("JWT secret not configured, API routes will be unavailable")
		return nil
	}

	s.authService = NewAuthService(s.gormDB, s.config.JWT.Secret)
	s.userEndpoints = NewUserEndpoints(s.gormDB, s.accountService)
	s.agentEndpoints = NewAgentEndpoints(s.gormDB)
	s.conversationEndpoints = NewConversationEndpoints(s.conversationRepo, s.gormDB, s.usageService)
	s.knowledgeEndpoints = NewKnowledgeEndpoints(s.gormDB, s.usageService)
	s.usageEndpoints = NewUsageEndpoints(s.usageRepo)
	s.telephonyEndpoints = NewTelephonyEndpoints(s.trunkRepo, s.callRepo, s.trunkService, s.callService, s.authService)
	s.streamHandler = NewStreamHandler(s.wsHub, s.authService, s.config.WebSocket.AllowedOrigins)
	slog.Info("API endpoints initialized")

	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(s.config.WebSocket.AllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	// Operational endpoints
	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API v1 route group
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		// Provider webhooks authenticate their own way, not by API key
		if s.telephonyEndpoints != nil {
			r.Group(func(r chi.Router) {
				r.Use(metricsMiddleware("webhooks"))
				s.telephonyEndpoints.RegisterWebhookRoutes(r)
			})
		}

		// Event stream auth rides in the short-lived query token
		if s.streamHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(metricsMiddleware("stream"))
				s.streamHandler.RegisterRoutes(r)
			})
		}

		// API-key protected routes
		if s.authService != nil {
			r.Group(func(r chi.Router) {
				r.Use(metricsMiddleware("api"))
				r.Use(s.authService.Middleware)
				if s.rateLimiter != nil {
					r.Use(s.rateLimiter.Middleware)
				}
				s.userEndpoints.RegisterRoutes(r)
				s.agentEndpoints.RegisterRoutes(r)
				s.conversationEndpoints.RegisterRoutes(r)
				s.knowledgeEndpoints.RegisterRoutes(r)
				s.usageEndpoints.RegisterRoutes(r)
				s.telephonyEndpoints.RegisterRoutes(r)
			})
		}
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	if s.healthMonitor != nil {
		s.healthMonitor.Start()
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	if s.healthMonitor != nil {
		s.healthMonitor.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			slog.Error("Failed to close event publisher", "error", err)
		}
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}

	slog.Info("Server exited")
}

// corsOrigins turns the comma-separated allow-list into the form the
// CORS middleware wants. An empty list allows every origin, matching
// the WebSocket origin check.
func corsOrigins(allowed string) []string {
	if strings.TrimSpace(allowed) == "" {
		return []string{"*"}
	}
	origins := strings.Split(allowed, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

// metricsMiddleware counts finished requests by route group and status
// class.
func metricsMiddleware(group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.Global().HTTPRequests.WithLabelValues(group, fmt.Sprintf("%dxx", status/100)).Inc()
		})
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.rawDB != nil {
		if sqlDB, err := s.rawDB.DB(); err == nil {
			if err := sqlDB.PingContext(r.Context()); err != nil {
				dbStatus = "down"
				status = "degraded"
			} else {
				dbStatus = "up"
			}
		} else {
			dbStatus = "down"
			status = "degraded"
		}
	}

	streamClients := 0
	if s.wsHub != nil {
		streamClients = s.wsHub.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":%q,"database":%q,"stream_clients":%d}`, status, dbStatus, streamClients)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"AIRIES API v1","version":"1.0.0"}`))
}
