package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"banking-ledger/internal/config"
	"banking-ledger/internal/domain"
	"banking-ledger/internal/handler"
	"banking-ledger/internal/ledger"
	"banking-ledger/internal/repository"
	"banking-ledger/internal/service"
)

// pinger is implemented by backends that hold a live connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	router  *mux.Router
	server  *http.Server
	backend domain.SnapshotRepository
	logger  *slog.Logger
	port    string
}

// openBackend selects the snapshot backend named by cfg.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.SnapshotRepository, error) {
	var (
		backend domain.SnapshotRepository
		err     error
	)
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		backend, err = repository.OpenPostgres(ctx, cfg.DatabaseURL, logger)
	case config.BackendSQLite:
		backend, err = repository.OpenSQLite(ctx, cfg.SQLitePath, logger)
	case config.BackendFile:
		backend, err = repository.NewFileStore(cfg.SnapshotPath, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Storage backend ready", "backend", cfg.StorageBackend)

	repo := repository.NewRetryingRepository(backend, cfg.SaveMaxRetries, logger)

	snap, err := repository.Bootstrap(ctx, repo, time.Now(), logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	state, err := ledger.FromSnapshot(snap)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}

	// Initialize services
	audit := repository.NewFileAuditLog(cfg.AuditLogPath, logger)
	ledgerService := service.NewLedgerService(state, repo, audit, logger,
		service.WithDailyDepositLimit(cfg.DepositLimit()))
	authService := service.NewAuthService(ledgerService, []byte(cfg.JWTSecret), cfg.JWTTTL(), logger)
	reportService := service.NewReportService(ledgerService, cfg.ReportDir, logger)

	s := &Server{
		backend: backend,
		logger:  logger,
	}
	s.router = s.routes(authService, ledgerService, reportService)
	return s, nil
}

func (s *Server) routes(auth *service.AuthService, ledgerService *service.LedgerService, reports *service.ReportService) *mux.Router {
	authHandler := handler.NewAuthHandler(auth)
	accountHandler := handler.NewAccountHandler(ledgerService)
	adminHandler := handler.NewAdminHandler(ledgerService, reports)

	router := mux.NewRouter()
	router.Use(loggingMiddleware(s.logger))

	// Public routes
	router.HandleFunc("/register", authHandler.Register).Methods("POST")
	router.HandleFunc("/login", authHandler.Login).Methods("POST")
	router.HandleFunc("/health", s.health).Methods("GET")

	router.Handle("/logout", authHandler.Authenticate(http.HandlerFunc(authHandler.Logout))).Methods("POST")

	// Client routes
	client := router.PathPrefix("/accounts").Subrouter()
	client.Use(authHandler.Authenticate, handler.RequireRole(domain.RoleClient))
	client.HandleFunc("", accountHandler.ListAccounts).Methods("GET")
	client.HandleFunc("", accountHandler.CreateAccount).Methods("POST")
	client.HandleFunc("/{account_id}/deposit", accountHandler.Deposit).Methods("POST")
	client.HandleFunc("/{account_id}/transfer", accountHandler.Transfer).Methods("POST")
	client.HandleFunc("/{account_id}/bill-payment", accountHandler.PayBill).Methods("POST")
	client.HandleFunc("/{account_id}/transactions", accountHandler.ListTransactions).Methods("GET")

	// Employee routes
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(authHandler.Authenticate, handler.RequireRole(domain.RoleEmployee))
	admin.HandleFunc("/accounts/{account_id}/block", adminHandler.BlockAccount).Methods("POST")
	admin.HandleFunc("/accounts/{account_id}/unblock", adminHandler.UnblockAccount).Methods("POST")
	admin.HandleFunc("/transactions", adminHandler.ListAllTransactions).Methods("GET")
	admin.HandleFunc("/reports", adminHandler.GenerateReport).Methods("POST")

	return router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if p, ok := s.backend.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
			return
		}
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed to start", "error", err)
		}
	}()

	return s.port, nil
}

// Stop gracefully shuts down the server and releases the storage backend.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if s.backend != nil {
		if closeErr := s.backend.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// StartServer starts the server with the given configuration
func StartServer(cfg *config.Config) (*Server, string, error) {
	// port 0 means a test run; keep the output quiet
	var logger *slog.Logger
	if cfg.ServerPort == "0" {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	server, err := NewServer(ctx, cfg, logger)
	if err != nil {
		return nil, "", err
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.Stop(context.Background())
		return nil, "", err
	}

	return server, port, nil
}
