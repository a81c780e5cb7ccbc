// Package server is the composition root: it opens the database, builds the
// outbound clients, services and handlers, and mounts them on one chi
// router.
//
// Dependency flow:
//
//	config.Config
//	  → sqlite.DB → UserStore
//	  → verification.Client, enrichment.GitHubClient, enrichment.BitbucketClient
//	  → AuthService, ProfileService
//	  → AuthHandler, ProfileHandler → routes
//
// Keeping this out of main makes the whole router testable through
// Handler() without binding a port.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cryptonite/profiles/internal/auth"
	"github.com/cryptonite/profiles/internal/config"
	"github.com/cryptonite/profiles/internal/enrichment"
	"github.com/cryptonite/profiles/internal/handler"
	"github.com/cryptonite/profiles/internal/middleware"
	sqliteRepo "github.com/cryptonite/profiles/internal/repository/sqlite"
	"github.com/cryptonite/profiles/internal/service"
	"github.com/cryptonite/profiles/internal/verification"
	"github.com/cryptonite/profiles/web"
)

// shutdownTimeout is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server owns the router and the database handle. The database is closed
// when Start returns, or by Close for servers that never start.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New wires every dependency described by cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes builds the service graph and mounts the routes.
//
// Middleware order: RequestID must precede Logger so access lines carry the
// id, and OptionalAuth runs on everything so pages can show who is signed
// in. Owner-only routes sit behind RequireAuth, which sends anonymous
// visitors to /login.
func (s *Server) setupRoutes() error {
	sessions, err := auth.NewSessionService(s.cfg.SessionSecret, s.cfg.SessionTTL)
	if err != nil {
		return err
	}

	verifier, err := verification.NewClient(verification.Config{
		APIRoute:    s.cfg.Verification.APIRoute,
		ServiceName: s.cfg.Verification.ServiceName,
		PrivateKey:  s.cfg.Verification.PrivateKey,
	}, &http.Client{Timeout: s.cfg.OutboundTimeout}, s.logger)
	if err != nil {
		return err
	}

	github := enrichment.NewGitHubClient(enrichment.GitHubConfig{
		BaseURL:     s.cfg.GitHub.APIURL,
		Token:       s.cfg.GitHub.Token,
		Timeout:     s.cfg.OutboundTimeout,
		Concurrency: s.cfg.GitHub.LanguageConcurrency,
	}, s.logger)
	bitbucket := enrichment.NewBitbucketClient(enrichment.BitbucketConfig{
		BaseURL: s.cfg.Bitbucket.APIURL,
		Token:   s.cfg.Bitbucket.Token,
		Timeout: s.cfg.OutboundTimeout,
	}, s.logger)

	users := s.db.Users()
	accounts := service.NewAuthService(users, sessions, auth.NewPasswordService(), s.logger)
	profiles := service.NewProfileService(users, verifier, github, bitbucket, s.logger)

	pages, err := handler.NewRenderer(web.FS, s.logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		return fmt.Errorf("loading static files: %w", err)
	}

	authHandler := handler.NewAuthHandler(accounts, sessions, pages, s.cfg.SecureCookies, s.logger)
	profileHandler := handler.NewProfileHandler(profiles, accounts, sessions, pages, s.cfg.SecureCookies, s.logger)

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(auth.OptionalAuth(sessions))

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	r.Get("/signup", authHandler.HandleSignupPage)
	r.Post("/signup", authHandler.HandleSignup)
	r.Get("/login", authHandler.HandleLoginPage)
	r.Post("/login", authHandler.HandleLogin)
	r.Get("/logout", authHandler.HandleLogout)

	r.Get("/users", profileHandler.HandleList)
	r.Route("/users/{username}", func(r chi.Router) {
		r.Get("/", profileHandler.HandleProfile)
		r.Get("/verify_status", profileHandler.HandleVerifyStatus)
		r.Get("/github", profileHandler.HandleGitHub)
		r.Get("/bitbucket", profileHandler.HandleBitbucket)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(sessions))
			r.Get("/edit", profileHandler.HandleEditPage)
			r.Post("/edit", profileHandler.HandleEdit)
			r.Get("/token", profileHandler.HandleToken)
		})
	})

	return nil
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests and
// closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // GitHub fan-out can take a while
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
