// Package httpapi exposes the account and session operations over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

type UserService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Profile(ctx context.Context, userID string) (*models.User, error)
	Authenticate(ctx context.Context, userID string) (*models.User, error)
}

type SessionService interface {
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	GenerateTwoFactorSecret(ctx context.Context, email string) (*services.TwoFactorSecret, error)
	EnableTwoFactor(ctx context.Context, userID, code string) (bool, error)
	LoginWithTwoFactor(ctx context.Context, userID, code string) (*services.LoginResult, error)
	LoginWithGoogle(ctx context.Context, email string) (*services.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) (bool, error)
	ResetPassword(ctx context.Context, tokenID, newPassword string) (bool, error)
}

// TokenParser validates bearer access tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// OAuthProvider runs the authorization-code handshake with an identity
// provider and yields the verified email of the signed-in account.
type OAuthProvider interface {
	AuthURL(state string) string
	VerifiedEmail(ctx context.Context, code string) (string, error)
}

// StateStore issues single-use anti-CSRF values for the OAuth redirect.
type StateStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) (bool, error)
}

type Deps struct {
	Users    UserService
	Sessions SessionService
	Tokens   TokenParser
	// Google and States are optional; without them the /auth/google routes
	// answer 404.
	Google OAuthProvider
	States StateStore
	Logger logging.Logger
}

type Server struct {
	address        string
	allowedOrigins []string
	users          UserService
	sessions       SessionService
	tokens         TokenParser
	google         OAuthProvider
	states         StateStore
	logger         logging.Logger
	validate       *validator.Validate
}

func NewServer(address string, allowedOrigins []string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		address:        address,
		allowedOrigins: allowedOrigins,
		users:          d.Users,
		sessions:       d.Sessions,
		tokens:         d.Tokens,
		google:         d.Google,
		states:         d.States,
		logger:         logger.With("module", "http_server"),
		validate:       newValidator(),
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.health)

	r.Route("/users", func(r chi.Router) {
		r.Post("/register", s.register)
		r.With(s.requireUser).Get("/profile", s.profile)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/refresh", s.refresh)
		r.Post("/logout", s.logout)
		r.Post("/forgot-password", s.forgotPassword)
		r.Post("/reset-password", s.resetPassword)

		r.Route("/2fa", func(r chi.Router) {
			r.With(s.requireUser).Post("/generate", s.generateTwoFactor)
			r.With(s.requireUser).Post("/turn-on", s.turnOnTwoFactor)
			r.Post("/authenticate", s.authenticateTwoFactor)
		})

		if s.google != nil && s.states != nil {
			r.Get("/google", s.googleRedirect)
			r.Get("/google/callback", s.googleCallback)
		}
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "OK"})
}
