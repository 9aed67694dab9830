// Package web serves the FoodApp pages. Every request rebuilds the session
// controller from the stored bearer token and bootstraps it, so the backend
// stays the source of truth for the signed-in user and the restaurant list.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/R3E-Network/foodapp/internal/backend"
	"github.com/R3E-Network/foodapp/internal/logging"
	"github.com/R3E-Network/foodapp/internal/manifest"
	"github.com/R3E-Network/foodapp/internal/metrics"
	"github.com/R3E-Network/foodapp/internal/middleware"
	"github.com/R3E-Network/foodapp/internal/model"
	"github.com/R3E-Network/foodapp/internal/probe"
	"github.com/R3E-Network/foodapp/internal/session"
	"github.com/R3E-Network/foodapp/internal/sessionstore"
)

const serviceName = "foodapp"

// Options configures a Server.
type Options struct {
	// Client is the unauthenticated backend client; each request derives a
	// token-carrying copy from it.
	Client *manifest.Client
	Names  backend.Names
	Store  sessionstore.Store
	Prober *probe.Prober

	Logger  *logging.Logger
	Metrics *metrics.Metrics

	SessionSecret string
	// SessionTTL applies to tokens without an exp claim and to the cookie.
	SessionTTL    time.Duration
	SecureCookies bool

	AdminURL       string
	MaxUploadBytes int64
	// BootstrapTimeout bounds the current-user lookup; past it the loading
	// page is served.
	BootstrapTimeout time.Duration

	// AuthLimiter throttles POST /login and /signup. Nil disables it.
	AuthLimiter        *middleware.RateLimiter
	CORSAllowedOrigins []string
}

// Server holds the dependencies shared by all requests.
type Server struct {
	client   *manifest.Client
	names    backend.Names
	store    sessionstore.Store
	prober   *probe.Prober
	logger   *logging.Logger
	metrics  *metrics.Metrics
	cookies  *cookieSigner
	guard    *sessionGuard
	pages    *renderer
	limiter  *middleware.RateLimiter
	cors     *middleware.CORSMiddleware
	adminURL string

	sessionTTL       time.Duration
	maxUploadBytes   int64
	bootstrapTimeout time.Duration
}

// NewServer validates opts and builds a Server.
func NewServer(opts Options) (*Server, error) {
	if opts.Client == nil {
		return nil, errors.New("web: backend client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("web: session store is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("web: logger is required")
	}
	if opts.Metrics == nil {
		return nil, errors.New("web: metrics are required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.BootstrapTimeout <= 0 {
		opts.BootstrapTimeout = 10 * time.Second
	}

	cookies, err := newCookieSigner(opts.SessionSecret, opts.SecureCookies, opts.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}
	pages, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}

	s := &Server{
		client:           opts.Client,
		names:            opts.Names,
		store:            opts.Store,
		prober:           opts.Prober,
		logger:           opts.Logger,
		metrics:          opts.Metrics,
		cookies:          cookies,
		guard:            newSessionGuard(),
		pages:            pages,
		limiter:          opts.AuthLimiter,
		cors:             middleware.NewCORSMiddleware(opts.CORSAllowedOrigins),
		adminURL:         opts.AdminURL,
		sessionTTL:       opts.SessionTTL,
		maxUploadBytes:   opts.MaxUploadBytes,
		bootstrapTimeout: opts.BootstrapTimeout,
	}
	if s.limiter != nil {
		s.limiter.Deny = s.denyRateLimited
	}
	return s, nil
}

// Router returns the HTTP handler for all routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(
		middleware.TraceMiddleware,
		middleware.RecoverMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.MetricsMiddleware(serviceName, s.metrics),
	)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.Handle("/login", s.limited(s.handleLogin)).Methods(http.MethodPost)
	r.Handle("/signup", s.limited(s.handleSignup)).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/restaurants", s.handleCreateRestaurant).Methods(http.MethodPost)

	r.Handle("/status", s.cors.Handler(http.HandlerFunc(s.handleStatus))).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) limited(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Handler(h)
}

// request is the per-request session: a fresh controller over a backend
// carrying the stored token.
type request struct {
	ctx     context.Context
	id      string
	backend *trackedBackend
	ctrl    *session.Controller
}

// trackedBackend remembers whether the backend rejected the stored token so
// the registry entry can be dropped.
type trackedBackend struct {
	*backend.Backend
	rejected bool
}

func (b *trackedBackend) Me(ctx context.Context) (*model.User, error) {
	u, err := b.Backend.Me(ctx)
	if manifest.IsUnauthorized(err) {
		b.rejected = true
	}
	return u, err
}

// session resolves the browser session, issuing a new cookie when the
// request carries none or a forged one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (ctx context.Context, id, token string) {
	id, ok := s.cookies.read(r)
	if !ok {
		id = uuid.NewString()
		s.cookies.write(w, id)
	}
	ctx = logging.WithSessionID(r.Context(), id)
	if !ok {
		return ctx, id, ""
	}

	token, err := s.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, sessionstore.ErrNotFound) {
			s.logger.WithContext(ctx).WithError(err).Warn("session store lookup failed")
		}
		return ctx, id, ""
	}
	return ctx, id, token
}

// bootstrap builds the request's controller and loads the current user. An
// error means the lookup did not finish and the session is still
// initializing.
func (s *Server) bootstrap(ctx context.Context, id, token string) (*request, error) {
	be := &trackedBackend{Backend: backend.New(s.client.WithToken(token), s.names)}
	ctrl := session.NewController(be, s.logger, session.WithTransitionHook(func(from, to session.State) {
		s.metrics.RecordTransition(from.String(), to.String())
	}))

	bctx, cancel := context.WithTimeout(ctx, s.bootstrapTimeout)
	err := ctrl.Bootstrap(bctx)
	cancel()

	req := &request{ctx: ctx, id: id, backend: be, ctrl: ctrl}
	if err != nil {
		return req, err
	}
	if token != "" && be.rejected {
		s.forget(ctx, id)
	}
	return req, nil
}

// persist stores the freshly issued token under a new session ID and moves
// the cookie to it.
func (s *Server) persist(w http.ResponseWriter, req *request) error {
	token := req.backend.Token()
	newID := uuid.NewString()
	if err := s.store.Put(req.ctx, newID, token, sessionstore.TokenTTL(token, s.sessionTTL)); err != nil {
		return err
	}
	s.forget(req.ctx, req.id)
	s.cookies.write(w, newID)
	return nil
}

func (s *Server) forget(ctx context.Context, id string) {
	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("failed to delete session")
	}
}

func (s *Server) status() probe.Status {
	if s.prober == nil {
		return probe.Status{Label: probe.LabelTesting}
	}
	return s.prober.Status()
}
