// Package session owns the signed-in user and the screen selector, and drives
// login, signup and logout against the backend.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	apperrors "github.com/R3E-Network/foodapp/internal/errors"
	"github.com/R3E-Network/foodapp/internal/logging"
	"github.com/R3E-Network/foodapp/internal/model"
)

// User-visible alerts.
const (
	AlertLoginFailed  = "Login failed. Please check your credentials."
	AlertSignupFailed = "Signup failed. The email might already be in use."
)

var (
	// ErrInvalidTransition matches errors for actions the current state forbids.
	ErrInvalidTransition = &apperrors.ServiceError{Code: apperrors.CodeInvalidTransition}
	// ErrOperationPending matches errors for calls made while another is in flight.
	ErrOperationPending = &apperrors.ServiceError{Code: apperrors.CodeOperationPending}
)

// Backend is the remote side of a session.
type Backend interface {
	// Me returns the authenticated user, or nil when there is none.
	Me(ctx context.Context) (*model.User, error)
	Login(ctx context.Context, email, password string) error
	Signup(ctx context.Context, name, email, password string) error
	Logout(ctx context.Context) error
}

// TransitionHook observes state changes.
type TransitionHook func(from, to State)

// Option configures a Controller.
type Option func(*Controller)

// WithTransitionHook registers a hook called after every state change.
func WithTransitionHook(h TransitionHook) Option {
	return func(c *Controller) { c.hooks = append(c.hooks, h) }
}

// Snapshot is a consistent read of the controller for rendering.
type Snapshot struct {
	State State
	View  View
	User  *model.User
}

// Controller is the state of one session. Mutations go through Bootstrap,
// Login, Signup and Logout only.
type Controller struct {
	backend Backend
	logger  *logging.Logger
	hooks   []TransitionHook

	pending atomic.Bool

	mu    sync.RWMutex
	state State
	user  *model.User
	alert string
}

// NewController returns a controller in StateInitializing.
func NewController(backend Backend, logger *logging.Logger, opts ...Option) *Controller {
	c := &Controller{backend: backend, logger: logger, state: StateInitializing}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// View returns the screen for the current state.
func (c *Controller) View() View {
	return viewFor(c.State())
}

// User returns the signed-in user, or nil.
func (c *Controller) User() *model.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Snapshot returns state, view and user together.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{State: c.state, View: viewFor(c.state), User: c.user}
}

// TakeAlert returns the pending user-visible alert and clears it.
func (c *Controller) TakeAlert() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.alert
	c.alert = ""
	return a
}

// Bootstrap asks the backend for the current user. A user moves the session
// to authenticated; no user or a failed lookup moves it to unauthenticated.
// If ctx ends first the session stays initializing and ctx's error is
// returned.
func (c *Controller) Bootstrap(ctx context.Context) error {
	if err := c.begin(EventBootstrapUser); err != nil {
		return err
	}
	defer c.end()

	user, err := c.backend.Me(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.WithContext(ctx).WithError(err).Info("session bootstrap found no user")
		c.apply(EventBootstrapNoUser, nil)
		return nil
	}
	if user == nil {
		c.apply(EventBootstrapNoUser, nil)
		return nil
	}
	c.apply(EventBootstrapUser, user)
	return nil
}

// Login authenticates and loads the user. On failure the state is unchanged,
// no token is kept, and a single alert is raised.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	if err := c.begin(EventLoginSucceeded); err != nil {
		return err
	}
	defer c.end()

	user, err := c.login(ctx, email, password)
	if err != nil {
		return c.fail(ctx, AlertLoginFailed, err)
	}
	c.apply(EventLoginSucceeded, user)
	return nil
}

// Signup creates the user and then logs in with the same credentials.
func (c *Controller) Signup(ctx context.Context, name, email, password string) error {
	if err := c.begin(EventSignupSucceeded); err != nil {
		return err
	}
	defer c.end()

	if err := c.backend.Signup(ctx, name, email, password); err != nil {
		return c.fail(ctx, AlertSignupFailed, err)
	}
	user, err := c.login(ctx, email, password)
	if err != nil {
		return c.fail(ctx, AlertLoginFailed, err)
	}
	c.apply(EventSignupSucceeded, user)
	return nil
}

// Logout ends the session. A failed remote logout is logged and otherwise
// ignored; local state is always cleared.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.begin(EventLogout); err != nil {
		return err
	}
	defer c.end()

	if err := c.backend.Logout(ctx); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("remote logout failed; clearing local session anyway")
	}
	c.apply(EventLogout, nil)
	return nil
}

func (c *Controller) login(ctx context.Context, email, password string) (*model.User, error) {
	if err := c.backend.Login(ctx, email, password); err != nil {
		return nil, err
	}
	user, err := c.backend.Me(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("backend returned no current user after login")
	}
	return user, nil
}

// fail drops any half-established credential, records the alert and returns
// an auth error.
func (c *Controller) fail(ctx context.Context, alert string, cause error) error {
	c.logger.WithContext(ctx).WithError(cause).Warn(alert)
	if err := c.backend.Logout(ctx); err != nil {
		c.logger.WithContext(ctx).WithError(err).Debug("dropping credential after failed auth")
	}

	c.mu.Lock()
	c.alert = alert
	c.mu.Unlock()
	return apperrors.AuthFailed(alert, cause)
}

// begin claims the pending flag and then checks that ev is legal from the
// current state. The state cannot move while the flag is held, so the check
// stays valid until end. Both happen before any network call.
func (c *Controller) begin(ev Event) error {
	if !c.pending.CompareAndSwap(false, true) {
		return apperrors.OperationPending()
	}
	from := c.State()
	if _, ok := Next(from, ev); !ok {
		c.pending.Store(false)
		return apperrors.InvalidTransition(from.String(), string(ev))
	}
	return nil
}

func (c *Controller) end() {
	c.pending.Store(false)
}

func (c *Controller) apply(ev Event, user *model.User) {
	c.mu.Lock()
	from := c.state
	to, ok := Next(from, ev)
	if !ok {
		c.mu.Unlock()
		c.logger.WithField("from", from.String()).WithField("event", string(ev)).Error("dropped illegal session transition")
		return
	}
	c.state = to
	c.user = user
	c.mu.Unlock()

	for _, h := range c.hooks {
		h(from, to)
	}
}
