// Package dashboard keeps the restaurant list and the new-restaurant form of
// one signed-in session in step with the backend.
package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	apperrors "github.com/R3E-Network/foodapp/internal/errors"
	"github.com/R3E-Network/foodapp/internal/logging"
	"github.com/R3E-Network/foodapp/internal/model"
)

// EmptyMessage is shown when the backend has no restaurants.
const EmptyMessage = "No restaurants found. Add one above to get started!"

// ErrOperationPending matches errors for calls made while another is in flight.
var ErrOperationPending = &apperrors.ServiceError{Code: apperrors.CodeOperationPending}

// Store is the remote restaurant collection.
type Store interface {
	ListRestaurants(ctx context.Context) ([]model.Restaurant, error)
	CreateRestaurant(ctx context.Context, in model.RestaurantInput, ownerID model.ID, image *model.Upload) (*model.Restaurant, error)
}

// ValidationError lists required fields that were blank.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Unwrap exposes the service error class.
func (e *ValidationError) Unwrap() error {
	return apperrors.ValidationFailed(e.Error()).WithDetails("fields", e.Missing)
}

// Board is the dashboard state: the fetched list, the form and one alert.
type Board struct {
	store  Store
	logger *logging.Logger

	pending atomic.Bool

	mu          sync.RWMutex
	restaurants []model.Restaurant
	loading     bool
	fetchErr    error
	form        model.RestaurantInput
	alert       string
}

// New creates an empty board. Call Refresh to load the list.
func New(store Store, logger *logging.Logger) *Board {
	return &Board{store: store, logger: logger, loading: true}
}

// Refresh re-fetches every restaurant with its owner, newest first. A failed
// fetch is logged and leaves the list empty; it is not raised as an alert.
func (b *Board) Refresh(ctx context.Context) {
	b.mu.Lock()
	b.loading = true
	b.mu.Unlock()

	var fetchErr error
	list, err := b.store.ListRestaurants(ctx)
	if err != nil {
		fetchErr = apperrors.FetchFailed("failed to load restaurants", err)
		b.logger.WithContext(ctx).WithError(err).Error("Failed to load restaurants")
		list = nil
	}

	b.mu.Lock()
	b.restaurants = list
	b.fetchErr = fetchErr
	b.loading = false
	b.mu.Unlock()
}

// Create validates the form, stores the restaurant owned by ownerID with the
// optional image, then clears the form and refreshes the list. Invalid input
// is rejected before any network call. On a backend failure the form is kept
// and the server's message becomes the alert.
func (b *Board) Create(ctx context.Context, in model.RestaurantInput, ownerID model.ID, image *model.Upload) error {
	if !b.pending.CompareAndSwap(false, true) {
		return apperrors.OperationPending()
	}
	defer b.pending.Store(false)

	b.mu.Lock()
	b.form = in
	b.mu.Unlock()

	if missing := in.MissingFields(); len(missing) > 0 {
		err := &ValidationError{Missing: missing}
		b.setAlert("Error: " + err.Error())
		return err
	}
	if ownerID.IsZero() {
		return apperrors.Unauthorized("an owner is required to create a restaurant")
	}

	if _, err := b.store.CreateRestaurant(ctx, in.Trimmed(), ownerID, image); err != nil {
		b.logger.WithContext(ctx).WithError(err).Error("Failed to create restaurant")
		b.setAlert("Error: " + serverMessage(err))
		return apperrors.CreateFailed(serverMessage(err), err)
	}

	b.mu.Lock()
	b.form = model.RestaurantInput{}
	b.mu.Unlock()

	b.Refresh(ctx)
	return nil
}

// Restaurants returns the last fetched list.
func (b *Board) Restaurants() []model.Restaurant {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.Restaurant, len(b.restaurants))
	copy(out, b.restaurants)
	return out
}

// Loading reports whether a fetch has not completed yet.
func (b *Board) Loading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loading
}

// Empty reports whether the last fetch completed with no records.
func (b *Board) Empty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.loading && len(b.restaurants) == 0
}

// Failed reports whether the last fetch failed.
func (b *Board) Failed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fetchErr != nil
}

// Err returns the last fetch failure, or nil.
func (b *Board) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fetchErr
}

// Form returns the current form values.
func (b *Board) Form() model.RestaurantInput {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.form
}

// TakeAlert returns the pending alert and clears it.
func (b *Board) TakeAlert() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.alert
	b.alert = ""
	return a
}

func (b *Board) setAlert(msg string) {
	b.mu.Lock()
	b.alert = msg
	b.mu.Unlock()
}

// serverMessage prefers the backend's own message over the wrapped chain.
func serverMessage(err error) string {
	var m interface{ ServerMessage() string }
	if errors.As(err, &m) {
		return m.ServerMessage()
	}
	return err.Error()
}
