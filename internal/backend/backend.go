// Package backend maps FoodApp operations onto Manifest collections.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/R3E-Network/foodapp/internal/manifest"
	"github.com/R3E-Network/foodapp/internal/model"
)

const heroImageProperty = "heroImage"

// Names holds the backend names of the FoodApp entities.
type Names struct {
	// UserEntity is the authenticable entity slug.
	UserEntity string
	// Restaurants is the restaurant collection slug.
	Restaurants string
}

// Backend serves one browser session against the Manifest backend.
type Backend struct {
	client *manifest.Client
	names  Names
}

// New wraps client. The client's token is the session's credential.
func New(client *manifest.Client, names Names) *Backend {
	return &Backend{client: client, names: names}
}

// Token returns the bearer token currently held.
func (b *Backend) Token() string {
	return b.client.Token()
}

// Me returns the authenticated user, or nil when the session holds no token.
func (b *Backend) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := b.client.Me(ctx, b.names.UserEntity, &u); err != nil {
		if errors.Is(err, manifest.ErrNoToken) {
			return nil, nil
		}
		return nil, err
	}
	if u.ID.IsZero() {
		return nil, nil
	}
	return &u, nil
}

// Login authenticates with email and password.
func (b *Backend) Login(ctx context.Context, email, password string) error {
	return b.client.Login(ctx, b.names.UserEntity, email, password)
}

// Signup creates a user.
func (b *Backend) Signup(ctx context.Context, name, email, password string) error {
	return b.client.Signup(ctx, b.names.UserEntity, map[string]interface{}{
		"name":     name,
		"email":    email,
		"password": password,
	})
}

// Logout drops the session credential.
func (b *Backend) Logout(ctx context.Context) error {
	return b.client.Logout(ctx)
}

// ListRestaurants returns every restaurant with its owner, newest first.
func (b *Backend) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	var page manifest.Paginator[model.Restaurant]
	err := b.client.From(b.names.Restaurants).Find(ctx, manifest.FindOptions{
		Relations: []string{"owner"},
		OrderBy:   "createdAt",
		Order:     manifest.Descending,
	}, &page)
	if err != nil {
		return nil, err
	}
	if page.Data == nil {
		return []model.Restaurant{}, nil
	}
	return page.Data, nil
}

// CreateRestaurant uploads the optional image and stores the restaurant
// owned by ownerID.
func (b *Backend) CreateRestaurant(ctx context.Context, in model.RestaurantInput, ownerID model.ID, image *model.Upload) (*model.Restaurant, error) {
	payload := map[string]interface{}{
		"name":        in.Name,
		"description": in.Description,
		"address":     in.Address,
		"cuisine":     in.Cuisine,
		"ownerId":     idValue(ownerID),
	}

	if image != nil {
		sizes, err := b.client.UploadImage(ctx, b.names.Restaurants, heroImageProperty, image.Filename, image.ContentType, image.Body)
		if err != nil {
			return nil, fmt.Errorf("upload hero image: %w", err)
		}
		payload[heroImageProperty] = sizes
	}

	var created model.Restaurant
	if err := b.client.From(b.names.Restaurants).Create(ctx, payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// idValue sends canonical integer IDs as JSON numbers and anything else,
// including "007" or "+5", as a string.
func idValue(id model.ID) interface{} {
	s := id.String()
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return json.Number(s)
	}
	return s
}
