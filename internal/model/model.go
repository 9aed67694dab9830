// Package model defines the records exchanged with the Manifest backend.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// ID is a record identifier. The backend may send it as a JSON number or a
// string; both decode to the same textual form.
type ID string

// UnmarshalJSON accepts numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool { return id == "" }

// User is an authenticated account.
type User struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Image maps size names such as "thumbnail" and "large" to URLs.
type Image map[string]string

// Thumbnail returns the thumbnail URL or "".
func (img Image) Thumbnail() string {
	return img["thumbnail"]
}

// Restaurant is a restaurant record with its owner embedded on read.
type Restaurant struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Cuisine     string    `json:"cuisine"`
	HeroImage   Image     `json:"heroImage,omitempty"`
	Owner       *User     `json:"owner,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// OwnerName returns the owner's name or "N/A".
func (r Restaurant) OwnerName() string {
	if r.Owner == nil || r.Owner.Name == "" {
		return "N/A"
	}
	return r.Owner.Name
}

// RestaurantInput holds the dashboard form fields.
type RestaurantInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Address     string `json:"address"`
	Cuisine     string `json:"cuisine"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (in RestaurantInput) Trimmed() RestaurantInput {
	return RestaurantInput{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Address:     strings.TrimSpace(in.Address),
		Cuisine:     strings.TrimSpace(in.Cuisine),
	}
}

// MissingFields lists the required fields that are blank, in form order.
func (in RestaurantInput) MissingFields() []string {
	t := in.Trimmed()
	var missing []string
	if t.Name == "" {
		missing = append(missing, "name")
	}
	if t.Cuisine == "" {
		missing = append(missing, "cuisine")
	}
	if t.Description == "" {
		missing = append(missing, "description")
	}
	if t.Address == "" {
		missing = append(missing, "address")
	}
	return missing
}

// Upload is an attachment to send with a record.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}
