package manifest

import (
	"context"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
)

// SortOrder is the direction of a sort.
type SortOrder string

const (
	Ascending  SortOrder = "ASC"
	Descending SortOrder = "DESC"
)

// FindOptions narrows a collection listing.
type FindOptions struct {
	// Relations are embedded in each returned record.
	Relations []string
	OrderBy   string
	Order     SortOrder
	Page      int
	PerPage   int
}

func (o FindOptions) query() neturl.Values {
	q := neturl.Values{}
	if len(o.Relations) > 0 {
		q.Set("relations", strings.Join(o.Relations, ","))
	}
	if o.OrderBy != "" {
		q.Set("orderBy", o.OrderBy)
		order := o.Order
		if order == "" {
			order = Ascending
		}
		q.Set("order", string(order))
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(o.PerPage))
	}
	return q
}

// Paginator is one page of a collection listing.
type Paginator[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"currentPage"`
	LastPage    int `json:"lastPage"`
	From        int `json:"from"`
	To          int `json:"to"`
	Total       int `json:"total"`
	PerPage     int `json:"perPage"`
}

// Collection addresses one collection by slug.
type Collection struct {
	client *Client
	slug   string
}

// From returns a handle on the collection named slug.
func (c *Client) From(slug string) *Collection {
	return &Collection{client: c, slug: slug}
}

// Find lists records and decodes the page into out, usually a *Paginator[T].
func (col *Collection) Find(ctx context.Context, opts FindOptions, out interface{}) error {
	return col.client.doJSON(ctx, "find", http.MethodGet, "/collections/"+col.slug, opts.query(), nil, out)
}

// Create inserts a record and decodes the stored record into out.
func (col *Collection) Create(ctx context.Context, payload interface{}, out interface{}) error {
	return col.client.doJSON(ctx, "create", http.MethodPost, "/collections/"+col.slug, nil, payload, out)
}
