// ABOUTME: Catalog resource operations: list with pagination, get, create, update, delete, search
// ABOUTME: Request bodies never carry the identifier; it travels in the path

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/2389/brewdesk/internal/catalog"
)

// maxPages bounds how many envelope pages List follows.
const maxPages = 1000

// Page is the paginated list envelope.
type Page struct {
	Items      json.RawMessage `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	TotalPages int             `json:"total_pages"`
}

// List fetches the full collection of kind k in server order.
func (c *Client) List(ctx context.Context, k catalog.Kind) ([]catalog.Record, error) {
	base, err := c.kindPath(k)
	if err != nil {
		return nil, err
	}
	path := base + "/"

	var out []catalog.Record
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.perPage))

		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, path, q, nil, &raw); err != nil {
			return nil, err
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			return out, nil
		}

		// Bare arrays are unpaginated.
		if trimmed[0] == '[' {
			recs, err := catalog.DecodeList(k, trimmed)
			if err != nil {
				return nil, c.decodeErr(http.MethodGet, path, err)
			}
			return append(out, recs...), nil
		}

		var env Page
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, c.decodeErr(http.MethodGet, path, err)
		}
		var recs []catalog.Record
		if len(env.Items) > 0 && string(env.Items) != "null" {
			recs, err = catalog.DecodeList(k, env.Items)
			if err != nil {
				return nil, c.decodeErr(http.MethodGet, path, err)
			}
		}
		out = append(out, recs...)
		if len(recs) == 0 || page >= env.TotalPages {
			return out, nil
		}
	}
	return out, nil
}

func (c *Client) decodeErr(method, path string, err error) error {
	c.logger.Error("decoding response failed", "method", method, "path", path, "error", err)
	return &Error{Kind: ErrTransport, Method: method, Path: path, Err: err}
}

// Get fetches one record by id.
func (c *Client) Get(ctx context.Context, k catalog.Kind, id int64) (catalog.Record, error) {
	base, err := c.kindPath(k)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%s/%d", base, id)

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	rec, err := catalog.Decode(k, raw)
	if err != nil {
		return nil, c.decodeErr(http.MethodGet, path, err)
	}
	return rec, nil
}

// Create persists a new record. Any identifier on rec is ignored. The server's
// copy is returned when the response carries one.
func (c *Client) Create(ctx context.Context, rec catalog.Record) (catalog.Record, error) {
	base, err := c.kindPath(rec.Kind())
	if err != nil {
		return nil, err
	}
	return c.send(ctx, http.MethodPost, base+"/", rec)
}

// Update replaces the fields of record id with rec's fields.
func (c *Client) Update(ctx context.Context, id int64, rec catalog.Record) (catalog.Record, error) {
	base, err := c.kindPath(rec.Kind())
	if err != nil {
		return nil, err
	}
	return c.send(ctx, http.MethodPut, fmt.Sprintf("%s/%d", base, id), rec)
}

func (c *Client) send(ctx context.Context, method, path string, rec catalog.Record) (catalog.Record, error) {
	var raw json.RawMessage
	if err := c.do(ctx, method, path, nil, rec.WithID(nil), &raw); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	saved, err := catalog.Decode(rec.Kind(), raw)
	if err != nil {
		return nil, c.decodeErr(method, path, err)
	}
	return saved, nil
}

// Delete removes record id of kind k.
func (c *Client) Delete(ctx context.Context, k catalog.Kind, id int64) error {
	base, err := c.kindPath(k)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", base, id), nil, nil, nil)
}

// Filter narrows a Search. Zero values are omitted from the query.
type Filter struct {
	Name     string
	Category string
	Address  string // outlets only
	MinPrice *float64
	MaxPrice *float64
	Limit    int
}

func (f Filter) query() url.Values {
	q := url.Values{}
	if f.Name != "" {
		q.Set("name", f.Name)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Address != "" {
		q.Set("address", f.Address)
	}
	if f.MinPrice != nil {
		q.Set("min_price", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		q.Set("max_price", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// Search returns the records of kind k matching f.
func (c *Client) Search(ctx context.Context, k catalog.Kind, f Filter) ([]catalog.Record, error) {
	base, err := c.kindPath(k)
	if err != nil {
		return nil, err
	}
	path := base + "/search/"

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, f.query(), nil, &raw); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	recs, err := catalog.DecodeList(k, raw)
	if err != nil {
		return nil, c.decodeErr(http.MethodGet, path, err)
	}
	return recs, nil
}
