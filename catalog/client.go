// Package catalog is the tool gateway to the external menu service. It is
// the sole authority on catalog facts: the dialogue controller never asserts
// price or availability that did not come back from a lookup here.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/room4-2/OpenCanteen/validate"
)

// Item is one menu entry as returned by the catalog service.
type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// LookupResult is the transient outcome of one item lookup. A miss is a
// defined outcome (Found=false), never an error.
type LookupResult struct {
	Found bool
	Item  Item
}

// ErrUnavailable marks gateway transport failures. The controller surfaces
// these as an inability to verify, never as model-invented facts.
var ErrUnavailable = errors.New("catalog service unavailable")

type remoteValidation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

// Client talks to the catalog service over HTTP.
type Client struct {
	baseURL   string
	http      *http.Client
	lookups   singleflight.Group
	validates bool
}

// NewClient builds a gateway client. validates enables the remote field
// validation path for deployments where the service owns the building list.
func NewClient(baseURL string, timeout time.Duration, validates bool) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: timeout},
		validates: validates,
	}
}

// ValidatesRemotely reports whether field validation should go through the
// service instead of the local predicates.
func (c *Client) ValidatesRemotely() bool { return c.validates }

// LookupItem resolves an item name against the catalog. Concurrent lookups
// of the same name are collapsed into one request; the shared request runs
// under its own timeout so one caller's cancellation cannot fail the rest.
func (c *Client) LookupItem(ctx context.Context, name string) (LookupResult, error) {
	if ctx.Err() != nil {
		return LookupResult{}, ctx.Err()
	}
	key := strings.ToLower(strings.TrimSpace(name))
	v, err, _ := c.lookups.Do(key, func() (interface{}, error) {
		reqCtx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
		defer cancel()
		return c.fetchItem(reqCtx, name)
	})
	if err != nil {
		return LookupResult{}, err
	}
	return v.(LookupResult), nil
}

func (c *Client) fetchItem(ctx context.Context, name string) (LookupResult, error) {
	endpoint := fmt.Sprintf("%s/menu/item?name=%s", c.baseURL, url.QueryEscape(name))
	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return LookupResult{}, err
	}
	switch status {
	case http.StatusOK:
		var item Item
		if err := sonic.Unmarshal(body, &item); err != nil {
			return LookupResult{}, errors.Wrap(err, "decode menu item")
		}
		return LookupResult{Found: true, Item: item}, nil
	case http.StatusNotFound:
		return LookupResult{Found: false}, nil
	default:
		return LookupResult{}, errors.Wrapf(ErrUnavailable, "menu item lookup: status %d", status)
	}
}

// FullMenu fetches today's flattened menu.
func (c *Client) FullMenu(ctx context.Context) ([]Item, error) {
	body, status, err := c.get(ctx, c.baseURL+"/menu/today")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrUnavailable, "full menu: status %d", status)
	}
	var items []Item
	if err := sonic.Unmarshal(body, &items); err != nil {
		return nil, errors.Wrap(err, "decode menu")
	}
	return items, nil
}

// ValidateField asks the catalog service to validate a field value. Used
// only when the service is authoritative for the field's value set.
func (c *Client) ValidateField(ctx context.Context, field, value string) (validate.Result, error) {
	endpoint := fmt.Sprintf("%s/validate?field=%s&value=%s",
		c.baseURL, url.QueryEscape(field), url.QueryEscape(value))
	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return validate.Result{}, err
	}
	if status != http.StatusOK {
		return validate.Result{}, errors.Wrapf(ErrUnavailable, "validate %s: status %d", field, status)
	}
	var rv remoteValidation
	if err := sonic.Unmarshal(body, &rv); err != nil {
		return validate.Result{}, errors.Wrap(err, "decode validation result")
	}
	return validate.Result{Valid: rv.Valid, Reason: rv.Reason}, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "build catalog request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, errors.Wrap(ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(ErrUnavailable, err.Error())
	}
	return body, resp.StatusCode, nil
}
