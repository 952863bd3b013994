// Package gateway talks to the remote project/task server. It performs the
// item CRUD calls for tree-scoped collections and the delegation calls, and
// reports every failure as a *model.TransportError.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taxilian/tplan/internal/model"
)

// DefaultTimeout bounds a single request when Options.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL    string // e.g. https://plan.example.com/api
	Token      string // bearer token, optional
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client is the HTTP implementation of the item and permission gateways.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *log.Logger
}

// New creates a client for the server at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("server base URL is not configured")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("server base URL must be http(s): %s", base)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{baseURL: base, token: opts.Token, http: hc, logger: logger}, nil
}

// List fetches the items of the collection at locator.
func (c *Client) List(ctx context.Context, locator string) ([]model.Item, error) {
	var items []model.Item
	if err := c.do(ctx, "list items", http.MethodGet, locator, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

// Create persists d and returns the stored item with its assigned id.
func (c *Client) Create(ctx context.Context, d *model.Draft) (model.Item, error) {
	var it model.Item
	if err := c.do(ctx, "create item", http.MethodPost, "/items", d, &it); err != nil {
		return model.Item{}, err
	}
	return it, nil
}

// Update sends a partial update carrying only the fields set in patch.
func (c *Client) Update(ctx context.Context, id model.ItemID, patch model.Patch) error {
	return c.do(ctx, "update item", http.MethodPatch, itemPath(id), patch, nil)
}

// Delete removes the item.
func (c *Client) Delete(ctx context.Context, id model.ItemID) error {
	return c.do(ctx, "delete item", http.MethodDelete, itemPath(id), nil, nil)
}

// Managers lists the delegated managers of an item.
func (c *Client) Managers(ctx context.Context, itemID model.ItemID) ([]model.Manager, error) {
	var managers []model.Manager
	if err := c.do(ctx, "list managers", http.MethodGet, itemPath(itemID)+"/managers", nil, &managers); err != nil {
		return nil, err
	}
	if managers == nil {
		managers = []model.Manager{}
	}
	return managers, nil
}

// UpdatePermission changes some capability flags of one delegation.
func (c *Client) UpdatePermission(ctx context.Context, permissionID int64, patch model.CapabilityPatch) error {
	return c.do(ctx, "update permission", http.MethodPatch, fmt.Sprintf("/permissions/%d", permissionID), patch, nil)
}

// RemoveManager revokes userID's delegation on an item.
func (c *Client) RemoveManager(ctx context.Context, itemID model.ItemID, userID int64) error {
	body := map[string]int64{"userId": userID}
	return c.do(ctx, "remove manager", http.MethodPost, itemPath(itemID)+"/remove-manager", body, nil)
}

// Invite creates an invitation record for inv.Username.
func (c *Client) Invite(ctx context.Context, inv model.Invitation) error {
	return c.do(ctx, "invite manager", http.MethodPost, "/invitations", inv, nil)
}

func itemPath(id model.ItemID) string {
	return fmt.Sprintf("/items/%d", id)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &model.TransportError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &model.TransportError{Op: op, Err: err}
	}
	reqID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("[gateway] warning: %s %s (%s): %v", method, path, reqID, err)
		return &model.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(resp)
		c.logger.Printf("[gateway] warning: %s %s (%s): HTTP %d: %s", method, path, reqID, resp.StatusCode, msg)
		return &model.TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(msg)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a failed response, falling
// back to the status text.
func errorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && len(text) < 200 {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
