package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/relite/pkg/domain"
)

// Client calls the hub JSON API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the hub at base (e.g. http://localhost:8765).
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: httpClient}
}

// Instances lists the instances known to the hub.
func (c *Client) Instances(ctx context.Context) ([]InstanceInfo, error) {
	var out []InstanceInfo
	err := c.do(ctx, http.MethodGet, "/api/instances", nil, &out)
	return out, err
}

// History returns the recorded entries of one instance.
func (c *Client) History(ctx context.Context, id string) ([]Entry, error) {
	var out []Entry
	err := c.do(ctx, http.MethodGet, "/api/instances/"+url.PathEscape(id)+"/history", nil, &out)
	return out, err
}

// Command sends msg to one instance.
func (c *Client) Command(ctx context.Context, id string, msg domain.DevToolMessage) error {
	return c.do(ctx, http.MethodPost, "/api/instances/"+url.PathEscape(id)+"/commands", msg, nil)
}

// Jump moves an instance to the state recorded after actionID.
func (c *Client) Jump(ctx context.Context, id string, actionID int) error {
	return c.Command(ctx, id, domain.DevToolMessage{
		Type:    domain.MessageDispatch,
		Payload: map[string]any{"type": domain.CommandJumpToAction, "actionId": actionID},
	})
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hub request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, apiErr.Error)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", domain.ErrDevToolUnavailable, apiErr.Error)
		}
		return fmt.Errorf("hub returned %s: %s", resp.Status, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
