package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client is an HTTP client for the travel planner API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	// Timeout bounds each call when the context carries no deadline.
	Timeout time.Duration
}

// NewClient creates a client for baseURL authenticating with apiKey.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{},
		Timeout: timeout,
	}
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, "health", http.MethodGet, "/healthz", nil, nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

type createRequest struct {
	LocalID string          `json:"local_id"`
	Payload json.RawMessage `json:"payload"`
}

type updateRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// Create creates an entity. The local id doubles as idempotency key.
func (c *Client) Create(ctx context.Context, ref Ref, localID string, payload json.RawMessage) (Entity, error) {
	var e Entity
	hdr := http.Header{"Idempotency-Key": []string{localID}}
	err := c.doRequest(ctx, "create "+ref.String(), http.MethodPost, collectionPath(ref), hdr,
		createRequest{LocalID: localID, Payload: payload}, &e, true)
	return e, err
}

// Update replaces the payload of an entity.
func (c *Client) Update(ctx context.Context, ref Ref, id string, payload json.RawMessage) (Entity, error) {
	var e Entity
	err := c.doRequest(ctx, "update "+ref.String(), http.MethodPatch, collectionPath(ref)+"/"+id, nil,
		updateRequest{Payload: payload}, &e, true)
	return e, err
}

// Delete deletes an entity.
func (c *Client) Delete(ctx context.Context, ref Ref, id string) error {
	return c.doRequest(ctx, "delete "+ref.String(), http.MethodDelete, collectionPath(ref)+"/"+id, nil, nil, nil, true)
}

// List returns every entity of the collection.
func (c *Client) List(ctx context.Context, ref Ref) ([]Entity, error) {
	var out []Entity
	if err := c.doRequest(ctx, "list "+ref.String(), http.MethodGet, collectionPath(ref), nil, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func collectionPath(ref Ref) string {
	if ref.ParentID == "" {
		return "/v1/" + string(ref.Collection)
	}
	return fmt.Sprintf("/v1/plans/%s/%s", ref.ParentID, ref.Collection)
}

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) doRequest(ctx context.Context, op, method, path string, hdr http.Header, body, result any, auth bool) error {
	if _, ok := ctx.Deadline(); !ok && c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(op, err)
	}

	if resp.StatusCode >= 400 {
		return statusError(op, resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: "malformed response", Err: err}
		}
	}
	return nil
}

func transportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func statusError(op string, status int, body []byte) error {
	e := &Error{Op: op, Status: status}
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
		e.Message = apiErr.Message
		if e.Message == "" {
			e.Message = apiErr.Code
		}
	} else {
		e.Message = string(bytes.TrimSpace(body))
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusNotFound || status == http.StatusGone:
		e.Kind = KindNotFound
	case status == http.StatusRequestTimeout:
		e.Kind = KindTimeout
	case status == http.StatusTooManyRequests || status >= 500:
		e.Kind = KindServer
	default:
		e.Kind = KindValidation
	}
	return e
}
