package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
)

// RemoteClient replays queued actions against the marketplace API.
type RemoteClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewRemoteClient builds a replay client for the given API base URL.
func NewRemoteClient(baseURL, token string, timeout time.Duration) (*RemoteClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base url required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// CreateProduct replays an offline product creation.
func (c *RemoteClient) CreateProduct(ctx context.Context, action models.QueuedAction) error {
	return c.send(ctx, http.MethodPost, "/api/v1/products", action)
}

// UpdateProduct replays an offline product edit. The payload carries the
// product ID assigned when the listing was first created.
func (c *RemoteClient) UpdateProduct(ctx context.Context, action models.QueuedAction) error {
	id, err := extractID(action.Payload)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, "/api/v1/products/"+id, action)
}

// CreateTransaction replays an offline sale record.
func (c *RemoteClient) CreateTransaction(ctx context.Context, action models.QueuedAction) error {
	return c.send(ctx, http.MethodPost, "/api/v1/transactions", action)
}

func (c *RemoteClient) send(ctx context.Context, method, path string, action models.QueuedAction) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(action.Payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build replay request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	// The client_ref minted at enqueue time keys the server-side dedupe, so
	// retries of the same action never double-apply.
	if action.ClientRef != "" {
		req.Header.Set("Idempotency-Key", action.ClientRef)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeTransport, err, fmt.Sprintf("%s %s unreachable", method, path))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("http %d", resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return pkgerrors.New(pkgerrors.CodeTransport, fmt.Sprintf("%s %s failed: %s", method, path, msg))
	}
	return pkgerrors.New(pkgerrors.CodeRemoteRejection, fmt.Sprintf("%s %s rejected: %s", method, path, msg)).
		WithDetails(map[string]any{"status": resp.StatusCode})
}

func extractID(payload json.RawMessage) (string, error) {
	var envelope struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "update payload missing product id")
	}
	return envelope.ID, nil
}
