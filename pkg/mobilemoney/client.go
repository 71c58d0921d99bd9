package mobilemoney

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/config"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/signature"
)

const (
	pathInitiate = "/v1/payments"
	pathStatus   = "/v1/payments/status"
	pathRefund   = "/v1/payments/refund"
)

var (
	errBaseURLRequired = errors.New("gateway base url is required")
	errAPIKeyRequired  = errors.New("gateway api key is required")
	errSecretRequired  = errors.New("gateway signing secret is required")
	errClientRequired  = errors.New("gateway client id is required")
	errLoggerRequired  = errors.New("gateway logger is required")
)

// Client exposes mobile-money provider primitives with centralized signing,
// logging, bounded retry, and error mapping. All calls share one timeout and
// one retry budget; timeouts and 5xx responses are retried, 4xx rejections
// are not.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	secret     []byte
	clientID   string

	maxRetries uint64
	backoff    time.Duration

	countryCode string
	trunkPrefix string
	localDigits int

	logger *logger.Logger
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientRequired
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     baseURL,
		apiKey:      apiKey,
		secret:      []byte(secret),
		clientID:    clientID,
		maxRetries:  uint64(maxRetries),
		backoff:     backoff,
		countryCode: cfg.CountryCode,
		trunkPrefix: cfg.TrunkPrefix,
		localDigits: cfg.LocalDigits,
		logger:      logg,
	}

	logg.Info(ctx, "mobile money client initialized")
	return c, nil
}

// SigningSecret returns the shared secret used for callback verification.
func (c *Client) SigningSecret() []byte {
	if c == nil {
		return nil
	}
	return c.secret
}

// NewIdempotencyKey returns a unique key for provider operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "mk"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// InitiatePayment validates and normalizes the request, signs it, and asks
// the provider to charge the subscriber. A partial request is never sent.
func (c *Client) InitiatePayment(ctx context.Context, params PaymentCreateParams) (*PaymentResponse, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(params.PhoneNumber, c.countryCode, c.trunkPrefix, c.localDigits)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"client":          c.clientID,
		"amount":          params.AmountCents,
		"phone_number":    phone,
		"payment_method":  params.Method.String(),
		"order_id":        params.OrderID,
		"idempotency_key": c.ensureIdempotencyKey("payment.create", params.IdempotencyKey),
	}

	c.log(ctx, "request", "initiate_payment", map[string]any{
		"order_id":     params.OrderID,
		"amount":       params.AmountCents,
		"phone_number": phone,
	})

	var resp PaymentResponse
	if err := c.post(ctx, "initiate_payment", pathInitiate, payload, &resp); err != nil {
		c.log(ctx, "error", "initiate_payment", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "initiate_payment", map[string]any{
		"transaction_id": resp.TransactionID,
		"status":         resp.Status,
	})
	return &resp, nil
}

// CheckPaymentStatus fetches the provider-side state of a transaction.
func (c *Client) CheckPaymentStatus(ctx context.Context, transactionID string) (*PaymentResponse, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	payload := map[string]any{
		"client":         c.clientID,
		"transaction_id": transactionID,
	}

	c.log(ctx, "request", "check_status", map[string]any{"transaction_id": transactionID})

	var resp PaymentResponse
	if err := c.post(ctx, "check_status", pathStatus, payload, &resp); err != nil {
		c.log(ctx, "error", "check_status", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "check_status", map[string]any{
		"transaction_id": resp.TransactionID,
		"status":         resp.Status,
	})
	return &resp, nil
}

// ProcessRefund reverses a settled transaction, in full or in part.
func (c *Client) ProcessRefund(ctx context.Context, params RefundParams) (*RefundResponse, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"client":         c.clientID,
		"transaction_id": params.TransactionID,
		"amount":         params.AmountCents,
		"reason":         params.Reason,
	}

	c.log(ctx, "request", "refund", map[string]any{
		"transaction_id": params.TransactionID,
		"amount":         params.AmountCents,
	})

	var resp RefundResponse
	if err := c.post(ctx, "refund", pathRefund, payload, &resp); err != nil {
		c.log(ctx, "error", "refund", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "refund", map[string]any{
		"refund_id": resp.RefundID,
		"status":    resp.Status,
	})
	return &resp, nil
}

// post signs the payload, sends it, and decodes the reply. Transport errors
// and 5xx responses consume the retry budget; 4xx responses surface
// immediately as provider rejections.
func (c *Client) post(ctx context.Context, op, path string, payload map[string]any, out any) error {
	sig, err := signature.Sign(c.secret, payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign gateway payload")
	}
	payload[signature.Field] = sig

	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway payload")
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeTransport, err,
				fmt.Sprintf("gateway %s unreachable", op)))
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeTransport, err,
				fmt.Sprintf("gateway %s response truncated", op)))
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err,
					fmt.Sprintf("gateway %s returned malformed body", op))
			}
			return nil
		case resp.StatusCode >= 500:
			return retry.RetryableError(pkgerrors.New(pkgerrors.CodeTransport,
				fmt.Sprintf("gateway %s failed: %s", op, providerMessage(raw, resp.StatusCode))))
		default:
			return pkgerrors.New(pkgerrors.CodeRemoteRejection,
				fmt.Sprintf("gateway %s rejected: %s", op, providerMessage(raw, resp.StatusCode))).
				WithDetails(map[string]any{"status": resp.StatusCode})
		}
	})
}

func providerMessage(raw []byte, status int) string {
	var perr providerError
	if err := json.Unmarshal(raw, &perr); err == nil && perr.Message != "" {
		return perr.Message
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("http %d", status)
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("gateway %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"phone", "secret", "token", "key"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
