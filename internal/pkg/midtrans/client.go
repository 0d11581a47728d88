package midtrans

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sidrive/sidrive-api/internal/pkg/metrics"
)

// DefaultEnabledPayments are the channels offered on the Snap page.
var DefaultEnabledPayments = []string{
	"gopay", "shopeepay", "other_qris", "bca_va", "bni_va", "bri_va", "permata_va",
}

// Config holds gateway API configuration
type Config struct {
	ServerKey       string
	SnapURL         string // e.g. https://app.sandbox.midtrans.com/snap/v1
	APIURL          string // e.g. https://api.sandbox.midtrans.com/v2
	IrisURL         string // e.g. https://app.sandbox.midtrans.com/iris/api/v1
	FinishURL       string
	EnabledPayments []string
	Timeout         time.Duration
}

// Client talks to the Snap, Core (status) and Iris (payout) APIs.
type Client struct {
	httpClient *http.Client
	config     Config
}

// APIError is returned for non-2xx gateway responses.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("midtrans api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("midtrans api error %d: %s", e.StatusCode, e.Body)
}

var (
	ErrNotConfigured  = errors.New("midtrans client is not configured")
	ErrInvalidRequest = errors.New("invalid midtrans request")
)

// IsRejection reports whether err means the gateway refused the request
// without acting on it. Transport failures, timeouts and 5xx responses are
// not rejections: the gateway may still have executed the request.
func IsRejection(err error) bool {
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrInvalidRequest) {
		return true
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusRequestTimeout
}

// NewClient creates a gateway client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.EnabledPayments) == 0 {
		cfg.EnabledPayments = DefaultEnabledPayments
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
	}
}

func (c *Client) authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.config.ServerKey+":"))
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, operation, method, url string, in, out interface{}) error {
	if c == nil || c.httpClient == nil || strings.TrimSpace(c.config.ServerKey) == "" {
		return ErrNotConfigured
	}

	start := time.Now()
	err := c.roundTrip(ctx, method, url, in, out)
	metrics.GatewayCall(operation, start, err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, url string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode midtrans request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("midtrans api call failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("midtrans api call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("midtrans api call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		var msg struct {
			ErrorMessage  string   `json:"error_message"`
			StatusMessage string   `json:"status_message"`
			ErrorMessages []string `json:"error_messages"`
		}
		if json.Unmarshal(raw, &msg) == nil {
			switch {
			case msg.ErrorMessage != "":
				apiErr.Message = msg.ErrorMessage
			case len(msg.ErrorMessages) > 0:
				apiErr.Message = strings.Join(msg.ErrorMessages, "; ")
			default:
				apiErr.Message = msg.StatusMessage
			}
		}
		return apiErr
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "json") && !json.Valid(raw) {
		return fmt.Errorf("midtrans non-JSON response: %s", truncateBody(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse midtrans response: %w", err)
	}
	return nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
