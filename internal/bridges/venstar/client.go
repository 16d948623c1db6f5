package venstar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

const (
	infoPath    = "/query/info"
	controlPath = "/control"

	// maxResponseSize caps how much of a device reply is read.
	maxResponseSize = 64 << 10

	defaultRequestTimeout = 5 * time.Second
)

// Device is the HTTP surface of one Explorer Mini controller.
type Device interface {
	// FetchSnapshot reads GET /query/info.
	FetchSnapshot(ctx context.Context) (thermostat.Snapshot, error)

	// Write sends POST /control.
	Write(ctx context.Context, w thermostat.DeviceWrite) error
}

// Client talks to a controller's local API.
//
// Errors:
//   - thermostat.ErrNetwork: connection failure, timeout or non-2xx status
//   - thermostat.ErrMalformedSnapshot: /query/info reply cannot be decoded
//   - ErrWriteRejected: /control reply reports an error
type Client struct {
	baseURL    string
	httpClient *http.Client
	translator *thermostat.Translator
}

// NewClient creates a client for the controller at baseURL
// (e.g. "http://192.168.1.40"). A zero timeout uses the default of 5s.
func NewClient(baseURL string, timeout time.Duration, translator *thermostat.Translator) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("venstar base URL is required")
	}
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		translator: translator,
	}, nil
}

// BaseURL returns the controller address this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchSnapshot reads and decodes the controller's current state.
func (c *Client) FetchSnapshot(ctx context.Context) (thermostat.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+infoPath, nil)
	if err != nil {
		return thermostat.Snapshot{}, fmt.Errorf("build request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return thermostat.Snapshot{}, err
	}
	return c.translator.ParseSnapshot(body)
}

// Write posts a form-encoded control request.
func (c *Client) Write(ctx context.Context, w thermostat.DeviceWrite) error {
	form := w.Form()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+controlPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	return checkControlReply(body)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", thermostat.ErrNetwork, req.Method, redact(req.URL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", thermostat.ErrNetwork, redact(req.URL), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s: status %d: %s",
			thermostat.ErrNetwork, req.Method, redact(req.URL), resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// controlReply is the body returned by POST /control. Firmware that
// returns an empty or non-JSON body is treated as success.
type controlReply struct {
	Success bool   `json:"success"`
	Error   bool   `json:"error"`
	Reason  string `json:"reason"`
}

func checkControlReply(body []byte) error {
	var reply controlReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil //nolint:nilerr // Non-JSON reply after a 2xx is accepted
	}
	if reply.Error {
		reason := reply.Reason
		if reason == "" {
			reason = "no reason given"
		}
		return fmt.Errorf("%w: %s", ErrWriteRejected, reason)
	}
	return nil
}

// redact drops any userinfo from u before it reaches an error message.
func redact(u *url.URL) string {
	return u.Redacted()
}
