package natureremo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DEFAULT_BASE_URL = "https://api.nature.global/1/"
	DEFAULT_TIMEOUT  = 10 * time.Second

	AIRCON_BUTTON_POWER_ON  = ""
	AIRCON_BUTTON_POWER_OFF = "power-off"
	LIGHT_BUTTON_ON         = "on"
	LIGHT_BUTTON_OFF        = "off"
)

var ErrValidationUnknown = errors.New("unknown error validating access token")

type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL == "" {
			return
		}
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		c.baseURL = baseURL
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the request timeout on a copy of the current http client,
// so a client passed to WithHTTPClient is never modified.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			httpClient := *c.httpClient
			httpClient.Timeout = timeout
			c.httpClient = &httpClient
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    DEFAULT_BASE_URL,
		httpClient: &http.Client{Timeout: DEFAULT_TIMEOUT},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchSnapshot reads appliances and devices concurrently. Both requests must
// succeed, otherwise nothing is returned.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	var appliances []Appliance
	var devices []Device

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getList(gctx, "appliances", &appliances)
	})
	g.Go(func() error {
		return c.getList(gctx, "devices", &devices)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Appliances: make(map[string]Appliance, len(appliances)),
		Devices:    make(map[string]Device, len(devices)),
		FetchedAt:  time.Now(),
	}
	for i, a := range appliances {
		if a.Id == "" {
			return nil, &DataShapeError{Field: fmt.Sprintf("appliances[%d].id", i)}
		}
		snap.Appliances[a.Id] = a
	}
	for i, d := range devices {
		if d.Id == "" {
			return nil, &DataShapeError{Field: fmt.Sprintf("devices[%d].id", i)}
		}
		snap.Devices[d.Id] = d
	}
	c.logger.Debug("natureremo: snapshot fetched", zap.Int("appliances", len(snap.Appliances)), zap.Int("devices", len(snap.Devices)))
	return snap, nil
}

// SendCommand posts a form encoded body to path and returns the decoded reply.
func (c *Client) SendCommand(ctx context.Context, path string, form url.Values) (map[string]any, error) {
	if form == nil {
		form = url.Values{}
	}
	c.logger.Debug("natureremo: POST", zap.String("path", path), zap.String("form", form.Encode()))
	body, err := c.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}
	result := map[string]any{}
	if len(bytes.TrimSpace(body)) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &DataShapeError{Field: path, Cause: err}
	}
	return result, nil
}

func (c *Client) SetAirconPower(ctx context.Context, applianceId string, on bool) error {
	button := AIRCON_BUTTON_POWER_OFF
	if on {
		button = AIRCON_BUTTON_POWER_ON
	}
	_, err := c.SendCommand(ctx, fmt.Sprintf("appliances/%s/aircon_settings", url.PathEscape(applianceId)), url.Values{"button": {button}})
	return err
}

func (c *Client) SetLightPower(ctx context.Context, applianceId string, on bool) error {
	button := LIGHT_BUTTON_OFF
	if on {
		button = LIGHT_BUTTON_ON
	}
	_, err := c.SendCommand(ctx, fmt.Sprintf("appliances/%s/light", url.PathEscape(applianceId)), url.Values{"button": {button}})
	return err
}

// ValidateToken runs one fetch. Rejected credentials yield ErrInvalidAuth,
// any other failure ErrValidationUnknown.
func (c *Client) ValidateToken(ctx context.Context) error {
	_, err := c.FetchSnapshot(ctx)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		return fmt.Errorf("%w: %w", ErrInvalidAuth, err)
	}
	return fmt.Errorf("%w: %w", ErrValidationUnknown, err)
}

func (c *Client) getList(ctx context.Context, path string, target any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return &DataShapeError{Field: path}
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return &DataShapeError{Field: path, Cause: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+strings.TrimPrefix(path, "/"), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("natureremo: unexpected status", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}
