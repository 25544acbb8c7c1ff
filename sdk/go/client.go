package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"playsync/core"
	"playsync/engine"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the playsync sidecar HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://127.0.0.1:8787/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// Progress advances achievement id by steps.
func (c *Client) Progress(ctx context.Context, id string, steps int64) (ProgressResult, error) {
	q := url.Values{}
	q.Set("steps", strconv.FormatInt(steps, 10))
	var out ProgressResult
	err := c.do(ctx, http.MethodPost, "/achievements/"+url.PathEscape(id)+"/progress", q, &out)
	return out, err
}

// Achievements lists local achievement progress.
func (c *Client) Achievements(ctx context.Context) ([]core.Achievement, error) {
	var body struct {
		Items []core.Achievement `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/achievements", nil, &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// Push sends unsent achievement progress to the games service and returns
// how many achievements were incremented.
func (c *Client) Push(ctx context.Context) (int, error) {
	var body struct {
		Pushed int `json:"pushed"`
	}
	err := c.do(ctx, http.MethodPost, "/achievements/push", nil, &body)
	return body.Pushed, err
}

// PostScore records value for user and returns the user's best score.
func (c *Client) PostScore(ctx context.Context, userID string, value int64) (core.Score, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Score{}, ErrEmptyUserID
	}
	q := url.Values{}
	q.Set("user", userID)
	q.Set("value", strconv.FormatInt(value, 10))
	var body struct {
		OK   bool       `json:"ok"`
		Best core.Score `json:"best"`
	}
	if err := c.do(ctx, http.MethodPost, "/scores", q, &body); err != nil {
		return core.Score{}, err
	}
	if !body.OK {
		return core.Score{}, errors.New("score not recorded")
	}
	return body.Best, nil
}

// Score fetches the best local score for user. It returns an error wrapping
// core.ErrNotFound when none was recorded.
func (c *Client) Score(ctx context.Context, userID string) (RankedScore, error) {
	if strings.TrimSpace(userID) == "" {
		return RankedScore{}, ErrEmptyUserID
	}
	var s RankedScore
	err := c.do(ctx, http.MethodGet, "/scores/"+url.PathEscape(userID), nil, &s)
	return s, err
}

// Leaderboard returns the n best locally known scores.
func (c *Client) Leaderboard(ctx context.Context, n int) (LeaderboardView, error) {
	q := url.Values{}
	if n > 0 {
		q.Set("n", strconv.Itoa(n))
	}
	var v LeaderboardView
	err := c.do(ctx, http.MethodGet, "/leaderboard", q, &v)
	return v, err
}

// Sync runs a reconciliation pass for user (empty means the signed-in player).
func (c *Client) Sync(ctx context.Context, userID string) (engine.SyncReport, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("user", userID)
	}
	var r engine.SyncReport
	err := c.do(ctx, http.MethodPost, "/sync", q, &r)
	return r, err
}

// SignIn asks the sidecar to check authentication with the games service.
func (c *Client) SignIn(ctx context.Context) (SignInResult, error) {
	var r SignInResult
	err := c.do(ctx, http.MethodPost, "/signin", nil, &r)
	return r, err
}

// Health calls /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	// an unhealthy sidecar still reports its checks
	var hs HealthStatus
	if resp.StatusCode == http.StatusServiceUnavailable {
		if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
			return HealthStatus{}, err
		}
		return hs, nil
	}
	if err := decodeJSON(resp, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values,
// optionally restricted to types.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, types ...core.EventType) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		target += "?types=" + url.QueryEscape(strings.Join(names, ","))
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
