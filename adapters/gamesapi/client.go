package gamesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"playsync/core"
	"playsync/engine"
)

// Option configures the Client.
type Option func(*Client)

// Client talks to a games-services REST API. Every call runs on a
// background goroutine and completes a core.Future.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
	timeout    time.Duration
	disabled   bool
	logger     *slog.Logger
}

// NewClient constructs a client targeting baseURL (e.g. https://games.example.com/v1).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
		logger:     slog.Default(),
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

// WithAuthToken adds an Authorization: Bearer token header to all requests.
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

// WithHeader sets an arbitrary header.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithDisabled makes Available report false so no request is ever issued.
func WithDisabled(disabled bool) Option {
	return func(c *Client) {
		c.disabled = disabled
	}
}

// WithLogger sets the logger used for dropped response entries.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Available reports whether the games service can be used.
func (c *Client) Available() bool {
	return c != nil && !c.disabled && c.baseURL != ""
}

func (c *Client) CheckAuthenticated(ctx context.Context) *core.Future[core.SessionState] {
	return core.Go(func() (core.SessionState, error) {
		var body playerResponse
		err := c.do(ctx, http.MethodGet, "/players/me", nil, &body)
		if errors.Is(err, core.ErrNotAuthenticated) {
			return core.SessionState{CheckedAt: time.Now().UTC()}, nil
		}
		if err != nil {
			return core.SessionState{}, err
		}
		st := core.SessionState{Authenticated: body.Authenticated, CheckedAt: time.Now().UTC()}
		if body.Authenticated {
			st.PlayerID = core.UserID(body.PlayerID)
		}
		return st, nil
	})
}

func (c *Client) FetchAchievements(ctx context.Context) *core.Future[core.AchievementState] {
	return core.Go(func() (core.AchievementState, error) {
		var body achievementsResponse
		if err := c.do(ctx, http.MethodGet, "/achievements", nil, &body); err != nil {
			return nil, err
		}
		state := make(core.AchievementState, len(body.Items))
		for _, it := range body.Items {
			id := core.AchievementID(it.ID)
			if err := core.ValidateAchievementID(id); err != nil {
				c.logger.Debug("skipping remote achievement", "achievement", it.ID, "error", err)
				continue
			}
			state[id] = core.Progress{Current: it.CurrentSteps, Target: it.TotalSteps}
		}
		return state, nil
	})
}

func (c *Client) FetchScore(ctx context.Context, board core.LeaderboardID, user core.UserID) *core.Future[core.Score] {
	return core.Go(func() (core.Score, error) {
		var body scoreBody
		p := fmt.Sprintf("/leaderboards/%s/scores/%s", url.PathEscape(string(board)), url.PathEscape(string(user)))
		if err := c.do(ctx, http.MethodGet, p, nil, &body); err != nil {
			return core.Score{}, err
		}
		if body.UserID == "" {
			body.UserID = string(user)
		}
		return core.Score{User: core.UserID(body.UserID), Value: body.Value}, nil
	})
}

func (c *Client) SubmitScore(ctx context.Context, board core.LeaderboardID, score core.Score) *core.Future[struct{}] {
	return core.Go(func() (struct{}, error) {
		var body okResponse
		p := fmt.Sprintf("/leaderboards/%s/scores", url.PathEscape(string(board)))
		in := scoreBody{UserID: string(score.User), Value: score.Value}
		if err := c.do(ctx, http.MethodPost, p, in, &body); err != nil {
			return struct{}{}, err
		}
		if body.Err != nil && *body.Err != "" {
			return struct{}{}, errors.New(*body.Err)
		}
		if !body.OK {
			return struct{}{}, errors.New("score not accepted")
		}
		return struct{}{}, nil
	})
}

func (c *Client) IncrementAchievement(ctx context.Context, id core.AchievementID, steps int64) *core.Future[core.Progress] {
	return core.Go(func() (core.Progress, error) {
		var body incrementResponse
		p := fmt.Sprintf("/achievements/%s/increment?steps=%s", url.PathEscape(string(id)), strconv.FormatInt(steps, 10))
		if err := c.do(ctx, http.MethodPost, p, nil, &body); err != nil {
			return core.Progress{}, err
		}
		return core.Progress{Current: body.CurrentSteps, Target: body.TotalSteps}, nil
	})
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.Available() {
		return core.ErrUnavailable
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return err
	}
	c.applyHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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

var (
	_ engine.RemoteStore  = (*Client)(nil)
	_ engine.Availability = (*Client)(nil)
)
