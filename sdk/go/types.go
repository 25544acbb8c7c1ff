package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"playsync/core"
	"playsync/leaderboard"
)

// ProgressResult is the response to an achievement progress update.
type ProgressResult struct {
	Changed     bool             `json:"changed"`
	Achievement core.Achievement `json:"achievement"`
	Unlocked    bool             `json:"unlocked"`
}

// RankedScore is a best local score with its position on the board.
type RankedScore struct {
	core.Score
	Rank int `json:"rank"`
}

// LeaderboardView is the locally cached leaderboard.
type LeaderboardView struct {
	Leaderboard core.LeaderboardID  `json:"leaderboard"`
	Order       string              `json:"order"`
	Entries     []leaderboard.Entry `json:"entries"`
}

// SignInResult reports the session after a sign-in attempt.
type SignInResult struct {
	Authenticated bool        `json:"authenticated"`
	PlayerID      core.UserID `json:"player_id"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is a non-2xx response from the sidecar.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return core.ErrNotFound
	}
	return nil
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
