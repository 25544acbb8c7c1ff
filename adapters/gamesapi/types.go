package gamesapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"playsync/core"
)

type playerResponse struct {
	Authenticated bool   `json:"authenticated"`
	PlayerID      string `json:"player_id"`
}

type achievementItem struct {
	ID           string `json:"id"`
	CurrentSteps int64  `json:"current_steps"`
	TotalSteps   int64  `json:"total_steps"`
}

type achievementsResponse struct {
	Items []achievementItem `json:"items"`
}

type incrementResponse struct {
	CurrentSteps int64 `json:"current_steps"`
	TotalSteps   int64 `json:"total_steps,omitempty"`
}

type scoreBody struct {
	UserID string `json:"user_id"`
	Value  int64  `json:"value"`
}

type okResponse struct {
	OK  bool    `json:"ok"`
	Err *string `json:"err"`
}

// StatusError is returned for non-2xx responses. It unwraps to the core
// sentinel matching the status where one exists.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return core.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.ErrNotAuthenticated
	case http.StatusServiceUnavailable:
		return core.ErrUnavailable
	}
	return nil
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ErrNotConfigured is returned when the client has no base URL.
var ErrNotConfigured = errors.New("games service base URL is not configured")
