package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"playsync/core"
)

const (
	achievementPrefix = "achievement."
	leaderboardPrefix = "leaderboard."
)

func achievementKey(id core.AchievementID, field string) string {
	return achievementPrefix + string(id) + "." + field
}

func scoreKey(board core.LeaderboardID, user core.UserID) string {
	return leaderboardPrefix + string(board) + "." + string(user)
}

// LoadAchievements reads every achievement persisted in store.
func LoadAchievements(ctx context.Context, store LocalStore) (core.AchievementState, error) {
	keys, err := store.Keys(ctx, achievementPrefix)
	if err != nil {
		return nil, fmt.Errorf("list achievement keys: %w", err)
	}
	state := core.AchievementState{}
	for _, key := range keys {
		rest := strings.TrimPrefix(key, achievementPrefix)
		dot := strings.LastIndexByte(rest, '.')
		if dot <= 0 {
			continue
		}
		id, field := core.AchievementID(rest[:dot]), rest[dot+1:]
		if field != "current" && field != "target" {
			continue
		}
		v, err := loadInt(ctx, store, key)
		if err != nil {
			return nil, err
		}
		p := state[id]
		if field == "current" {
			p.Current = v
		} else {
			p.Target = v
		}
		state[id] = p
	}
	return state, nil
}

// SaveAchievements persists every entry of state.
func SaveAchievements(ctx context.Context, store LocalStore, state core.AchievementState) error {
	for id, p := range state {
		if err := SaveAchievement(ctx, store, id, p); err != nil {
			return err
		}
	}
	return nil
}

// SaveAchievement persists a single achievement.
func SaveAchievement(ctx context.Context, store LocalStore, id core.AchievementID, p core.Progress) error {
	if err := store.Save(ctx, achievementKey(id, "target"), strconv.FormatInt(p.Target, 10)); err != nil {
		return fmt.Errorf("save %s target: %w", id, err)
	}
	if err := store.Save(ctx, achievementKey(id, "current"), strconv.FormatInt(p.Current, 10)); err != nil {
		return fmt.Errorf("save %s current: %w", id, err)
	}
	return nil
}

// LoadScore returns the locally stored score for user on board.
func LoadScore(ctx context.Context, store LocalStore, board core.LeaderboardID, user core.UserID) (core.Score, bool, error) {
	raw, ok, err := store.Load(ctx, scoreKey(board, user))
	if err != nil || !ok {
		return core.Score{}, false, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return core.Score{}, false, fmt.Errorf("parse score %s: %w", scoreKey(board, user), err)
	}
	return core.Score{User: user, Value: v}, true, nil
}

// LoadScores returns every locally stored score on board.
func LoadScores(ctx context.Context, store LocalStore, board core.LeaderboardID) ([]core.Score, error) {
	prefix := leaderboardPrefix + string(board) + "."
	keys, err := store.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list score keys: %w", err)
	}
	out := make([]core.Score, 0, len(keys))
	for _, key := range keys {
		v, err := loadInt(ctx, store, key)
		if err != nil {
			return nil, err
		}
		out = append(out, core.Score{User: core.UserID(strings.TrimPrefix(key, prefix)), Value: v})
	}
	return out, nil
}

// SaveScore persists the score for its user on board.
func SaveScore(ctx context.Context, store LocalStore, board core.LeaderboardID, s core.Score) error {
	if err := store.Save(ctx, scoreKey(board, s.User), strconv.FormatInt(s.Value, 10)); err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	return nil
}

func loadInt(ctx context.Context, store LocalStore, key string) (int64, error) {
	raw, ok, err := store.Load(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
