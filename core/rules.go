package core

import "context"

// Rule determines whether a trigger event should emit derived events.
type Rule interface {
	Evaluate(ctx context.Context, state AchievementState, trigger Event) []Event
}

// UnlockRule emits an unlock when a progress event reaches the target
// of an achievement that was not already complete before the event.
type UnlockRule struct{}

func (UnlockRule) Evaluate(_ context.Context, state AchievementState, trigger Event) []Event {
	if trigger.Type != EventAchievementProgressed {
		return nil
	}
	a, ok := state.Achievement(trigger.Achievement)
	if !ok || !a.Unlocked() {
		return nil
	}
	if trigger.Metadata != nil {
		if prev, ok := trigger.Metadata["previous"].(int64); ok && prev >= a.Target {
			return nil
		}
	}
	return []Event{NewAchievementUnlocked(a)}
}
