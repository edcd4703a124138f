package shared

import (
	"context"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// Event Types
// ═══════════════════════════════════════════════════════════════════════════

// EventType identifies the type of domain event.
type EventType string

const (
	// Progress events
	EventXPAwarded     EventType = "progress.xp_awarded"
	EventLevelUp       EventType = "progress.level_up"
	EventPersistFailed EventType = "progress.persist_failed"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"

	// Streak events
	EventStreakContinued EventType = "streak.continued"
	EventStreakBroken    EventType = "streak.broken"
	EventStreakAtRisk    EventType = "streak.at_risk"

	// Identity events
	EventUserLoaded    EventType = "user.loaded"
	EventUserLoggedOut EventType = "user.logged_out"
)

// ═══════════════════════════════════════════════════════════════════════════
// Event Interface
// ═══════════════════════════════════════════════════════════════════════════

// Event is the interface all domain events must implement.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that emitted the event.
	AggregateID() string

	// Payload returns event-specific data for serialization.
	Payload() map[string]any
}

// BaseEvent provides common event fields. Embed it in concrete events.
type BaseEvent struct {
	eventType   EventType
	occurredAt  time.Time
	aggregateID string
}

// NewBaseEvent creates a base event with the current timestamp.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		eventType:   eventType,
		occurredAt:  time.Now().UTC(),
		aggregateID: aggregateID,
	}
}

// EventType returns the event type.
func (e BaseEvent) EventType() EventType { return e.eventType }

// OccurredAt returns the event timestamp.
func (e BaseEvent) OccurredAt() time.Time { return e.occurredAt }

// AggregateID returns the aggregate ID.
func (e BaseEvent) AggregateID() string { return e.aggregateID }

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted whenever a user gains XP from any source.
type XPAwardedEvent struct {
	BaseEvent
	UserID  string
	Amount  int64
	Source  string
	TotalXP int64
}

// NewXPAwardedEvent creates an XP awarded event.
func NewXPAwardedEvent(userID string, amount int64, source string, totalXP int64) *XPAwardedEvent {
	return &XPAwardedEvent{
		BaseEvent: NewBaseEvent(EventXPAwarded, userID),
		UserID:    userID,
		Amount:    amount,
		Source:    source,
		TotalXP:   totalXP,
	}
}

// Payload returns event data.
func (e *XPAwardedEvent) Payload() map[string]any {
	return map[string]any{
		"user_id":  e.UserID,
		"amount":   e.Amount,
		"source":   e.Source,
		"total_xp": e.TotalXP,
	}
}

// LevelUpEvent is emitted once per level crossed when a user levels up.
type LevelUpEvent struct {
	BaseEvent
	UserID   string
	OldLevel int
	NewLevel int
	NewRank  string
}

// NewLevelUpEvent creates a level up event.
func NewLevelUpEvent(userID string, oldLevel, newLevel int, newRank string) *LevelUpEvent {
	return &LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		NewRank:   newRank,
	}
}

// Payload returns event data.
func (e *LevelUpEvent) Payload() map[string]any {
	return map[string]any{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"new_rank":  e.NewRank,
	}
}

// PersistFailedEvent is emitted when a progress write could not reach the
// document store and the in-memory state is ahead of the persisted state.
type PersistFailedEvent struct {
	BaseEvent
	UserID   string
	Revision int64
	Reason   string
}

// NewPersistFailedEvent creates a persist failed event.
func NewPersistFailedEvent(userID string, revision int64, reason string) *PersistFailedEvent {
	return &PersistFailedEvent{
		BaseEvent: NewBaseEvent(EventPersistFailed, userID),
		UserID:    userID,
		Revision:  revision,
		Reason:    reason,
	}
}

// Payload returns event data.
func (e *PersistFailedEvent) Payload() map[string]any {
	return map[string]any{
		"user_id":  e.UserID,
		"revision": e.Revision,
		"reason":   e.Reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when a user unlocks an achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID        string
	AchievementID string
	Title         string
	BonusXP       int64
}

// NewAchievementUnlockedEvent creates an achievement unlocked event.
func NewAchievementUnlockedEvent(userID, achievementID, title string, bonusXP int64) *AchievementUnlockedEvent {
	return &AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:        userID,
		AchievementID: achievementID,
		Title:         title,
		BonusXP:       bonusXP,
	}
}

// Payload returns event data.
func (e *AchievementUnlockedEvent) Payload() map[string]any {
	return map[string]any{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"title":          e.Title,
		"bonus_xp":       e.BonusXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakContinuedEvent is emitted when a daily streak is started or extended.
type StreakContinuedEvent struct {
	BaseEvent
	UserID  string
	Count   int
	BonusXP int64
}

// NewStreakContinuedEvent creates a streak continued event.
func NewStreakContinuedEvent(userID string, count int, bonusXP int64) *StreakContinuedEvent {
	return &StreakContinuedEvent{
		BaseEvent: NewBaseEvent(EventStreakContinued, userID),
		UserID:    userID,
		Count:     count,
		BonusXP:   bonusXP,
	}
}

// Payload returns event data.
func (e *StreakContinuedEvent) Payload() map[string]any {
	return map[string]any{
		"user_id":  e.UserID,
		"count":    e.Count,
		"bonus_xp": e.BonusXP,
	}
}

// StreakBrokenEvent is emitted when a gap of more than one day resets a streak.
type StreakBrokenEvent struct {
	BaseEvent
	UserID        string
	PreviousCount int
}

// NewStreakBrokenEvent creates a streak broken event.
func NewStreakBrokenEvent(userID string, previousCount int) *StreakBrokenEvent {
	return &StreakBrokenEvent{
		BaseEvent:     NewBaseEvent(EventStreakBroken, userID),
		UserID:        userID,
		PreviousCount: previousCount,
	}
}

// Payload returns event data.
func (e *StreakBrokenEvent) Payload() map[string]any {
	return map[string]any{
		"user_id":        e.UserID,
		"previous_count": e.PreviousCount,
	}
}

// StreakAtRiskEvent is emitted by the lapsed streak detector for users who
// have an active streak but no activity recorded today.
type StreakAtRiskEvent struct {
	BaseEvent
	UserID string
	Count  int
}

// NewStreakAtRiskEvent creates a streak at risk event.
func NewStreakAtRiskEvent(userID string, count int) *StreakAtRiskEvent {
	return &StreakAtRiskEvent{
		BaseEvent: NewBaseEvent(EventStreakAtRisk, userID),
		UserID:    userID,
		Count:     count,
	}
}

// Payload returns event data.
func (e *StreakAtRiskEvent) Payload() map[string]any {
	return map[string]any{
		"user_id": e.UserID,
		"count":   e.Count,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Identity Events
// ═══════════════════════════════════════════════════════════════════════════

// UserLoadedEvent is emitted when a user's progress record becomes active
// in the ledger, either loaded from the store or freshly initialized.
type UserLoadedEvent struct {
	BaseEvent
	UserID      string
	Level       int
	TotalXP     int64
	FreshRecord bool
}

// NewUserLoadedEvent creates a user loaded event.
func NewUserLoadedEvent(userID string, level int, totalXP int64, fresh bool) *UserLoadedEvent {
	return &UserLoadedEvent{
		BaseEvent:   NewBaseEvent(EventUserLoaded, userID),
		UserID:      userID,
		Level:       level,
		TotalXP:     totalXP,
		FreshRecord: fresh,
	}
}

// Payload returns event data.
func (e *UserLoadedEvent) Payload() map[string]any {
	return map[string]any{
		"user_id":      e.UserID,
		"level":        e.Level,
		"total_xp":     e.TotalXP,
		"fresh_record": e.FreshRecord,
	}
}

// UserLoggedOutEvent is emitted when a user's record is released from the ledger.
type UserLoggedOutEvent struct {
	BaseEvent
	UserID string
}

// NewUserLoggedOutEvent creates a user logged out event.
func NewUserLoggedOutEvent(userID string) *UserLoggedOutEvent {
	return &UserLoggedOutEvent{
		BaseEvent: NewBaseEvent(EventUserLoggedOut, userID),
		UserID:    userID,
	}
}

// Payload returns event data.
func (e *UserLoggedOutEvent) Payload() map[string]any {
	return map[string]any{
		"user_id": e.UserID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes domain events.
type EventHandler func(ctx context.Context, event Event) error

// EventBus publishes and subscribes to domain events.
type EventBus interface {
	// Publish publishes an event to all subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventPublisher is the publish-only view of the bus, for components that
// never subscribe.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
