package shared

import (
	"fmt"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// UserID Value Object
// ═══════════════════════════════════════════════════════════════════════════

// UserID uniquely identifies a user across the progression system.
type UserID string

// NewUserID validates and creates a UserID.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", WrapError("shared", "NewUserID", ErrInvalidID, "user ID cannot be empty", nil)
	}
	return UserID(trimmed), nil
}

// String returns the string representation.
func (id UserID) String() string {
	return string(id)
}

// IsZero reports whether the ID is unset.
func (id UserID) IsZero() bool {
	return id == ""
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points. Always non-negative.
type XP int64

// NewXP validates and creates an XP amount.
func NewXP(value int64) (XP, error) {
	if value < 0 {
		return 0, WrapError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative", nil)
	}
	return XP(value), nil
}

// Add returns the sum of two XP amounts.
func (x XP) Add(other XP) XP {
	return x + other
}

// Int64 returns the raw value.
func (x XP) Int64() int64 {
	return int64(x)
}

// String formats the XP amount.
func (x XP) String() string {
	return fmt.Sprintf("%d XP", int64(x))
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// MinLevel is the level every user starts at.
const MinLevel = 1

// Level represents a user's progression level. Starts at 1, unbounded above.
type Level int

// NewLevel validates and creates a Level.
func NewLevel(value int) (Level, error) {
	if value < MinLevel {
		return 0, WrapError("shared", "NewLevel", ErrValueOutOfRange,
			fmt.Sprintf("level must be at least %d", MinLevel), nil)
	}
	return Level(value), nil
}

// Int returns the raw value.
func (l Level) Int() int {
	return int(l)
}

// Next returns the following level.
func (l Level) Next() Level {
	return l + 1
}

// String formats the level.
func (l Level) String() string {
	return fmt.Sprintf("Level %d", int(l))
}

// ═══════════════════════════════════════════════════════════════════════════
// Revision Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Revision is a monotonically increasing counter used for optimistic
// concurrency control on persisted progress records.
type Revision int64

// Next returns the revision after a successful write.
func (r Revision) Next() Revision {
	return r + 1
}

// Int64 returns the raw value.
func (r Revision) Int64() int64 {
	return int64(r)
}
