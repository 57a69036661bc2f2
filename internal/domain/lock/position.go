package lock

import (
	"fmt"
	"strings"
)

// Position is the logical state of the lock.
type Position int

const (
	// PositionUnknown means the physical state cannot be trusted, for example
	// after a failed actuation.
	PositionUnknown Position = iota
	// Locked keeps the door shut.
	Locked
	// Unlocked releases the door.
	Unlocked
)

// String returns the lowercase name of the position.
func (p Position) String() string {
	switch p {
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// ParsePosition converts "locked"/"unlocked" (case insensitive) to a Position.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "locked":
		return Locked, nil
	case "unlocked":
		return Unlocked, nil
	default:
		return PositionUnknown, fmt.Errorf("unknown lock position %q", s)
	}
}
