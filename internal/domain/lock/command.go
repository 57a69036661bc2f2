package lock

import (
	"encoding/json"
	"fmt"
)

// Actions accepted on the command topic.
const (
	ActionLock   = "lock"
	ActionUnlock = "unlock"
)

// RemoteCommand is the inbound message {"command": "lock"|"unlock"}.
type RemoteCommand struct {
	// Action is the raw command string; unrecognized values are kept as received.
	Action string `json:"command"`
}

// DecodeCommand parses a command payload. It only fails on malformed JSON;
// an unrecognized action is returned as is and rejected later by Position.
func DecodeCommand(payload []byte) (RemoteCommand, error) {
	var cmd RemoteCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return RemoteCommand{}, fmt.Errorf("decode command: %w", err)
	}

	return cmd, nil
}

// Encode renders the command in its wire format.
func (c RemoteCommand) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// Position maps the action to the lock position it requests.
func (c RemoteCommand) Position() (Position, bool) {
	switch c.Action {
	case ActionLock:
		return Locked, true
	case ActionUnlock:
		return Unlocked, true
	default:
		return PositionUnknown, false
	}
}
