package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrInvalidCommand = errors.New("invalid sync command")

type Action string

const (
	ActionPlay  Action = "Play"
	ActionPause Action = "Pause"
	ActionSeek  Action = "Seek"
	ActionSpeed Action = "Speed"
	ActionStop  Action = "Stop"
)

// SyncCommand is one playback action plus the state needed to reproduce it:
// a timestamp in seconds for Play, Pause and Seek, a rate for Speed, nothing
// for Stop. Values are immutable once built.
type SyncCommand struct {
	action    Action
	timestamp float64
	rate      float64
}

func Play(timestamp float64) SyncCommand  { return SyncCommand{action: ActionPlay, timestamp: timestamp} }
func Pause(timestamp float64) SyncCommand { return SyncCommand{action: ActionPause, timestamp: timestamp} }
func Seek(timestamp float64) SyncCommand  { return SyncCommand{action: ActionSeek, timestamp: timestamp} }
func Speed(rate float64) SyncCommand      { return SyncCommand{action: ActionSpeed, rate: rate} }
func Stop() SyncCommand                   { return SyncCommand{action: ActionStop} }

func (c SyncCommand) Action() Action     { return c.action }
func (c SyncCommand) Timestamp() float64 { return c.timestamp }
func (c SyncCommand) Rate() float64      { return c.rate }

// HasTimestamp reports whether the action carries a playback position.
func (c SyncCommand) HasTimestamp() bool {
	switch c.action {
	case ActionPlay, ActionPause, ActionSeek:
		return true
	}
	return false
}

func (c SyncCommand) Validate() error {
	switch c.action {
	case ActionPlay, ActionPause, ActionSeek:
		if math.IsNaN(c.timestamp) || math.IsInf(c.timestamp, 0) || c.timestamp < 0 {
			return fmt.Errorf("%w: bad timestamp %v", ErrInvalidCommand, c.timestamp)
		}
	case ActionSpeed:
		if math.IsNaN(c.rate) || math.IsInf(c.rate, 0) || c.rate <= 0 {
			return fmt.Errorf("%w: bad rate %v", ErrInvalidCommand, c.rate)
		}
	case ActionStop:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, c.action)
	}
	return nil
}

func (c SyncCommand) String() string {
	switch c.action {
	case ActionSpeed:
		return fmt.Sprintf("%s{rate:%g}", c.action, c.rate)
	case ActionStop:
		return string(c.action)
	}
	return fmt.Sprintf("%s{timestamp:%g}", c.action, c.timestamp)
}

type wireCommand struct {
	Action    Action   `json:"action"`
	Timestamp *float64 `json:"timestamp,omitempty"`
	Rate      *float64 `json:"rate,omitempty"`
}

func (c SyncCommand) MarshalJSON() ([]byte, error) {
	w := wireCommand{Action: c.action}
	switch c.action {
	case ActionPlay, ActionPause, ActionSeek:
		ts := c.timestamp
		w.Timestamp = &ts
	case ActionSpeed:
		r := c.rate
		w.Rate = &r
	}
	return json.Marshal(w)
}

func (c *SyncCommand) UnmarshalJSON(data []byte) error {
	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Action {
	case ActionPlay, ActionPause, ActionSeek:
		if w.Timestamp == nil {
			return fmt.Errorf("%w: %s needs timestamp", ErrInvalidCommand, w.Action)
		}
		*c = SyncCommand{action: w.Action, timestamp: *w.Timestamp}
	case ActionSpeed:
		if w.Rate == nil {
			return fmt.Errorf("%w: Speed needs rate", ErrInvalidCommand)
		}
		*c = SyncCommand{action: w.Action, rate: *w.Rate}
	case ActionStop:
		*c = SyncCommand{action: w.Action}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, w.Action)
	}
	return nil
}
