// Package domain holds room and member metadata together with the small
// rules that validate it: capacity bounds, passcode hashing and display
// name cleanup.
package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

type (
	RoomID      string
	Fingerprint string
)

const (
	DefaultCapacity = 12
	MinCapacity     = 2
	MaxCapacity     = 32
)

// Room is the immutable part of a room, fixed at creation.
type Room struct {
	ID           RoomID
	Fingerprint  Fingerprint
	PasscodeHash string
	Capacity     int
	CreatedAt    time.Time
}

// RoomSpec is what a creator asks for.
type RoomSpec struct {
	Fingerprint Fingerprint
	Passcode    string
	Capacity    int
}

func NewRoomID() RoomID { return RoomID(uuid.NewString()) }

// NewRoom builds room metadata from spec. A requested capacity of zero means
// fallback; anything else is clamped into [MinCapacity, MaxCapacity].
func NewRoom(id RoomID, spec RoomSpec, fallback int) *Room {
	r := &Room{
		ID:          id,
		Fingerprint: spec.Fingerprint,
		Capacity:    NormalizeCapacity(spec.Capacity, fallback),
		CreatedAt:   time.Now().UTC(),
	}
	if spec.Passcode != "" {
		r.PasscodeHash = HashPasscode(spec.Passcode, id)
	}
	return r
}

func NormalizeCapacity(requested, fallback int) int {
	if requested == 0 {
		requested = fallback
	}
	if requested == 0 {
		requested = DefaultCapacity
	}
	return min(max(requested, MinCapacity), MaxCapacity)
}

func (r *Room) PasscodeEnabled() bool { return r.PasscodeHash != "" }

// CheckPasscode compares in constant time. Rooms without a passcode accept
// anything.
func (r *Room) CheckPasscode(passcode string) bool {
	if !r.PasscodeEnabled() {
		return true
	}
	if passcode == "" {
		return false
	}
	got := HashPasscode(passcode, r.ID)
	return subtle.ConstantTimeCompare([]byte(got), []byte(r.PasscodeHash)) == 1
}

// HashPasscode salts the passcode with the room id.
func HashPasscode(passcode string, id RoomID) string {
	h := sha256.New()
	h.Write([]byte(id))
	h.Write([]byte(passcode))
	return hex.EncodeToString(h.Sum(nil))
}
