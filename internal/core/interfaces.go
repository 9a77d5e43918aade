package core

import (
	"errors"

	"github.com/devkiraa/Hang/internal/domain"
)

// Frame is an encoded message ready for the wire.
type Frame []byte

// SessionID identifies one live transport connection. Clients see it as
// client_id.
type SessionID string

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrFileHashMismatch  = errors.New("file hash mismatch")
	ErrRoomFull          = errors.New("room is full")
	ErrInvalidPasscode   = errors.New("invalid passcode")
	ErrUnknownConnection = errors.New("unknown connection")
)

// PublishResult reports fan-out stats to the orchestrator.
type PublishResult struct {
	SendTo int
	Failed []SessionID
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	Host() (SessionID, bool)
	MemberCount() int
	Members() []SessionID
	Has(sid SessionID) bool
	// Closed reports that the last member left; a closed room never reopens.
	Closed() bool

	Admit(sid SessionID, fp domain.Fingerprint, passcode string) (domain.Role, error)
	// RemoveMember reports whether sid was a member and whether the room
	// became empty (and therefore closed) as a result.
	RemoveMember(sid SessionID) (removed, emptied bool)
	// Sequence runs fn with the next broadcast sequence number. Calls are
	// serialized, so frames enqueued inside fn leave in sequence order.
	Sequence(fn func(seq uint64))
}

type RoomInfo struct {
	ID              domain.RoomID `json:"id"`
	MemberCount     int           `json:"member_count"`
	Capacity        int           `json:"capacity"`
	PasscodeEnabled bool          `json:"passcode_enabled"`
	HasHost         bool          `json:"has_host"`
}

type LeaveResult struct {
	RoomID  domain.RoomID
	Left    bool
	WasHost bool
	Deleted bool
}

// JoinResult describes a successful create or join. Previous is the room
// the connection was moved out of, if any.
type JoinResult struct {
	Role     domain.Role
	Room     RoomService
	Previous LeaveResult
}

// RoomManager is the room directory: lifecycle and membership keyed by
// room id.
type RoomManager interface {
	CreateRoom(host SessionID, spec domain.RoomSpec) (JoinResult, error)
	Join(sid SessionID, id domain.RoomID, fp domain.Fingerprint, passcode string) (JoinResult, error)
	Leave(sid SessionID) LeaveResult
	MembersOf(id domain.RoomID) []SessionID
	GetRoom(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	Count() int
}

// MembershipIndex is the per-connection side of membership, owned by the
// connection registry.
type MembershipIndex interface {
	Has(sid SessionID) bool
	RoomOf(sid SessionID) (domain.RoomID, bool)
	BindRoom(sid SessionID, id domain.RoomID) bool
	UnbindRoom(sid SessionID)
}
