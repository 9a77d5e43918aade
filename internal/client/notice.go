package client

import (
	"github.com/devkiraa/Hang/internal/domain"
	"github.com/devkiraa/Hang/internal/protocol"
)

type NoticeKind int

const (
	NoticeRoomJoined NoticeKind = iota
	NoticeRoomLeft
	NoticeRoster
	NoticeRemoteCommand
	NoticeServerError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeRoomJoined:
		return "room-joined"
	case NoticeRoomLeft:
		return "room-left"
	case NoticeRoster:
		return "roster"
	case NoticeRemoteCommand:
		return "remote-command"
	case NoticeServerError:
		return "server-error"
	}
	return "unknown"
}

// Notice tells the UI something changed. Only the fields relevant to Kind
// are set.
type Notice struct {
	Kind    NoticeKind
	RoomID  string
	Role    domain.Role
	Members []protocol.MemberSummary
	From    string
	Command protocol.SyncCommand
	Message string
}

// Snapshot is a read-only copy of the engine state.
type Snapshot struct {
	SyncEnabled     bool
	Role            domain.Role
	RoomID          string
	ClientID        string
	Fingerprint     string
	FileName        string
	Members         []protocol.MemberSummary
	Capacity        int
	PasscodeEnabled bool
	LastSeq         uint64
}

// RoomState is the result of a successful create or join.
type RoomState struct {
	RoomID          string
	ClientID        string
	Role            domain.Role
	Capacity        int
	PasscodeEnabled bool
}
