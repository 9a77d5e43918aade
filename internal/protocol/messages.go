// Package protocol defines the JSON-over-WebSocket messages exchanged between
// the relay server and sync clients. Every frame is an Envelope whose payload
// shape is selected by Type.
package protocol

import (
	"encoding/json"
	"fmt"
)

type MessageType string

// Client -> Server
const (
	TypeCreateRoom  MessageType = "CreateRoom"
	TypeJoinRoom    MessageType = "JoinRoom"
	TypeLeaveRoom   MessageType = "LeaveRoom"
	TypeSyncCommand MessageType = "SyncCommand"
	TypePing        MessageType = "Ping"
)

// Server -> Client
const (
	TypeRoomCreated      MessageType = "RoomCreated"
	TypeRoomJoined       MessageType = "RoomJoined"
	TypeRoomLeft         MessageType = "RoomLeft"
	TypeRoomNotFound     MessageType = "RoomNotFound"
	TypeFileHashMismatch MessageType = "FileHashMismatch"
	TypeRoomFull         MessageType = "RoomFull"
	TypeInvalidPasscode  MessageType = "InvalidPasscode"
	TypeSyncBroadcast    MessageType = "SyncBroadcast"
	TypeRoomMemberUpdate MessageType = "RoomMemberUpdate"
	TypePong             MessageType = "Pong"
	TypeError            MessageType = "Error"
)

type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload under type t. A nil payload is sent as {}.
func NewEnvelope(t MessageType, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: t, Payload: json.RawMessage(`{}`)}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

// Encode is NewEnvelope followed by json.Marshal of the envelope.
func Encode(t MessageType, payload any) ([]byte, error) {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// Bind unmarshals the payload into v. An absent payload leaves v untouched.
func (e Envelope) Bind(v any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

type CreateRoom struct {
	FileHash    string `json:"file_hash"`
	Passcode    string `json:"passcode,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Capacity    int    `json:"capacity,omitempty"`
}

type JoinRoom struct {
	RoomID      string `json:"room_id"`
	FileHash    string `json:"file_hash"`
	Passcode    string `json:"passcode,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

type RoomCreated struct {
	RoomID          string `json:"room_id"`
	ClientID        string `json:"client_id"`
	PasscodeEnabled bool   `json:"passcode_enabled"`
	FileHash        string `json:"file_hash"`
	Capacity        int    `json:"capacity"`
	DisplayName     string `json:"display_name"`
}

type RoomJoined struct {
	RoomID          string `json:"room_id"`
	ClientID        string `json:"client_id"`
	IsHost          bool   `json:"is_host"`
	PasscodeEnabled bool   `json:"passcode_enabled"`
	FileHash        string `json:"file_hash"`
	Capacity        int    `json:"capacity"`
	DisplayName     string `json:"display_name"`
}

type RoomFull struct {
	Capacity int `json:"capacity"`
}

type SyncBroadcast struct {
	FromClient string      `json:"from_client"`
	Seq        uint64      `json:"seq,omitempty"`
	Command    SyncCommand `json:"command"`
}

type MemberSummary struct {
	ClientID    string `json:"client_id"`
	DisplayName string `json:"display_name"`
	IsHost      bool   `json:"is_host"`
}

type RoomMemberUpdate struct {
	RoomID   string          `json:"room_id"`
	Members  []MemberSummary `json:"members"`
	Capacity int             `json:"capacity"`
}

type Error struct {
	Message string `json:"message"`
}
