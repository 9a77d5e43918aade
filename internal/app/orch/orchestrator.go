package orch

import (
	"errors"
	"fmt"

	"github.com/devkiraa/Hang/internal/app"
	"github.com/devkiraa/Hang/internal/core"
	"github.com/devkiraa/Hang/internal/protocol"
	"github.com/devkiraa/Hang/internal/queue"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidState   = errors.New("not in a room")
	ErrInvalidRequest = errors.New("invalid request")
)

// Orchestrator ties the connection registry to the room directory. Every
// call for one connection comes from that connection's read loop, so calls
// for a given sid never overlap.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
}

func New(reg *app.Registry, rooms core.RoomManager, policy app.Policy) *Orchestrator {
	return &Orchestrator{Registry: reg, Rooms: rooms, Policy: policy}
}

// Connect registers a new connection. cancel must close its transport.
func (o *Orchestrator) Connect(sid core.SessionID, cancel func()) (*queue.Queue[core.Frame], error) {
	return o.Registry.Register(sid, cancel)
}

// Send encodes one message for sid.
func (o *Orchestrator) Send(sid core.SessionID, t protocol.MessageType, payload any) error {
	frame, err := protocol.Encode(t, payload)
	if err != nil {
		return err
	}
	return o.Registry.Send(sid, frame)
}

// OnSyncCommand relays cmd from sid to the rest of its room.
func (o *Orchestrator) OnSyncCommand(sid core.SessionID, cmd protocol.SyncCommand) (core.PublishResult, error) {
	if err := cmd.Validate(); err != nil {
		return core.PublishResult{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	id, ok := o.Registry.RoomOf(sid)
	if !ok {
		return core.PublishResult{}, ErrInvalidState
	}
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return core.PublishResult{}, ErrInvalidState
	}
	return o.Relay(sid, room, cmd), nil
}

// Relay sends one SyncBroadcast to every member of room except origin.
// Failed recipients are handed to the policy; they never abort the fan-out.
func (o *Orchestrator) Relay(origin core.SessionID, room core.RoomService, cmd protocol.SyncCommand) core.PublishResult {
	var res core.PublishResult
	room.Sequence(func(seq uint64) {
		frame, err := protocol.Encode(protocol.TypeSyncBroadcast, protocol.SyncBroadcast{
			FromClient: string(origin),
			Seq:        seq,
			Command:    cmd,
		})
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("encode broadcast")
			return
		}
		res = o.enqueue(room, origin, frame)
	})
	o.onFailures(room, res.Failed)
	log.Debug().Str("module", "orch").Str("sid", string(origin)).Str("room", string(room.Room().ID)).
		Str("cmd", cmd.String()).Int("sent", res.SendTo).Int("failed", len(res.Failed)).Msg("relayed")
	return res
}

func (o *Orchestrator) fanOut(room core.RoomService, except core.SessionID, frame core.Frame) core.PublishResult {
	res := o.enqueue(room, except, frame)
	o.onFailures(room, res.Failed)
	return res
}

func (o *Orchestrator) enqueue(room core.RoomService, except core.SessionID, frame core.Frame) core.PublishResult {
	var res core.PublishResult
	for _, sid := range room.Members() {
		if sid == except {
			continue
		}
		if err := o.Registry.Send(sid, frame); err != nil {
			res.Failed = append(res.Failed, sid)
			continue
		}
		res.SendTo++
	}
	return res
}

func (o *Orchestrator) onFailures(room core.RoomService, failed []core.SessionID) {
	if o.Policy == nil {
		return
	}
	for _, sid := range failed {
		switch o.Policy.OnDeliveryFailed(room, sid) {
		case app.Disconnect:
			log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("delivery failed, disconnecting")
			o.Registry.Cancel(sid)
		case app.NoAction:
		}
	}
}

// OnDisconnect performs the implicit leave and forgets the connection.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	o.LeaveRoom(sid)
	o.Registry.Unregister(sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
}
