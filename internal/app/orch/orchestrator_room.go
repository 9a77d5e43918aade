package orch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/devkiraa/Hang/internal/core"
	"github.com/devkiraa/Hang/internal/domain"
	"github.com/devkiraa/Hang/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) CreateRoom(sid core.SessionID, req protocol.CreateRoom) (core.JoinResult, error) {
	fp := domain.Fingerprint(req.FileHash)
	if fp == "" {
		return core.JoinResult{}, fmt.Errorf("%w: file_hash is required", ErrInvalidRequest)
	}
	if req.Capacity < 0 {
		return core.JoinResult{}, fmt.Errorf("%w: negative capacity", ErrInvalidRequest)
	}
	o.applyDisplayName(sid, req.DisplayName)

	res, err := o.Rooms.CreateRoom(sid, domain.RoomSpec{Fingerprint: fp, Passcode: req.Passcode, Capacity: req.Capacity})
	if err != nil {
		return core.JoinResult{}, err
	}
	o.announceDeparture(res.Previous)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(res.Room.Room().ID)).Msg("created room")
	return res, nil
}

func (o *Orchestrator) JoinRoom(sid core.SessionID, req protocol.JoinRoom) (core.JoinResult, error) {
	id := domain.RoomID(strings.TrimSpace(req.RoomID))
	if id == "" {
		return core.JoinResult{}, core.ErrRoomNotFound
	}
	res, err := o.Rooms.Join(sid, id, domain.Fingerprint(req.FileHash), req.Passcode)
	if err != nil {
		return core.JoinResult{}, err
	}
	o.applyDisplayName(sid, req.DisplayName)
	o.announceDeparture(res.Previous)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(id)).Str("role", res.Role.String()).Msg("joined room")
	return res, nil
}

// LeaveRoom removes sid from its room and tells the remaining members.
func (o *Orchestrator) LeaveRoom(sid core.SessionID) core.LeaveResult {
	res := o.Rooms.Leave(sid)
	o.announceDeparture(res)
	if res.Left {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(res.RoomID)).Bool("deleted", res.Deleted).Msg("left room")
	}
	return res
}

// BroadcastRoster sends the current member list to everyone in room.
func (o *Orchestrator) BroadcastRoster(room core.RoomService) {
	frame, err := protocol.Encode(protocol.TypeRoomMemberUpdate, o.Roster(room))
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode roster")
		return
	}
	o.fanOut(room, "", frame)
}

func (o *Orchestrator) Roster(room core.RoomService) protocol.RoomMemberUpdate {
	host, _ := room.Host()
	members := make([]protocol.MemberSummary, 0, room.MemberCount())
	for _, sid := range room.Members() {
		name := domain.DefaultDisplayName(string(sid))
		if info, ok := o.Registry.Info(sid); ok {
			name = info.DisplayName
		}
		members = append(members, protocol.MemberSummary{
			ClientID:    string(sid),
			DisplayName: name,
			IsHost:      sid == host,
		})
	}
	slices.SortFunc(members, func(a, b protocol.MemberSummary) int { return strings.Compare(a.ClientID, b.ClientID) })
	return protocol.RoomMemberUpdate{
		RoomID:   string(room.Room().ID),
		Members:  members,
		Capacity: room.Room().Capacity,
	}
}

func (o *Orchestrator) announceDeparture(res core.LeaveResult) {
	if !res.Left || res.Deleted {
		return
	}
	if room, ok := o.Rooms.GetRoom(res.RoomID); ok {
		o.BroadcastRoster(room)
	}
}

func (o *Orchestrator) applyDisplayName(sid core.SessionID, raw string) {
	if raw == "" {
		return
	}
	name, err := domain.SanitizeDisplayName(raw)
	if err != nil {
		return
	}
	o.Registry.SetDisplayName(sid, name)
}
