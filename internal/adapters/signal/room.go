package signal

import (
	"errors"

	"github.com/devkiraa/Hang/internal/app/orch"
	"github.com/devkiraa/Hang/internal/core"
	"github.com/devkiraa/Hang/internal/domain"
	"github.com/devkiraa/Hang/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleCreate(sid core.SessionID, env protocol.Envelope) {
	var p protocol.CreateRoom
	if err := env.Bind(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad create payload")
		ctl.replyError(sid, "bad payload")
		return
	}
	res, err := ctl.Orch.CreateRoom(sid, p)
	if err != nil {
		ctl.replyJoinError(sid, "", err)
		return
	}
	meta := res.Room.Room()
	ctl.reply(sid, protocol.TypeRoomCreated, protocol.RoomCreated{
		RoomID:          string(meta.ID),
		ClientID:        string(sid),
		PasscodeEnabled: meta.PasscodeEnabled(),
		FileHash:        string(meta.Fingerprint),
		Capacity:        meta.Capacity,
		DisplayName:     ctl.displayName(sid),
	})
	ctl.Orch.BroadcastRoster(res.Room)
}

func (ctl *SignalWSController) handleJoin(sid core.SessionID, rateKey string, env protocol.Envelope) {
	if ctl.Limiter != nil && !ctl.Limiter.Allow(rateKey) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join rate limited")
		ctl.replyError(sid, "too many join attempts")
		return
	}
	var p protocol.JoinRoom
	if err := env.Bind(&p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.replyError(sid, "bad payload")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", p.RoomID).Msg("join")
	res, err := ctl.Orch.JoinRoom(sid, p)
	if err != nil {
		ctl.replyJoinError(sid, domain.RoomID(p.RoomID), err)
		return
	}
	meta := res.Room.Room()
	ctl.reply(sid, protocol.TypeRoomJoined, protocol.RoomJoined{
		RoomID:          string(meta.ID),
		ClientID:        string(sid),
		IsHost:          res.Role == domain.RoleHost,
		PasscodeEnabled: meta.PasscodeEnabled(),
		FileHash:        string(meta.Fingerprint),
		Capacity:        meta.Capacity,
		DisplayName:     ctl.displayName(sid),
	})
	ctl.Orch.BroadcastRoster(res.Room)
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Orch.LeaveRoom(sid)
	ctl.reply(sid, protocol.TypeRoomLeft, nil)
}

func (ctl *SignalWSController) replyJoinError(sid core.SessionID, id domain.RoomID, err error) {
	switch {
	case errors.Is(err, core.ErrRoomNotFound):
		ctl.reply(sid, protocol.TypeRoomNotFound, nil)
	case errors.Is(err, core.ErrFileHashMismatch):
		ctl.reply(sid, protocol.TypeFileHashMismatch, nil)
	case errors.Is(err, core.ErrInvalidPasscode):
		ctl.reply(sid, protocol.TypeInvalidPasscode, nil)
	case errors.Is(err, core.ErrRoomFull):
		var capacity int
		if room, ok := ctl.Orch.Rooms.GetRoom(id); ok {
			capacity = room.Room().Capacity
		}
		ctl.reply(sid, protocol.TypeRoomFull, protocol.RoomFull{Capacity: capacity})
	case errors.Is(err, orch.ErrInvalidRequest):
		ctl.replyError(sid, err.Error())
	default:
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("room request failed")
		ctl.replyError(sid, "internal error")
	}
}

func (ctl *SignalWSController) displayName(sid core.SessionID) string {
	if info, ok := ctl.Orch.Registry.Info(sid); ok {
		return info.DisplayName
	}
	return domain.DefaultDisplayName(string(sid))
}
