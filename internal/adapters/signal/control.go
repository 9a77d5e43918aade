package signal

import (
	"errors"

	"github.com/devkiraa/Hang/internal/app/orch"
	"github.com/devkiraa/Hang/internal/core"
	"github.com/devkiraa/Hang/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(sid core.SessionID) {
	ctl.reply(sid, protocol.TypePong, nil)
}

func (ctl *SignalWSController) handleSyncCommand(sid core.SessionID, env protocol.Envelope) {
	var cmd protocol.SyncCommand
	if err := env.Bind(&cmd); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad sync payload")
		ctl.replyError(sid, "bad payload")
		return
	}
	if _, err := ctl.Orch.OnSyncCommand(sid, cmd); err != nil {
		switch {
		case errors.Is(err, orch.ErrInvalidState):
			ctl.replyError(sid, "not in a room")
		default:
			ctl.replyError(sid, err.Error())
		}
	}
}
