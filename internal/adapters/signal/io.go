package signal

import (
	"context"
	"time"

	"github.com/devkiraa/Hang/internal/core"
	"github.com/devkiraa/Hang/internal/protocol"
	"github.com/devkiraa/Hang/internal/queue"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

func (ctl *SignalWSController) writePump(ctx context.Context, sid core.SessionID, c *WsSignalConn, outbox *queue.Queue[core.Frame]) {
	ticker := time.NewTicker(ctl.settings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case <-outbox.Ready():
			frames, open := outbox.Drain()
			for _, f := range frames {
				if err := ctl.write(c, websocket.TextMessage, f); err != nil {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
					return
				}
			}
			if !open {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = ctl.write(c, websocket.CloseMessage, msg)
				return
			}
		case <-ticker.C:
			if err := ctl.write(c, websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) write(c *WsSignalConn, messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.settings.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (ctl *SignalWSController) readPump(sid core.SessionID, rateKey string, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
	}()

	c.conn.SetReadLimit(ctl.settings.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.settings.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.settings.PongWait))

		var catcher panics.Catcher
		catcher.Try(func() { ctl.handleSignal(sid, rateKey, data) })
		if r := catcher.Recovered(); r != nil {
			log.Error().Str("module", "signal").Str("sid", string(sid)).Str("panic", r.String()).Msg("handler panic")
			ctl.replyError(sid, "internal error")
		}
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, rateKey string, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.replyError(sid, "malformed message")
		return
	}

	switch env.Type {
	case protocol.TypeCreateRoom:
		ctl.handleCreate(sid, env)
	case protocol.TypeJoinRoom:
		ctl.handleJoin(sid, rateKey, env)
	case protocol.TypeLeaveRoom:
		ctl.handleLeave(sid)
	case protocol.TypeSyncCommand:
		ctl.handleSyncCommand(sid, env)
	case protocol.TypePing:
		ctl.handlePing(sid)
	default:
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
		ctl.replyError(sid, "unknown message type: "+string(env.Type))
	}
}

func (ctl *SignalWSController) reply(sid core.SessionID, t protocol.MessageType, payload any) {
	if err := ctl.Orch.Send(sid, t, payload); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", string(t)).Msg("reply dropped")
	}
}

func (ctl *SignalWSController) replyError(sid core.SessionID, msg string) {
	ctl.reply(sid, protocol.TypeError, protocol.Error{Message: msg})
}
