package client

import (
	"time"

	"github.com/devkiraa/Hang/internal/domain"
	"github.com/devkiraa/Hang/internal/protocol"
	"github.com/rs/zerolog/log"
)

// debounceSlot tracks one debounced action class. The first event of a burst
// is sent at once; the rest collapse into a single send when the window
// closes.
type debounceSlot struct {
	lastSent time.Time
	pending  bool
	timer    *time.Timer
	gen      uint64
}

// expectation is a player callback we caused ourselves while applying a
// remote command.
type expectation struct {
	action protocol.Action
	until  time.Time
}

func debounced(a protocol.Action) bool {
	return a == protocol.ActionSeek || a == protocol.ActionSpeed
}

func (e *Engine) onLocal(action protocol.Action) {
	if e.consumeEcho(action) {
		log.Debug().Str("module", "client").Str("action", string(action)).Msg("suppressed echo")
		return
	}
	if !e.syncEnabled || e.roomID == "" {
		return
	}

	if !debounced(action) {
		// a timestamped action supersedes a trailing seek
		e.cancelSlot(protocol.ActionSeek)
		e.sendLocal(action)
		return
	}

	slot := e.slot(action)
	now := e.now()
	if slot.timer == nil && now.Sub(slot.lastSent) >= e.opts.Debounce {
		slot.lastSent = now
		e.sendLocal(action)
		return
	}
	slot.pending = true
	if slot.timer == nil {
		wait := e.opts.Debounce - now.Sub(slot.lastSent)
		e.armSlot(action, slot, wait)
	}
}

func (e *Engine) slot(action protocol.Action) *debounceSlot {
	s, ok := e.debounce[action]
	if !ok {
		s = &debounceSlot{}
		e.debounce[action] = s
	}
	return s
}

func (e *Engine) armSlot(action protocol.Action, slot *debounceSlot, wait time.Duration) {
	slot.gen++
	gen := slot.gen
	slot.timer = time.AfterFunc(wait, func() {
		_ = e.post(func() { e.flushSlot(action, gen) })
	})
}

func (e *Engine) flushSlot(action protocol.Action, gen uint64) {
	slot := e.slot(action)
	if slot.gen != gen || slot.timer == nil {
		return
	}
	slot.timer = nil
	if !slot.pending {
		return
	}
	slot.pending = false
	if !e.syncEnabled || e.roomID == "" {
		return
	}
	slot.lastSent = e.now()
	e.sendLocal(action)
}

func (e *Engine) cancelSlot(action protocol.Action) {
	slot, ok := e.debounce[action]
	if !ok {
		return
	}
	if slot.timer != nil {
		slot.timer.Stop()
		slot.timer = nil
	}
	slot.pending = false
	slot.gen++
}

func (e *Engine) stopTimers() {
	for action := range e.debounce {
		e.cancelSlot(action)
	}
}

func (e *Engine) sendLocal(action protocol.Action) {
	cmd, ok := e.commandFor(action)
	if !ok {
		return
	}
	if err := cmd.Validate(); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("not sending invalid command")
		return
	}
	if err := e.send(protocol.TypeSyncCommand, cmd); err != nil {
		log.Warn().Err(err).Str("module", "client").Str("cmd", cmd.String()).Msg("send command")
		return
	}
	log.Debug().Str("module", "client").Str("cmd", cmd.String()).Msg("sent")
}

func (e *Engine) commandFor(action protocol.Action) (protocol.SyncCommand, bool) {
	switch action {
	case protocol.ActionPlay:
		return protocol.Play(e.player.Position()), true
	case protocol.ActionPause:
		return protocol.Pause(e.player.Position()), true
	case protocol.ActionSeek:
		return protocol.Seek(e.player.Position()), true
	case protocol.ActionSpeed:
		return protocol.Speed(e.player.Rate()), true
	case protocol.ActionStop:
		return protocol.Stop(), true
	}
	log.Warn().Str("module", "client").Str("action", string(action)).Msg("unknown local action")
	return protocol.SyncCommand{}, false
}

// expect records the player callbacks applying cmd will trigger. Players
// that stay silent on programmatic changes get no expectations, so a later
// user action is never mistaken for an echo.
func (e *Engine) expect(actions ...protocol.Action) {
	if !e.opts.PlayerReportsChanges {
		return
	}
	until := e.now().Add(e.opts.EchoWindow)
	for _, a := range actions {
		e.expected = append(e.expected, expectation{action: a, until: until})
	}
}

func (e *Engine) consumeEcho(action protocol.Action) bool {
	now := e.now()
	live := e.expected[:0]
	hit := false
	for _, x := range e.expected {
		if now.After(x.until) {
			continue
		}
		if !hit && x.action == action {
			hit = true
			continue
		}
		live = append(live, x)
	}
	e.expected = live
	return hit
}

func (e *Engine) handleInbound(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeSyncBroadcast:
		var b protocol.SyncBroadcast
		if err := env.Bind(&b); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad broadcast")
			return
		}
		e.onBroadcast(b)
	case protocol.TypeRoomCreated:
		var p protocol.RoomCreated
		if err := env.Bind(&p); err != nil {
			e.resolve(requestResult{err: ErrServer})
			return
		}
		st := RoomState{RoomID: p.RoomID, ClientID: p.ClientID, Role: domain.RoleHost, Capacity: p.Capacity, PasscodeEnabled: p.PasscodeEnabled}
		e.enterRoom(st)
		e.resolve(requestResult{state: st})
	case protocol.TypeRoomJoined:
		var p protocol.RoomJoined
		if err := env.Bind(&p); err != nil {
			e.resolve(requestResult{err: ErrServer})
			return
		}
		role := domain.RoleGuest
		if p.IsHost {
			role = domain.RoleHost
		}
		st := RoomState{RoomID: p.RoomID, ClientID: p.ClientID, Role: role, Capacity: p.Capacity, PasscodeEnabled: p.PasscodeEnabled}
		e.enterRoom(st)
		e.resolve(requestResult{state: st})
	case protocol.TypeRoomNotFound:
		e.resolve(requestResult{err: ErrRoomNotFound})
	case protocol.TypeFileHashMismatch:
		e.resolve(requestResult{err: ErrFileHashMismatch})
	case protocol.TypeInvalidPasscode:
		e.resolve(requestResult{err: ErrInvalidPasscode})
	case protocol.TypeRoomFull:
		e.resolve(requestResult{err: ErrRoomFull})
	case protocol.TypeRoomMemberUpdate:
		var p protocol.RoomMemberUpdate
		if err := env.Bind(&p); err != nil || p.RoomID != e.roomID {
			return
		}
		e.members = p.Members
		e.capacity = p.Capacity
		e.notify(Notice{Kind: NoticeRoster, RoomID: p.RoomID, Members: p.Members})
	case protocol.TypeError:
		var p protocol.Error
		_ = env.Bind(&p)
		if e.pending != nil {
			e.resolve(requestResult{err: serverError(p.Message)})
			return
		}
		log.Warn().Str("module", "client").Str("message", p.Message).Msg("server error")
		e.notify(Notice{Kind: NoticeServerError, Message: p.Message})
	case protocol.TypeRoomLeft, protocol.TypePong:
	default:
		log.Debug().Str("module", "client").Str("type", string(env.Type)).Msg("ignoring message")
	}
}

func (e *Engine) resolve(res requestResult) {
	if e.pending == nil {
		log.Debug().Str("module", "client").AnErr("err", res.err).Msg("reply without request")
		return
	}
	e.publish()
	e.pending.reply <- res
	e.pending = nil
}

func (e *Engine) onBroadcast(b protocol.SyncBroadcast) {
	if e.roomID == "" || b.FromClient == e.clientID {
		return
	}
	if b.Seq != 0 {
		if b.Seq <= e.lastSeq {
			log.Debug().Str("module", "client").Uint64("seq", b.Seq).Uint64("last", e.lastSeq).Msg("stale command dropped")
			return
		}
		e.lastSeq = b.Seq
	}
	if !e.syncEnabled {
		return
	}
	if err := b.Command.Validate(); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("ignoring invalid remote command")
		return
	}
	e.apply(b.Command)
	e.notify(Notice{Kind: NoticeRemoteCommand, RoomID: e.roomID, From: b.FromClient, Command: b.Command})
}

// apply drives the player and registers the callbacks that will follow so
// they are not sent back.
func (e *Engine) apply(cmd protocol.SyncCommand) {
	switch cmd.Action() {
	case protocol.ActionPlay:
		e.cancelSlot(protocol.ActionSeek)
		e.expect(protocol.ActionSeek, protocol.ActionPlay)
		e.player.Seek(cmd.Timestamp())
		e.player.Play()
	case protocol.ActionPause:
		e.cancelSlot(protocol.ActionSeek)
		e.expect(protocol.ActionSeek, protocol.ActionPause)
		e.player.Seek(cmd.Timestamp())
		e.player.Pause()
	case protocol.ActionSeek:
		e.cancelSlot(protocol.ActionSeek)
		e.expect(protocol.ActionSeek)
		e.player.Seek(cmd.Timestamp())
	case protocol.ActionSpeed:
		e.cancelSlot(protocol.ActionSpeed)
		e.expect(protocol.ActionSpeed)
		e.player.SetRate(cmd.Rate())
	case protocol.ActionStop:
		e.cancelSlot(protocol.ActionSeek)
		e.expect(protocol.ActionStop)
		e.player.Stop()
	}
	log.Info().Str("module", "client").Str("cmd", cmd.String()).Msg("applied remote command")
}

func serverError(msg string) error {
	if msg == "" {
		return ErrServer
	}
	return &ServerError{Message: msg}
}

// ServerError carries the relay's message. It matches ErrServer.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "server error: " + e.Message }

func (e *ServerError) Is(target error) bool { return target == ErrServer }
