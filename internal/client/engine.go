// Package client implements the sync engine that sits between a local
// player and the relay.
//
// All engine state is owned by the goroutine running Run. Public methods
// post closures into an inbox that Run drains, so local events, network
// input and timer callbacks are handled one at a time.
package client

import (
	"context"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/devkiraa/Hang/internal/domain"
	"github.com/devkiraa/Hang/internal/fingerprint"
	"github.com/devkiraa/Hang/internal/protocol"
	"github.com/devkiraa/Hang/internal/queue"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDebounce   = 100 * time.Millisecond
	DefaultEchoWindow = 500 * time.Millisecond
)

type Options struct {
	Debounce    time.Duration
	EchoWindow  time.Duration
	DisplayName string
	// PlayerReportsChanges is set when the player calls LocalEvent for
	// every change, including the ones the engine makes while applying a
	// remote command. Only then are those callbacks expected and swallowed.
	PlayerReportsChanges bool
	// OnNotice runs on the engine goroutine. It must not block or wait on
	// other engine calls.
	OnNotice func(Notice)
	// Now defaults to time.Now.
	Now func() time.Time
}

type requestKind int

const (
	requestCreate requestKind = iota + 1
	requestJoin
)

type requestResult struct {
	state RoomState
	err   error
}

type pendingRequest struct {
	kind  requestKind
	reply chan requestResult
}

type Engine struct {
	player    Player
	transport Transport
	opts      Options
	now       func() time.Time

	inbox    *queue.Queue[func()]
	stopped  chan struct{}
	snapshot atomic.Pointer[Snapshot]

	// owned by Run
	syncEnabled     bool
	role            domain.Role
	roomID          string
	clientID        string
	fingerprint     string
	fileName        string
	members         []protocol.MemberSummary
	capacity        int
	passcodeEnabled bool
	lastSeq         uint64
	pending         *pendingRequest
	debounce        map[protocol.Action]*debounceSlot
	expected        []expectation
}

func New(player Player, transport Transport, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.EchoWindow <= 0 {
		opts.EchoWindow = DefaultEchoWindow
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		player:      player,
		transport:   transport,
		opts:        opts,
		now:         now,
		inbox:       queue.New[func()](),
		stopped:     make(chan struct{}),
		syncEnabled: true,
		debounce:    make(map[protocol.Action]*debounceSlot),
	}
	e.publish()
	return e
}

// Run processes events until ctx ends or the transport goes away. It
// returns ErrDisconnected in the latter case.
func (e *Engine) Run(ctx context.Context) error {
	defer func() {
		e.inbox.Close()
		e.stopTimers()
		e.failPending(ErrDisconnected)
		e.publish()
		close(e.stopped)
	}()

	inbound := e.transport.Inbound()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.transport.Done():
			e.onDisconnect()
			return ErrDisconnected
		case env, ok := <-inbound:
			if !ok {
				e.onDisconnect()
				return ErrDisconnected
			}
			e.handleInbound(env)
		case <-e.inbox.Ready():
			fns, _ := e.inbox.Drain()
			for _, fn := range fns {
				fn()
			}
		}
		e.publish()
	}
}

// post schedules fn on the engine goroutine.
func (e *Engine) post(fn func()) error {
	if err := e.inbox.Push(fn); err != nil {
		return ErrDisconnected
	}
	return nil
}

// do runs fn on the engine goroutine and waits for it.
func (e *Engine) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := e.post(func() { fn(); e.publish(); close(done) }); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-e.stopped:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) Snapshot() Snapshot { return *e.snapshot.Load() }

func (e *Engine) publish() {
	e.snapshot.Store(&Snapshot{
		SyncEnabled:     e.syncEnabled,
		Role:            e.role,
		RoomID:          e.roomID,
		ClientID:        e.clientID,
		Fingerprint:     e.fingerprint,
		FileName:        e.fileName,
		Members:         slices.Clone(e.members),
		Capacity:        e.capacity,
		PasscodeEnabled: e.passcodeEnabled,
		LastSeq:         e.lastSeq,
	})
}

func (e *Engine) notify(n Notice) {
	if e.opts.OnNotice != nil {
		e.opts.OnNotice(n)
	}
}

// LoadFile fingerprints path and makes it the file offered on create and
// join. Hashing runs on the caller's goroutine.
func (e *Engine) LoadFile(ctx context.Context, path string) (string, error) {
	fp, err := fingerprint.File(path)
	if err != nil {
		return "", err
	}
	return fp, e.SetFingerprint(ctx, fp, filepath.Base(path))
}

func (e *Engine) SetFingerprint(ctx context.Context, fp, fileName string) error {
	return e.do(ctx, func() {
		e.fingerprint = fp
		e.fileName = fileName
	})
}

func (e *Engine) SetSyncEnabled(enabled bool) error {
	return e.post(func() {
		e.syncEnabled = enabled
		log.Info().Str("module", "client").Bool("enabled", enabled).Msg("sync toggled")
	})
}

func (e *Engine) SetDebounce(d time.Duration) error {
	if d <= 0 {
		d = DefaultDebounce
	}
	return e.post(func() { e.opts.Debounce = d })
}

func (e *Engine) SetEchoWindow(d time.Duration) error {
	if d <= 0 {
		d = DefaultEchoWindow
	}
	return e.post(func() { e.opts.EchoWindow = d })
}

type CreateOptions struct {
	Passcode string
	Capacity int
}

type JoinOptions struct {
	Passcode string
}

func (e *Engine) CreateRoom(ctx context.Context, opts CreateOptions) (RoomState, error) {
	return e.request(ctx, requestCreate, func() (protocol.MessageType, any) {
		return protocol.TypeCreateRoom, protocol.CreateRoom{
			FileHash:    e.fingerprint,
			Passcode:    opts.Passcode,
			DisplayName: e.opts.DisplayName,
			Capacity:    opts.Capacity,
		}
	})
}

// JoinRoom fails with ErrNoFileLoaded before contacting the relay when no
// file has been loaded.
func (e *Engine) JoinRoom(ctx context.Context, roomID string, opts JoinOptions) (RoomState, error) {
	return e.request(ctx, requestJoin, func() (protocol.MessageType, any) {
		return protocol.TypeJoinRoom, protocol.JoinRoom{
			RoomID:      roomID,
			FileHash:    e.fingerprint,
			Passcode:    opts.Passcode,
			DisplayName: e.opts.DisplayName,
		}
	})
}

func (e *Engine) request(ctx context.Context, kind requestKind, build func() (protocol.MessageType, any)) (RoomState, error) {
	reply := make(chan requestResult, 1)
	err := e.post(func() {
		switch {
		case e.fingerprint == "":
			reply <- requestResult{err: ErrNoFileLoaded}
			return
		case e.pending != nil:
			reply <- requestResult{err: ErrRequestInFlight}
			return
		}
		t, payload := build()
		if err := e.send(t, payload); err != nil {
			reply <- requestResult{err: err}
			return
		}
		e.pending = &pendingRequest{kind: kind, reply: reply}
	})
	if err != nil {
		return RoomState{}, err
	}

	select {
	case res := <-reply:
		return res.state, res.err
	case <-e.stopped:
		select {
		case res := <-reply:
			return res.state, res.err
		default:
			return RoomState{}, ErrDisconnected
		}
	case <-ctx.Done():
		_ = e.post(func() {
			if e.pending != nil && e.pending.reply == reply {
				e.pending = nil
			}
		})
		return RoomState{}, ctx.Err()
	}
}

// LeaveRoom leaves the current room. Local state is reset immediately.
func (e *Engine) LeaveRoom(ctx context.Context) error {
	return e.do(ctx, func() {
		if e.roomID == "" {
			return
		}
		if err := e.send(protocol.TypeLeaveRoom, nil); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("send leave")
		}
		e.resetRoom()
	})
}

// LocalEvent reports a user-initiated player action. The command carries
// the player's state at the time it is sent.
func (e *Engine) LocalEvent(action protocol.Action) error {
	return e.post(func() { e.onLocal(action) })
}

func (e *Engine) send(t protocol.MessageType, payload any) error {
	env, err := protocol.NewEnvelope(t, payload)
	if err != nil {
		return err
	}
	if err := e.transport.Send(env); err != nil {
		return ErrDisconnected
	}
	return nil
}

func (e *Engine) enterRoom(st RoomState) {
	e.stopTimers()
	e.expected = nil
	e.role = st.Role
	e.roomID = st.RoomID
	e.clientID = st.ClientID
	e.capacity = st.Capacity
	e.passcodeEnabled = st.PasscodeEnabled
	e.members = nil
	e.lastSeq = 0
	e.notify(Notice{Kind: NoticeRoomJoined, RoomID: st.RoomID, Role: st.Role})
}

func (e *Engine) resetRoom() {
	id := e.roomID
	e.stopTimers()
	e.expected = nil
	e.role = domain.RoleUnset
	e.roomID = ""
	e.members = nil
	e.capacity = 0
	e.passcodeEnabled = false
	e.lastSeq = 0
	if id != "" {
		e.notify(Notice{Kind: NoticeRoomLeft, RoomID: id})
	}
}

func (e *Engine) onDisconnect() {
	log.Warn().Str("module", "client").Str("room", e.roomID).Msg("transport disconnected")
	id := e.roomID
	e.resetRoom()
	if id == "" {
		e.notify(Notice{Kind: NoticeRoomLeft})
	}
}

func (e *Engine) failPending(err error) {
	if e.pending == nil {
		return
	}
	e.pending.reply <- requestResult{err: err}
	e.pending = nil
}
