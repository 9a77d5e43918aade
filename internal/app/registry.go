package app

import (
	"errors"
	"sync"
	"time"

	"github.com/devkiraa/Hang/internal/core"
	"github.com/devkiraa/Hang/internal/domain"
	"github.com/devkiraa/Hang/internal/queue"
	"github.com/rs/zerolog/log"
)

var (
	ErrDuplicateConnection = errors.New("connection already registered")
	ErrDeliveryFailed      = errors.New("delivery failed")
)

// ClientInfo is the registry's view of one connection.
type ClientInfo struct {
	SID         core.SessionID
	RoomID      domain.RoomID
	DisplayName string
	ConnectedAt time.Time
}

type clientEntry struct {
	mu     sync.RWMutex
	info   ClientInfo
	outbox *queue.Queue[core.Frame]
	cancel func()
}

// Registry tracks live connections, their outbound queue and the room each
// one is bound to. It implements core.MembershipIndex.
type Registry struct {
	clients *core.ShardMap[core.SessionID, *clientEntry]
}

func NewRegistry() *Registry {
	return &Registry{clients: core.NewShardMap[core.SessionID, *clientEntry]()}
}

// Register adds a connection and returns its outbox. cancel is invoked by
// Cancel and must tear the transport down.
func (r *Registry) Register(sid core.SessionID, cancel func()) (*queue.Queue[core.Frame], error) {
	e := &clientEntry{
		info: ClientInfo{
			SID:         sid,
			DisplayName: domain.DefaultDisplayName(string(sid)),
			ConnectedAt: time.Now().UTC(),
		},
		outbox: queue.New[core.Frame](),
		cancel: cancel,
	}
	if _, loaded := r.clients.LoadOrStore(sid, e); loaded {
		return nil, ErrDuplicateConnection
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("registered connection")
	return e.outbox, nil
}

// Unregister drops the connection and closes its outbox. The returned info
// still carries the last room binding.
func (r *Registry) Unregister(sid core.SessionID) (ClientInfo, bool) {
	e, ok := r.clients.Delete(sid)
	if !ok {
		return ClientInfo{}, false
	}
	e.outbox.Close()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered connection")
	return e.snapshot(), true
}

func (r *Registry) Info(sid core.SessionID) (ClientInfo, bool) {
	e, ok := r.clients.Load(sid)
	if !ok {
		return ClientInfo{}, false
	}
	return e.snapshot(), true
}

func (r *Registry) SetDisplayName(sid core.SessionID, name string) bool {
	e, ok := r.clients.Load(sid)
	if !ok {
		return false
	}
	e.mu.Lock()
	e.info.DisplayName = name
	e.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("display_name", name).Msg("updated display name")
	return true
}

func (r *Registry) Has(sid core.SessionID) bool {
	_, ok := r.clients.Load(sid)
	return ok
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	e, ok := r.clients.Load(sid)
	if !ok {
		return "", false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info.RoomID, e.info.RoomID != ""
}

func (r *Registry) BindRoom(sid core.SessionID, id domain.RoomID) bool {
	e, ok := r.clients.Load(sid)
	if !ok {
		return false
	}
	e.mu.Lock()
	e.info.RoomID = id
	e.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(id)).Msg("bound room")
	return true
}

func (r *Registry) UnbindRoom(sid core.SessionID) {
	e, ok := r.clients.Load(sid)
	if !ok {
		return
	}
	e.mu.Lock()
	e.info.RoomID = ""
	e.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed room association")
}

// Send enqueues frame on the connection's outbox without blocking.
func (r *Registry) Send(sid core.SessionID, frame core.Frame) error {
	e, ok := r.clients.Load(sid)
	if !ok {
		return core.ErrUnknownConnection
	}
	if err := e.outbox.Push(frame); err != nil {
		return ErrDeliveryFailed
	}
	return nil
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	e, ok := r.clients.Load(sid)
	if !ok {
		return false
	}
	if e.cancel != nil {
		e.cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (r *Registry) Count() int { return r.clients.Len() }

func (e *clientEntry) snapshot() ClientInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info
}
