package core

import (
	"sync"

	"github.com/devkiraa/Hang/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room *domain.Room

	pubMu sync.Mutex
	seq   uint64

	mu      sync.RWMutex
	host    SessionID
	members map[SessionID]struct{}
	closed  bool
}

// NewRoomService creates a room whose only member and host is host.
func NewRoomService(room *domain.Room, host SessionID) RoomService {
	return &roomImpl{
		room:    room,
		host:    host,
		members: map[SessionID]struct{}{host: {}},
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) Host() (SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.host, r.host != ""
}

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) Members() []SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionID, 0, len(r.members))
	for sid := range r.members {
		out = append(out, sid)
	}
	return out
}

func (r *roomImpl) Has(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[sid]
	return ok
}

func (r *roomImpl) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *roomImpl) Admit(sid SessionID, fp domain.Fingerprint, passcode string) (domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.RoleUnset, ErrRoomNotFound
	}
	if fp != r.room.Fingerprint {
		return domain.RoleUnset, ErrFileHashMismatch
	}
	if !r.room.CheckPasscode(passcode) {
		return domain.RoleUnset, ErrInvalidPasscode
	}

	role := domain.RoleGuest
	if sid == r.host {
		role = domain.RoleHost
	}
	if _, ok := r.members[sid]; ok {
		return role, nil
	}
	if len(r.members) >= r.room.Capacity {
		return domain.RoleUnset, ErrRoomFull
	}
	r.members[sid] = struct{}{}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member added")
	return role, nil
}

func (r *roomImpl) RemoveMember(sid SessionID) (removed, emptied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[sid]; !ok {
		return false, false
	}
	delete(r.members, sid)
	if r.host == sid {
		r.host = ""
	}
	if len(r.members) == 0 {
		r.closed = true
		emptied = true
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Bool("emptied", emptied).Msg("member removed")
	return true, emptied
}

func (r *roomImpl) Sequence(fn func(seq uint64)) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	r.seq++
	fn(r.seq)
}
