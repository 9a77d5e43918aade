package app

import (
	"slices"
	"strings"

	"github.com/devkiraa/Hang/internal/core"
	"github.com/devkiraa/Hang/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManagerImpl is the room directory. Rooms live in a sharded map keyed
// by id; per-connection bindings are kept in the membership index.
type RoomManagerImpl struct {
	rooms           *core.ShardMap[domain.RoomID, core.RoomService]
	index           core.MembershipIndex
	defaultCapacity int
}

func NewRoomManager(index core.MembershipIndex, defaultCapacity int) *RoomManagerImpl {
	return &RoomManagerImpl{
		rooms:           core.NewShardMap[domain.RoomID, core.RoomService](),
		index:           index,
		defaultCapacity: defaultCapacity,
	}
}

// CreateRoom makes host the first member of a fresh room, moving it out of
// any room it was in.
func (m *RoomManagerImpl) CreateRoom(host core.SessionID, spec domain.RoomSpec) (core.JoinResult, error) {
	if !m.index.Has(host) {
		return core.JoinResult{}, core.ErrUnknownConnection
	}
	prev := m.Leave(host)

	var room core.RoomService
	for {
		meta := domain.NewRoom(domain.NewRoomID(), spec, m.defaultCapacity)
		candidate := core.NewRoomService(meta, host)
		if _, loaded := m.rooms.LoadOrStore(meta.ID, candidate); !loaded {
			room = candidate
			break
		}
	}
	id := room.Room().ID
	if !m.index.BindRoom(host, id) {
		// connection vanished between the check and the bind
		m.rooms.Delete(id)
		return core.JoinResult{}, core.ErrUnknownConnection
	}
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("sid", string(host)).Int("capacity", room.Room().Capacity).Msg("room created")
	return core.JoinResult{Role: domain.RoleHost, Room: room, Previous: prev}, nil
}

// Join admits sid to room id. The previous room, if different, is released
// only once admission succeeded.
func (m *RoomManagerImpl) Join(sid core.SessionID, id domain.RoomID, fp domain.Fingerprint, passcode string) (core.JoinResult, error) {
	if !m.index.Has(sid) {
		return core.JoinResult{}, core.ErrUnknownConnection
	}
	room, ok := m.rooms.Load(id)
	if !ok {
		return core.JoinResult{}, core.ErrRoomNotFound
	}
	role, err := room.Admit(sid, fp, passcode)
	if err != nil {
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("sid", string(sid)).Err(err).Msg("join refused")
		return core.JoinResult{}, err
	}

	var prev core.LeaveResult
	if cur, bound := m.index.RoomOf(sid); bound && cur != id {
		prev = m.Leave(sid)
	}
	m.index.BindRoom(sid, id)
	return core.JoinResult{Role: role, Room: room, Previous: prev}, nil
}

func (m *RoomManagerImpl) Leave(sid core.SessionID) core.LeaveResult {
	id, ok := m.index.RoomOf(sid)
	if !ok {
		return core.LeaveResult{}
	}
	m.index.UnbindRoom(sid)
	res := core.LeaveResult{RoomID: id}

	room, ok := m.rooms.Load(id)
	if !ok {
		return res
	}
	host, _ := room.Host()
	removed, emptied := room.RemoveMember(sid)
	res.Left = removed
	res.WasHost = removed && host == sid
	if emptied {
		res.Deleted = m.rooms.DeleteIf(id, func(cur core.RoomService) bool { return cur == room })
		if res.Deleted {
			log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted")
		}
	}
	return res
}

func (m *RoomManagerImpl) MembersOf(id domain.RoomID) []core.SessionID {
	room, ok := m.rooms.Load(id)
	if !ok {
		return nil
	}
	return room.Members()
}

func (m *RoomManagerImpl) GetRoom(id domain.RoomID) (core.RoomService, bool) {
	room, ok := m.rooms.Load(id)
	if !ok || room.Closed() {
		return nil, false
	}
	return room, true
}

func (m *RoomManagerImpl) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0, m.rooms.Len())
	m.rooms.Range(func(id domain.RoomID, r core.RoomService) bool {
		count := r.MemberCount()
		if count == 0 || r.Closed() {
			return true
		}
		_, hasHost := r.Host()
		out = append(out, core.RoomInfo{
			ID:              id,
			MemberCount:     count,
			Capacity:        r.Room().Capacity,
			PasscodeEnabled: r.Room().PasscodeEnabled(),
			HasHost:         hasHost,
		})
		return true
	})
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

func (m *RoomManagerImpl) Count() int { return m.rooms.Len() }
