package orch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/devkiraa/Hang/internal/app"
	"github.com/devkiraa/Hang/internal/core"
	"github.com/devkiraa/Hang/internal/domain"
	"github.com/devkiraa/Hang/internal/protocol"
	"github.com/devkiraa/Hang/internal/queue"
	"github.com/sourcegraph/conc"
)

type harness struct {
	t       *testing.T
	o       *Orchestrator
	outbox  map[core.SessionID]*queue.Queue[core.Frame]
	cancels map[core.SessionID]int
}

func newHarness(t *testing.T, sids ...core.SessionID) *harness {
	t.Helper()
	reg := app.NewRegistry()
	h := &harness{
		t:       t,
		o:       New(reg, app.NewRoomManager(reg, domain.DefaultCapacity), app.SimplePolicy{}),
		outbox:  make(map[core.SessionID]*queue.Queue[core.Frame]),
		cancels: make(map[core.SessionID]int),
	}
	for _, sid := range sids {
		h.connect(sid)
	}
	return h
}

func (h *harness) connect(sid core.SessionID) {
	out, err := h.o.Connect(sid, func() { h.cancels[sid]++ })
	if err != nil {
		h.t.Fatalf("connect %s: %v", sid, err)
	}
	h.outbox[sid] = out
}

// drain returns every envelope queued for sid so far.
func (h *harness) drain(sid core.SessionID) []protocol.Envelope {
	h.t.Helper()
	frames, _ := h.outbox[sid].Drain()
	out := make([]protocol.Envelope, 0, len(frames))
	for _, f := range frames {
		env, err := protocol.Decode(f)
		if err != nil {
			h.t.Fatalf("decode frame for %s: %v", sid, err)
		}
		out = append(out, env)
	}
	return out
}

func (h *harness) broadcasts(sid core.SessionID) []protocol.SyncBroadcast {
	h.t.Helper()
	var out []protocol.SyncBroadcast
	for _, env := range h.drain(sid) {
		if env.Type != protocol.TypeSyncBroadcast {
			continue
		}
		var b protocol.SyncBroadcast
		if err := env.Bind(&b); err != nil {
			h.t.Fatal(err)
		}
		out = append(out, b)
	}
	return out
}

func (h *harness) create(sid core.SessionID, fp string) domain.RoomID {
	h.t.Helper()
	res, err := h.o.CreateRoom(sid, protocol.CreateRoom{FileHash: fp})
	if err != nil {
		h.t.Fatalf("create: %v", err)
	}
	return res.Room.Room().ID
}

func TestScenarioCreateJoinRelay(t *testing.T) {
	h := newHarness(t, "a", "b")
	id := h.create("a", "abc123")

	res, err := h.o.JoinRoom("b", protocol.JoinRoom{RoomID: string(id), FileHash: "abc123"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Role != domain.RoleGuest {
		t.Errorf("expected guest, got %v", res.Role)
	}
	h.drain("a")
	h.drain("b")

	if _, err := h.o.OnSyncCommand("a", protocol.Play(12.5)); err != nil {
		t.Fatal(err)
	}
	got := h.broadcasts("b")
	if len(got) != 1 {
		t.Fatalf("expected one broadcast for b, got %d", len(got))
	}
	if got[0].FromClient != "a" || got[0].Command.Action() != protocol.ActionPlay || got[0].Command.Timestamp() != 12.5 {
		t.Errorf("unexpected broadcast %+v", got[0])
	}
	if echoes := h.broadcasts("a"); len(echoes) != 0 {
		t.Errorf("origin received its own command: %v", echoes)
	}
}

func TestScenarioFingerprintMismatch(t *testing.T) {
	h := newHarness(t, "a", "b")
	id := h.create("a", "abc123")

	if _, err := h.o.JoinRoom("b", protocol.JoinRoom{RoomID: string(id), FileHash: "abc124"}); !errors.Is(err, core.ErrFileHashMismatch) {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
	if members := h.o.Rooms.MembersOf(id); len(members) != 1 {
		t.Errorf("room membership changed: %v", members)
	}
	if _, err := h.o.OnSyncCommand("b", protocol.Pause(1)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("unbound connection relayed a command: %v", err)
	}
}

func TestFingerprintIsComparedExactly(t *testing.T) {
	h := newHarness(t, "a", "b")
	id := h.create("a", "abc123")

	for _, fp := range []string{"abc123 ", " abc123", "ABC123", "abc123\n"} {
		if _, err := h.o.JoinRoom("b", protocol.JoinRoom{RoomID: string(id), FileHash: fp}); !errors.Is(err, core.ErrFileHashMismatch) {
			t.Errorf("file_hash %q: expected hash mismatch, got %v", fp, err)
		}
	}
	if members := h.o.Rooms.MembersOf(id); len(members) != 1 {
		t.Fatalf("room membership changed: %v", members)
	}
	if _, err := h.o.JoinRoom("b", protocol.JoinRoom{RoomID: string(id), FileHash: "abc123"}); err != nil {
		t.Fatalf("exact fingerprint rejected: %v", err)
	}
}

func TestScenarioUnknownRoom(t *testing.T) {
	h := newHarness(t, "a")
	if _, err := h.o.JoinRoom("a", protocol.JoinRoom{RoomID: "nope", FileHash: "x"}); !errors.Is(err, core.ErrRoomNotFound) {
		t.Errorf("expected room not found, got %v", err)
	}
	if _, err := h.o.JoinRoom("a", protocol.JoinRoom{FileHash: "x"}); !errors.Is(err, core.ErrRoomNotFound) {
		t.Errorf("empty room id: expected room not found, got %v", err)
	}
}

func TestScenarioLastMemberDisconnect(t *testing.T) {
	h := newHarness(t, "a", "b")
	id := h.create("a", "fp")
	if _, err := h.o.JoinRoom("b", protocol.JoinRoom{RoomID: string(id), FileHash: "fp"}); err != nil {
		t.Fatal(err)
	}
	h.drain("b")

	h.o.OnDisconnect("a")
	roster := lastRoster(t, h.drain("b"))
	if len(roster.Members) != 1 || roster.Members[0].ClientID != "b" || roster.Members[0].IsHost {
		t.Errorf("unexpected roster after host left %+v", roster)
	}

	h.o.OnDisconnect("b")
	if _, ok := h.o.Rooms.GetRoom(id); ok {
		t.Error("room should be gone after the last member disconnects")
	}

	h.connect("c")
	if _, err := h.o.JoinRoom("c", protocol.JoinRoom{RoomID: string(id), FileHash: "fp"}); !errors.Is(err, core.ErrRoomNotFound) {
		t.Errorf("deleted room accepted a join: %v", err)
	}
}

func TestScenarioLeaveThenCommand(t *testing.T) {
	h := newHarness(t, "a", "b")
	id := h.create("a", "fp")
	_, _ = h.o.JoinRoom("b", protocol.JoinRoom{RoomID: string(id), FileHash: "fp"})

	if res := h.o.LeaveRoom("b"); !res.Left || res.RoomID != id {
		t.Fatalf("unexpected leave %+v", res)
	}
	h.drain("a")
	if _, err := h.o.OnSyncCommand("b", protocol.Seek(3)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}
	if got := h.broadcasts("a"); len(got) != 0 {
		t.Errorf("a received a command from a departed member: %v", got)
	}
}

func TestInvalidCommandRejected(t *testing.T) {
	h := newHarness(t, "a")
	h.create("a", "fp")
	if _, err := h.o.OnSyncCommand("a", protocol.Speed(0)); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected invalid request, got %v", err)
	}
	if _, err := h.o.CreateRoom("a", protocol.CreateRoom{}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected invalid request for empty hash, got %v", err)
	}
}

func TestRelayFailureDisconnects(t *testing.T) {
	h := newHarness(t, "a", "b")
	id := h.create("a", "fp")
	_, _ = h.o.JoinRoom("b", protocol.JoinRoom{RoomID: string(id), FileHash: "fp"})

	// b's writer is gone but its read loop has not reported yet
	h.outbox["b"].Close()

	res, err := h.o.OnSyncCommand("a", protocol.Stop())
	if err != nil {
		t.Fatal(err)
	}
	if res.SendTo != 0 || len(res.Failed) != 1 || res.Failed[0] != "b" {
		t.Errorf("unexpected publish result %+v", res)
	}
	if h.cancels["b"] != 1 {
		t.Errorf("policy should disconnect b once, got %d", h.cancels["b"])
	}
}

func TestDisplayNameInRoster(t *testing.T) {
	h := newHarness(t, "a")
	res, err := h.o.CreateRoom("a", protocol.CreateRoom{FileHash: "fp", DisplayName: "  Alice "})
	if err != nil {
		t.Fatal(err)
	}
	roster := h.o.Roster(res.Room)
	if len(roster.Members) != 1 || roster.Members[0].DisplayName != "Alice" || !roster.Members[0].IsHost {
		t.Errorf("unexpected roster %+v", roster)
	}
}

func TestPerOriginOrderingAndExactlyOnce(t *testing.T) {
	const senders, perSender = 4, 50
	h := newHarness(t, "listener")
	id := h.create("listener", "fp")

	var origins []core.SessionID
	for i := range senders {
		sid := core.SessionID(fmt.Sprintf("s%d", i))
		h.connect(sid)
		if _, err := h.o.JoinRoom(sid, protocol.JoinRoom{RoomID: string(id), FileHash: "fp"}); err != nil {
			t.Fatal(err)
		}
		origins = append(origins, sid)
	}
	h.drain("listener")

	var wg conc.WaitGroup
	for _, sid := range origins {
		wg.Go(func() {
			for i := range perSender {
				if _, err := h.o.OnSyncCommand(sid, protocol.Seek(float64(i))); err != nil {
					t.Errorf("relay: %v", err)
				}
			}
		})
	}
	wg.Wait()

	next := make(map[string]float64)
	var lastSeq uint64
	got := h.broadcasts("listener")
	if len(got) != senders*perSender {
		t.Fatalf("expected %d broadcasts, got %d", senders*perSender, len(got))
	}
	for _, b := range got {
		if b.Command.Timestamp() != next[b.FromClient] {
			t.Fatalf("out of order from %s: got %v want %v", b.FromClient, b.Command.Timestamp(), next[b.FromClient])
		}
		next[b.FromClient]++
		if b.Seq <= lastSeq {
			t.Fatalf("sequence not increasing: %d after %d", b.Seq, lastSeq)
		}
		lastSeq = b.Seq
	}
}

func lastRoster(t *testing.T, envs []protocol.Envelope) protocol.RoomMemberUpdate {
	t.Helper()
	var out protocol.RoomMemberUpdate
	found := false
	for _, env := range envs {
		if env.Type == protocol.TypeRoomMemberUpdate {
			if err := env.Bind(&out); err != nil {
				t.Fatal(err)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("no roster update")
	}
	return out
}
