package client

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/devkiraa/Hang/internal/domain"
	"github.com/devkiraa/Hang/internal/player"
	"github.com/devkiraa/Hang/internal/protocol"
	"go.uber.org/mock/gomock"
)

type fakeTransport struct {
	mu      sync.Mutex
	sent    []protocol.Envelope
	inbound chan protocol.Envelope
	done    chan struct{}
	once    sync.Once
	respond func(protocol.Envelope) []protocol.Envelope
}

func newFakeTransport() *fakeTransport {
	tr := &fakeTransport{
		inbound: make(chan protocol.Envelope, 64),
		done:    make(chan struct{}),
	}
	tr.respond = fakeRelay
	return tr
}

func (f *fakeTransport) Send(env protocol.Envelope) error {
	select {
	case <-f.done:
		return errors.New("closed")
	default:
	}
	f.mu.Lock()
	f.sent = append(f.sent, env)
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		for _, r := range respond(env) {
			f.inbound <- r
		}
	}
	return nil
}

func (f *fakeTransport) Inbound() <-chan protocol.Envelope { return f.inbound }
func (f *fakeTransport) Done() <-chan struct{}             { return f.done }
func (f *fakeTransport) Close() error                      { f.disconnect(); return nil }
func (f *fakeTransport) disconnect()                       { f.once.Do(func() { close(f.done) }) }

func (f *fakeTransport) deliver(t *testing.T, typ protocol.MessageType, payload any) {
	t.Helper()
	env, err := protocol.NewEnvelope(typ, payload)
	if err != nil {
		t.Fatal(err)
	}
	f.inbound <- env
}

func (f *fakeTransport) sentOf(typ protocol.MessageType) []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Envelope
	for _, env := range f.sent {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeTransport) commands(t *testing.T) []protocol.SyncCommand {
	t.Helper()
	var out []protocol.SyncCommand
	for _, env := range f.sentOf(protocol.TypeSyncCommand) {
		var cmd protocol.SyncCommand
		if err := env.Bind(&cmd); err != nil {
			t.Fatal(err)
		}
		out = append(out, cmd)
	}
	return out
}

// fakeRelay answers room requests the way the relay would for a single
// room "r1" holding file "abc".
func fakeRelay(env protocol.Envelope) []protocol.Envelope {
	reply := func(typ protocol.MessageType, payload any) []protocol.Envelope {
		out, _ := protocol.NewEnvelope(typ, payload)
		return []protocol.Envelope{out}
	}
	switch env.Type {
	case protocol.TypeCreateRoom:
		return reply(protocol.TypeRoomCreated, protocol.RoomCreated{RoomID: "r1", ClientID: "me", Capacity: 12})
	case protocol.TypeJoinRoom:
		var req protocol.JoinRoom
		_ = env.Bind(&req)
		switch req.RoomID {
		case "r1":
			if req.FileHash != "abc" {
				return reply(protocol.TypeFileHashMismatch, nil)
			}
			return reply(protocol.TypeRoomJoined, protocol.RoomJoined{RoomID: "r1", ClientID: "me", Capacity: 12})
		case "full":
			return reply(protocol.TypeRoomFull, protocol.RoomFull{Capacity: 2})
		case "locked":
			return reply(protocol.TypeInvalidPasscode, nil)
		case "busted":
			return reply(protocol.TypeError, protocol.Error{Message: "boom"})
		}
		return reply(protocol.TypeRoomNotFound, nil)
	}
	return nil
}

type testEngine struct {
	*Engine
	tr      *fakeTransport
	notices chan Notice
	runErr  chan error
}

func startEngine(t *testing.T, p Player, opts Options) *testEngine {
	t.Helper()
	tr := newFakeTransport()
	notices := make(chan Notice, 64)
	opts.OnNotice = func(n Notice) {
		select {
		case notices <- n:
		default:
		}
	}
	e := New(p, tr, opts)
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()
	te := &testEngine{Engine: e, tr: tr, notices: notices, runErr: runErr}
	t.Cleanup(func() {
		cancel()
		<-e.stopped
	})
	return te
}

func (te *testEngine) barrier(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := te.do(ctx, func() {}); err != nil {
		t.Fatalf("barrier: %v", err)
	}
}

func (te *testEngine) joinR1(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := te.SetFingerprint(ctx, "abc", "movie.mkv"); err != nil {
		t.Fatal(err)
	}
	if _, err := te.JoinRoom(ctx, "r1", JoinOptions{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	te.waitNotice(t, NoticeRoomJoined)
}

func (te *testEngine) waitNotice(t *testing.T, kind NoticeKind) Notice {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case n := <-te.notices:
			if n.Kind == kind {
				return n
			}
		case <-timeout:
			t.Fatalf("no %s notice", kind)
		}
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestJoinRequiresLoadedFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	te := startEngine(t, NewMockPlayer(ctrl), Options{})

	if _, err := te.JoinRoom(context.Background(), "r1", JoinOptions{}); !errors.Is(err, ErrNoFileLoaded) {
		t.Fatalf("expected ErrNoFileLoaded, got %v", err)
	}
	if _, err := te.CreateRoom(context.Background(), CreateOptions{}); !errors.Is(err, ErrNoFileLoaded) {
		t.Fatalf("expected ErrNoFileLoaded, got %v", err)
	}
	if n := len(te.tr.sentOf(protocol.TypeJoinRoom)) + len(te.tr.sentOf(protocol.TypeCreateRoom)); n != 0 {
		t.Errorf("request reached the network: %d", n)
	}
}

func TestJoinFailuresAreDistinct(t *testing.T) {
	ctrl := gomock.NewController(t)
	te := startEngine(t, NewMockPlayer(ctrl), Options{})
	ctx := context.Background()
	if err := te.SetFingerprint(ctx, "abd", "movie.mkv"); err != nil {
		t.Fatal(err)
	}

	cases := map[string]error{
		"r1":      ErrFileHashMismatch,
		"missing": ErrRoomNotFound,
		"full":    ErrRoomFull,
		"locked":  ErrInvalidPasscode,
		"busted":  ErrServer,
	}
	for room, want := range cases {
		if _, err := te.JoinRoom(ctx, room, JoinOptions{}); !errors.Is(err, want) {
			t.Errorf("join %s: got %v, want %v", room, err, want)
		}
	}
	if s := te.Snapshot(); s.Role != domain.RoleUnset || s.RoomID != "" {
		t.Errorf("failed joins changed state: %+v", s)
	}
	if got := len(te.tr.sentOf(protocol.TypeJoinRoom)); got != len(cases) {
		t.Errorf("expected one attempt per join, got %d", got)
	}
}

func TestCreateRoomMakesHost(t *testing.T) {
	ctrl := gomock.NewController(t)
	te := startEngine(t, NewMockPlayer(ctrl), Options{DisplayName: "Ann"})
	ctx := context.Background()
	_ = te.SetFingerprint(ctx, "abc", "movie.mkv")

	st, err := te.CreateRoom(ctx, CreateOptions{Passcode: "pin", Capacity: 4})
	if err != nil {
		t.Fatal(err)
	}
	if st.Role != domain.RoleHost || st.RoomID != "r1" {
		t.Errorf("unexpected room state %+v", st)
	}
	var req protocol.CreateRoom
	_ = te.tr.sentOf(protocol.TypeCreateRoom)[0].Bind(&req)
	if req.FileHash != "abc" || req.Passcode != "pin" || req.Capacity != 4 || req.DisplayName != "Ann" {
		t.Errorf("unexpected request %+v", req)
	}
	if s := te.Snapshot(); s.Role != domain.RoleHost || s.ClientID != "me" {
		t.Errorf("unexpected snapshot %+v", s)
	}
}

func TestRemoteCommandIsAppliedWithoutEcho(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPlayer(ctrl)
	te := startEngine(t, p, Options{PlayerReportsChanges: true})
	te.joinR1(t)

	// the player reports its own state changes back as local events
	gomock.InOrder(
		p.EXPECT().Seek(125.3).Do(func(float64) { _ = te.LocalEvent(protocol.ActionSeek) }),
		p.EXPECT().Play().Do(func() { _ = te.LocalEvent(protocol.ActionPlay) }),
	)
	te.tr.deliver(t, protocol.TypeSyncBroadcast, protocol.SyncBroadcast{FromClient: "peer", Seq: 1, Command: protocol.Play(125.3)})

	n := te.waitNotice(t, NoticeRemoteCommand)
	if n.From != "peer" || n.Command.Action() != protocol.ActionPlay {
		t.Errorf("unexpected notice %+v", n)
	}
	te.barrier(t)
	if cmds := te.tr.commands(t); len(cmds) != 0 {
		t.Errorf("applied command was echoed back: %v", cmds)
	}
}

func TestEchoWindowExpires(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPlayer(ctrl)
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	te := startEngine(t, p, Options{Now: clock, PlayerReportsChanges: true})
	te.joinR1(t)

	p.EXPECT().Pause()
	p.EXPECT().Seek(10.0)
	te.tr.deliver(t, protocol.TypeSyncBroadcast, protocol.SyncBroadcast{FromClient: "peer", Seq: 1, Command: protocol.Pause(10)})
	te.waitNotice(t, NoticeRemoteCommand)

	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()

	// the player never reported the pause; a genuine one later must go out
	p.EXPECT().Position().Return(11.0)
	_ = te.LocalEvent(protocol.ActionPause)
	te.barrier(t)
	cmds := te.tr.commands(t)
	if len(cmds) != 1 || cmds[0].Action() != protocol.ActionPause || cmds[0].Timestamp() != 11 {
		t.Errorf("expected one pause at 11s, got %v", cmds)
	}
}

func TestSilentPlayerNeverSwallowsUserActions(t *testing.T) {
	p := player.NewVirtual(0)
	te := startEngine(t, p, Options{})
	te.joinR1(t)

	te.tr.deliver(t, protocol.TypeSyncBroadcast, protocol.SyncBroadcast{FromClient: "peer", Seq: 1, Command: protocol.Play(10)})
	te.waitNotice(t, NoticeRemoteCommand)
	if p.State() != player.Playing {
		t.Fatalf("remote play not applied, state %s", p.State())
	}

	// right after the remote command, well inside the echo window
	p.Seek(50)
	_ = te.LocalEvent(protocol.ActionSeek)
	p.Pause()
	_ = te.LocalEvent(protocol.ActionPause)
	te.barrier(t)

	cmds := te.tr.commands(t)
	if len(cmds) != 2 {
		t.Fatalf("expected the seek and the pause to be sent, got %v", cmds)
	}
	if cmds[0].Action() != protocol.ActionSeek || math.Abs(cmds[0].Timestamp()-50) > 0.5 {
		t.Errorf("unexpected first command %v", cmds[0])
	}
	if cmds[1].Action() != protocol.ActionPause || math.Abs(cmds[1].Timestamp()-50) > 0.5 {
		t.Errorf("unexpected second command %v", cmds[1])
	}
}

func TestStaleBroadcastIsDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPlayer(ctrl)
	te := startEngine(t, p, Options{})
	te.joinR1(t)

	gomock.InOrder(
		p.EXPECT().Seek(10.0),
		p.EXPECT().Seek(20.0),
	)
	te.tr.deliver(t, protocol.TypeSyncBroadcast, protocol.SyncBroadcast{FromClient: "peer", Seq: 2, Command: protocol.Seek(10)})
	te.tr.deliver(t, protocol.TypeSyncBroadcast, protocol.SyncBroadcast{FromClient: "peer", Seq: 1, Command: protocol.Seek(5)})
	te.tr.deliver(t, protocol.TypeSyncBroadcast, protocol.SyncBroadcast{FromClient: "peer", Seq: 3, Command: protocol.Seek(20)})

	te.waitNotice(t, NoticeRemoteCommand)
	te.waitNotice(t, NoticeRemoteCommand)
	eventually(t, func() bool { return te.Snapshot().LastSeq == 3 }, "last seq not advanced")
}

func TestSyncDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPlayer(ctrl)
	te := startEngine(t, p, Options{})
	te.joinR1(t)
	_ = te.SetSyncEnabled(false)
	te.barrier(t)

	te.tr.deliver(t, protocol.TypeSyncBroadcast, protocol.SyncBroadcast{FromClient: "peer", Seq: 1, Command: protocol.Stop()})
	eventually(t, func() bool { return te.Snapshot().LastSeq == 1 }, "broadcast not processed")

	_ = te.LocalEvent(protocol.ActionStop)
	te.barrier(t)
	if cmds := te.tr.commands(t); len(cmds) != 0 {
		t.Errorf("sync disabled but sent %v", cmds)
	}
	if te.Snapshot().SyncEnabled {
		t.Error("snapshot should show sync disabled")
	}
}

func TestPlayPauseAreNeverDebounced(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPlayer(ctrl)
	te := startEngine(t, p, Options{Debounce: time.Hour})
	te.joinR1(t)

	p.EXPECT().Position().Return(1.0).Times(3)
	for _, a := range []protocol.Action{protocol.ActionPlay, protocol.ActionPause, protocol.ActionPlay} {
		_ = te.LocalEvent(a)
	}
	_ = te.LocalEvent(protocol.ActionStop)
	te.barrier(t)

	cmds := te.tr.commands(t)
	want := []protocol.Action{protocol.ActionPlay, protocol.ActionPause, protocol.ActionPlay, protocol.ActionStop}
	if len(cmds) != len(want) {
		t.Fatalf("expected %d commands, got %v", len(want), cmds)
	}
	for i, a := range want {
		if cmds[i].Action() != a {
			t.Errorf("command %d: got %s want %s", i, cmds[i].Action(), a)
		}
	}
}

func TestSeekBurstIsCoalesced(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPlayer(ctrl)
	te := startEngine(t, p, Options{Debounce: 50 * time.Millisecond})
	te.joinR1(t)

	p.EXPECT().Position().Return(7.0)
	_ = te.LocalEvent(protocol.ActionSeek)
	te.barrier(t)

	p.EXPECT().Position().Return(42.0)
	for range 9 {
		_ = te.LocalEvent(protocol.ActionSeek)
	}
	te.barrier(t)
	if got := len(te.tr.commands(t)); got != 1 {
		t.Fatalf("expected only the leading seek, got %d", got)
	}

	eventually(t, func() bool { return len(te.tr.commands(t)) == 2 }, "trailing seek not flushed")
	time.Sleep(150 * time.Millisecond)
	cmds := te.tr.commands(t)
	if len(cmds) != 2 {
		t.Fatalf("burst produced %d commands", len(cmds))
	}
	if cmds[0].Timestamp() != 7 || cmds[1].Timestamp() != 42 {
		t.Errorf("unexpected positions %v", cmds)
	}
}

func TestLeaveRoomResetsState(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPlayer(ctrl)
	te := startEngine(t, p, Options{})
	te.joinR1(t)

	if err := te.LeaveRoom(context.Background()); err != nil {
		t.Fatal(err)
	}
	te.waitNotice(t, NoticeRoomLeft)
	if len(te.tr.sentOf(protocol.TypeLeaveRoom)) != 1 {
		t.Error("LeaveRoom not sent")
	}
	if s := te.Snapshot(); s.RoomID != "" || s.Role != domain.RoleUnset {
		t.Errorf("state not reset %+v", s)
	}

	// late broadcasts from the old room are ignored; no player calls expected
	te.tr.deliver(t, protocol.TypeSyncBroadcast, protocol.SyncBroadcast{FromClient: "peer", Seq: 9, Command: protocol.Stop()})
	_ = te.LocalEvent(protocol.ActionPlay)
	te.barrier(t)
	if cmds := te.tr.commands(t); len(cmds) != 0 {
		t.Errorf("sent commands outside a room: %v", cmds)
	}
}

func TestRosterUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	te := startEngine(t, NewMockPlayer(ctrl), Options{})
	te.joinR1(t)

	te.tr.deliver(t, protocol.TypeRoomMemberUpdate, protocol.RoomMemberUpdate{
		RoomID:   "r1",
		Capacity: 12,
		Members:  []protocol.MemberSummary{{ClientID: "me"}, {ClientID: "peer", IsHost: true}},
	})
	n := te.waitNotice(t, NoticeRoster)
	if len(n.Members) != 2 {
		t.Fatalf("unexpected roster %+v", n)
	}
	eventually(t, func() bool { return len(te.Snapshot().Members) == 2 }, "snapshot roster not updated")
}

func TestDisconnectLeavesRoom(t *testing.T) {
	ctrl := gomock.NewController(t)
	te := startEngine(t, NewMockPlayer(ctrl), Options{})
	te.joinR1(t)

	te.tr.disconnect()
	select {
	case err := <-te.runErr:
		if !errors.Is(err, ErrDisconnected) {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after disconnect")
	}
	te.waitNotice(t, NoticeRoomLeft)
	if s := te.Snapshot(); s.RoomID != "" || s.Role != domain.RoleUnset {
		t.Errorf("state not reset %+v", s)
	}
	if _, err := te.JoinRoom(context.Background(), "r1", JoinOptions{}); !errors.Is(err, ErrDisconnected) {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
}
