package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/devkiraa/Hang/internal/client"
	"github.com/devkiraa/Hang/internal/invite"
	"github.com/devkiraa/Hang/internal/player"
	"github.com/devkiraa/Hang/internal/protocol"
)

var errQuit = errors.New("quit")

// syncEngine is the part of client.Engine the shell drives.
type syncEngine interface {
	CreateRoom(ctx context.Context, opts client.CreateOptions) (client.RoomState, error)
	JoinRoom(ctx context.Context, roomID string, opts client.JoinOptions) (client.RoomState, error)
	LeaveRoom(ctx context.Context) error
	LocalEvent(action protocol.Action) error
	SetSyncEnabled(enabled bool) error
	Snapshot() client.Snapshot
}

// shell executes one interactive line at a time against the engine and
// the local player.
type shell struct {
	engine     syncEngine
	player     *player.Virtual
	out        *syncWriter
	server     string
	reqTimeout time.Duration

	passcode string // of the current room, for invites
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func newShell(e syncEngine, p *player.Virtual, out io.Writer, server string, reqTimeout time.Duration) *shell {
	if reqTimeout <= 0 {
		reqTimeout = 10 * time.Second
	}
	return &shell{engine: e, player: p, out: &syncWriter{w: out}, server: server, reqTimeout: reqTimeout}
}

// exec runs a single line. It returns errQuit when the user asked to leave.
func (s *shell) exec(ctx context.Context, line string) error {
	args, err := shellwords.Parse(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	cmd := s.commands()
	cmd.SetArgs(args)
	cmd.SetOut(s.out)
	cmd.SetErr(s.out)
	return cmd.ExecuteContext(ctx)
}

func (s *shell) printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

// commands builds a fresh tree per line so flag values never leak between
// invocations.
func (s *shell) commands() *cobra.Command {
	root := &cobra.Command{
		Use:           "",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	var passcode string
	var capacity int
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a room for the loaded file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.create(cmd.Context(), client.CreateOptions{Passcode: passcode, Capacity: capacity})
		},
	}
	create.Flags().StringVar(&passcode, "passcode", "", "require this passcode to join")
	create.Flags().IntVar(&capacity, "capacity", 0, "maximum number of members")

	join := &cobra.Command{
		Use:   "join <room-id | link> [passcode]",
		Short: "Join a room",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := ""
			if len(args) == 2 {
				code = args[1]
			}
			return s.join(cmd.Context(), args[0], code)
		},
	}

	leave := &cobra.Command{
		Use:   "leave",
		Short: "Leave the current room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s.passcode = ""
			return s.engine.LeaveRoom(cmd.Context())
		},
	}

	play := s.playerCmd("play", "Start playback", func() { s.player.Play() }, protocol.ActionPlay)
	pause := s.playerCmd("pause", "Pause playback", func() { s.player.Pause() }, protocol.ActionPause)
	stop := s.playerCmd("stop", "Stop playback", func() { s.player.Stop() }, protocol.ActionStop)

	seek := &cobra.Command{
		Use:   "seek <seconds>",
		Short: "Jump to a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.ParseFloat(args[0], 64)
			if err != nil || pos < 0 {
				return fmt.Errorf("invalid position %q", args[0])
			}
			s.player.Seek(pos)
			return s.engine.LocalEvent(protocol.ActionSeek)
		},
	}

	speed := &cobra.Command{
		Use:   "speed <rate>",
		Short: "Change the playback rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := strconv.ParseFloat(args[0], 64)
			if err != nil || rate <= 0 {
				return fmt.Errorf("invalid rate %q", args[0])
			}
			s.player.SetRate(rate)
			return s.engine.LocalEvent(protocol.ActionSpeed)
		},
	}

	syncCmd := &cobra.Command{
		Use:       "sync <on|off>",
		Short:     "Toggle applying and sending commands",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "on":
				return s.engine.SetSyncEnabled(true)
			case "off":
				return s.engine.SetSyncEnabled(false)
			}
			return fmt.Errorf("expected on or off, got %q", args[0])
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show room and player state",
		Args:  cobra.NoArgs,
		Run:   func(*cobra.Command, []string) { s.status() },
	}

	inviteCmd := &cobra.Command{
		Use:   "invite",
		Short: "Print an invite link for the current room",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			snap := s.engine.Snapshot()
			if snap.RoomID == "" {
				return errors.New("not in a room")
			}
			inv := invite.Invite{RoomID: snap.RoomID, Passcode: s.passcode, FileName: snap.FileName, Server: s.server}
			s.printf("%s\n", inv.URL())
			return nil
		},
	}

	quit := &cobra.Command{
		Use:     "quit",
		Aliases: []string{"exit"},
		Short:   "Leave and exit",
		Args:    cobra.NoArgs,
		RunE:    func(*cobra.Command, []string) error { return errQuit },
	}

	root.AddCommand(create, join, leave, play, pause, stop, seek, speed, syncCmd, status, inviteCmd, quit)
	return root
}

func (s *shell) playerCmd(use, short string, apply func(), action protocol.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			apply()
			return s.engine.LocalEvent(action)
		},
	}
}

func (s *shell) create(ctx context.Context, opts client.CreateOptions) error {
	ctx, cancel := context.WithTimeout(ctx, s.reqTimeout)
	defer cancel()
	st, err := s.engine.CreateRoom(ctx, opts)
	if err != nil {
		return err
	}
	s.passcode = opts.Passcode
	s.printf("created room %s (capacity %d)\n", st.RoomID, st.Capacity)
	return nil
}

// join accepts a bare room id or an invite link. A passcode given on the
// line wins over one embedded in the link.
func (s *shell) join(ctx context.Context, target, passcode string) error {
	roomID := target
	if strings.Contains(target, "://") {
		inv, err := invite.Parse(target)
		if err != nil {
			return err
		}
		roomID = inv.RoomID
		if passcode == "" {
			passcode = inv.Passcode
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.reqTimeout)
	defer cancel()
	st, err := s.engine.JoinRoom(ctx, roomID, client.JoinOptions{Passcode: passcode})
	if err != nil {
		return err
	}
	s.passcode = passcode
	s.printf("joined room %s as %s\n", st.RoomID, st.Role)
	return nil
}

func (s *shell) status() {
	snap := s.engine.Snapshot()
	s.printf("file:     %s\n", orDash(snap.FileName))
	s.printf("player:   %s at %.2fs (x%.2f)\n", s.player.State(), s.player.Position(), s.player.Rate())
	s.printf("sync:     %s\n", onOff(snap.SyncEnabled))
	if snap.RoomID == "" {
		s.printf("room:     -\n")
		return
	}
	s.printf("room:     %s as %s\n", snap.RoomID, snap.Role)
	s.printf("members:  %d/%d\n", len(snap.Members), snap.Capacity)
	for _, m := range snap.Members {
		host := ""
		if m.IsHost {
			host = " (host)"
		}
		self := ""
		if m.ClientID == snap.ClientID {
			self = " *"
		}
		s.printf("  - %s%s%s\n", m.DisplayName, host, self)
	}
}

// notice is the engine's OnNotice callback.
func (s *shell) notice(n client.Notice) {
	if line := formatNotice(n); line != "" {
		s.printf("%s\n", line)
	}
}

func formatNotice(n client.Notice) string {
	switch n.Kind {
	case client.NoticeRoomJoined:
		return fmt.Sprintf("* in room %s as %s", n.RoomID, n.Role)
	case client.NoticeRoomLeft:
		if n.RoomID == "" {
			return "* disconnected"
		}
		return fmt.Sprintf("* left room %s", n.RoomID)
	case client.NoticeRoster:
		names := make([]string, 0, len(n.Members))
		for _, m := range n.Members {
			names = append(names, m.DisplayName)
		}
		return fmt.Sprintf("* %d watching: %s", len(n.Members), strings.Join(names, ", "))
	case client.NoticeRemoteCommand:
		return fmt.Sprintf("* %s (from %s)", n.Command, n.From)
	case client.NoticeServerError:
		return fmt.Sprintf("! %s", n.Message)
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
