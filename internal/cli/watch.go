package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/devkiraa/Hang/internal/client"
	"github.com/devkiraa/Hang/internal/config"
	"github.com/devkiraa/Hang/internal/player"
)

type watchFlags struct {
	duration time.Duration
	join     string
	passcode string
	create   bool
	capacity int
}

func newWatchCmd(v *viper.Viper) *cobra.Command {
	var f watchFlags
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Load a file, connect to the relay and open the sync shell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(v)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), v, cfg, args[0], f, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fl := cmd.Flags()
	fl.DurationVar(&f.duration, "duration", 0, "media length, used to clamp seeks (0 = unknown)")
	fl.StringVar(&f.join, "join", "", "room id or invite link to join on start")
	fl.StringVar(&f.passcode, "passcode", "", "passcode for --join or --create")
	fl.BoolVar(&f.create, "create", false, "create a room on start")
	fl.IntVar(&f.capacity, "capacity", 0, "member limit for --create")
	cmd.MarkFlagsMutuallyExclusive("join", "create")
	return cmd
}

func runWatch(ctx context.Context, v *viper.Viper, cfg *config.Client, path string, f watchFlags, in io.Reader, out io.Writer) error {
	tr, err := client.Dial(ctx, cfg.ServerURL, cfg.DialTimeout)
	if err != nil {
		return err
	}
	defer tr.Close()

	pl := player.NewVirtual(f.duration)
	var sh *shell
	eng := client.New(pl, tr, client.Options{
		Debounce:    cfg.Debounce,
		EchoWindow:  cfg.EchoWindow,
		DisplayName: cfg.DisplayName,
		OnNotice:    func(n client.Notice) { sh.notice(n) },
	})
	sh = newShell(eng, pl, out, cfg.ServerURL, cfg.RequestTimeout)

	watchConfig(v, eng)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := eng.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := repl(gctx, sh, eng, path, f, in)
		if errors.Is(err, errQuit) {
			return context.Canceled
		}
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func repl(ctx context.Context, sh *shell, eng *client.Engine, path string, f watchFlags, in io.Reader) error {
	fp, err := eng.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	sh.printf("loaded %s (%s)\n", path, fp[:12])

	switch {
	case f.create:
		if err := sh.create(ctx, client.CreateOptions{Passcode: f.passcode, Capacity: f.capacity}); err != nil {
			sh.printf("create failed: %v\n", err)
		}
	case f.join != "":
		if err := sh.join(ctx, f.join, f.passcode); err != nil {
			sh.printf("join failed: %v\n", err)
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	sh.printf("type 'help' for commands, 'quit' to leave\n")
	for {
		sh.printf("> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			err := sh.exec(ctx, line)
			switch {
			case errors.Is(err, errQuit):
				_ = eng.LeaveRoom(ctx)
				return err
			case errors.Is(err, client.ErrDisconnected):
				return err
			case err != nil:
				sh.printf("error: %v\n", err)
			}
		}
	}
}

// watchConfig reapplies the timing knobs when the config file changes.
func watchConfig(v *viper.Viper, eng *client.Engine) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		d, w := v.GetDuration(debounceKey), v.GetDuration(echoWindowKey)
		_ = eng.SetDebounce(d)
		_ = eng.SetEchoWindow(w)
		log.Info().Str("module", "cli").Str("file", e.Name).Dur("debounce", d).Dur("echo_window", w).Msg("config reloaded")
	})
	v.WatchConfig()
}
