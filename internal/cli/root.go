// Package cli is the command line front end of the sync client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/devkiraa/Hang/internal/config"
)

const (
	serverKey     = "server"
	nameKey       = "name"
	debounceKey   = "debounce"
	echoWindowKey = "echo_window"
	logLevelKey   = "log_level"
)

// NewRootCmd builds the command tree. Each call gets its own viper instance.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()
	config.SetClientDefaults(v)

	root := &cobra.Command{
		Use:           "hang",
		Short:         "Watch a local file in sync with friends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(v, cfgFile); err != nil {
				return err
			}
			setLogLevel(v.GetString(logLevelKey))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hang.yaml)")
	pf.String("server", "", "relay websocket url")
	pf.String("name", "", "display name shown to the room")
	pf.Duration("debounce", 0, "coalescing window for seek and speed changes")
	pf.Duration("echo-window", 0, "how long remote-caused player events are suppressed")
	pf.String("log-level", "", "zerolog level (debug, info, warn, error)")

	_ = v.BindPFlag(serverKey, pf.Lookup("server"))
	_ = v.BindPFlag(nameKey, pf.Lookup("name"))
	_ = v.BindPFlag(debounceKey, pf.Lookup("debounce"))
	_ = v.BindPFlag(echoWindowKey, pf.Lookup("echo-window"))
	_ = v.BindPFlag(logLevelKey, pf.Lookup("log-level"))

	root.AddCommand(newWatchCmd(v), newHashCmd(), newInviteCmd(v))
	return root
}

// Execute is called by main.main.
func Execute() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initConfig reads the config file and HANG_* environment variables. A
// missing default config file is not an error.
func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".hang")
	}

	v.SetEnvPrefix("HANG")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			log.Debug().Str("module", "cli").Msg("no config file, using defaults")
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	log.Debug().Str("module", "cli").Str("file", v.ConfigFileUsed()).Msg("config loaded")
	return nil
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
