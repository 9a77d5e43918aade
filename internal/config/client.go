package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Client holds settings for the sync client. Keys match the CLI flag names.
type Client struct {
	ServerURL      string        `mapstructure:"server"`
	DisplayName    string        `mapstructure:"name"`
	Debounce       time.Duration `mapstructure:"debounce"`
	EchoWindow     time.Duration `mapstructure:"echo_window"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
}

func SetClientDefaults(v *viper.Viper) {
	v.SetDefault("server", "ws://localhost:3005/ws")
	v.SetDefault("name", "")
	v.SetDefault("debounce", "100ms")
	v.SetDefault("echo_window", "500ms")
	v.SetDefault("dial_timeout", "10s")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("log_level", "warn")
}

func LoadClient(v *viper.Viper) (*Client, error) {
	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if cfg.Debounce < 0 || cfg.EchoWindow < 0 {
		return nil, fmt.Errorf("config: debounce and echo_window must not be negative")
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("config: server url is empty")
	}
	return &cfg, nil
}
