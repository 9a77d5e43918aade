package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode            string        `mapstructure:"mode"`
	Port            int           `mapstructure:"port"`
	StaticPath      string        `mapstructure:"static_path"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	Secret          string        `mapstructure:"secret"`
	DefaultCapacity int           `mapstructure:"default_capacity"`
	JoinAttempts    int           `mapstructure:"join_attempts"`
	JoinWindow      time.Duration `mapstructure:"join_window"`
	LogLevel        string        `mapstructure:"log_level"`
	PublicURL       string        `mapstructure:"public_url"`
}

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName over the built-in defaults. A missing file is not
// an error. HANG_* environment variables override both; PORT overrides port.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("hang")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", "HANG_PORT", "PORT")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 3005)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 16384)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("secret", "hang-dev-secret")
	v.SetDefault("default_capacity", 12)
	v.SetDefault("join_attempts", 10)
	v.SetDefault("join_window", "1m")
	v.SetDefault("log_level", "info")
	v.SetDefault("public_url", "")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath)
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: port %d out of range", c.Port)
	case c.PingPeriod <= 0 || c.PongWait <= c.PingPeriod:
		return fmt.Errorf("config: pong_wait (%s) must exceed ping_period (%s)", c.PongWait, c.PingPeriod)
	case c.WriteWait <= 0:
		return fmt.Errorf("config: write_wait must be positive")
	case c.ReadLimit <= 0:
		return fmt.Errorf("config: read_limit must be positive")
	case c.JoinAttempts <= 0 || c.JoinWindow <= 0:
		return fmt.Errorf("config: join_attempts and join_window must be positive")
	}
	return nil
}
