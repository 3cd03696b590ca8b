package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration of the narrator service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Narrator    NarratorConfig    `mapstructure:"narrator"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	History     HistoryConfig     `mapstructure:"history"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig describes the HTTP/WebSocket listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig points at the leaderboard store. An empty Addr disables
// everything Redis-backed.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig points at the deployment-history store. An empty URL
// disables history recording.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// NarratorConfig tunes scripted playback.
type NarratorConfig struct {
	LogCadence time.Duration `mapstructure:"log_cadence"`
	// StartRate limits start-deployment requests per connection, per minute.
	StartRate int `mapstructure:"start_rate"`
}

// LeaderboardConfig tunes the high-score table.
type LeaderboardConfig struct {
	TopN int `mapstructure:"top_n"`
}

// HistoryConfig tunes the outcome recorder buffer.
type HistoryConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig merges config.yaml, environment variables and defaults.
// ENV wins over file: NARRATOR_LOG_CADENCE=100ms overrides narrator.log_cadence.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No file: run on ENV and defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("narrator.log_cadence", 800*time.Millisecond)
	v.SetDefault("narrator.start_rate", 10)
	v.SetDefault("leaderboard.top_n", 10)
	v.SetDefault("history.buffer_size", 1000)
	v.SetDefault("history.batch_size", 50)
	v.SetDefault("history.flush_interval", time.Second)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
