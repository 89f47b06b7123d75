package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.json
var defaults []byte

// ---- Root ----

type Config struct {
	Subreddits  map[string]SubredditConfig  `mapstructure:"subreddits"`
	Credentials map[string]RedditCredential `mapstructure:"credentials"`
	Storage     StorageConfig               `mapstructure:"storage"`
	Freshness   FreshnessConfig             `mapstructure:"freshness"`
	Poll        PollConfig                  `mapstructure:"poll"`
	Lock        LockConfig                  `mapstructure:"lock"`
	Metrics     MetricsConfig               `mapstructure:"metrics"`
	Logging     LoggingConfig               `mapstructure:"logging"`
}

// ---- Leaf structs ----

// SubredditConfig maps one destination to the credential that posts
// there and the reply bodies used for mentions.
type SubredditConfig struct {
	CredentialName string   `mapstructure:"credential_name"`
	DefaultReplies []string `mapstructure:"default_replies"`
}

type RedditCredential struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	UserAgent    string `mapstructure:"user_agent"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type FreshnessConfig struct {
	PlayMaxAge  time.Duration `mapstructure:"play_max_age"`
	InboxMaxAge time.Duration `mapstructure:"inbox_max_age"`
}

type PollConfig struct {
	ThreadPause time.Duration `mapstructure:"thread_pause"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// LockConfig enables the optional redis run lock when RedisAddr is set.
type LockConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Key           string        `mapstructure:"key"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// MetricsConfig enables the optional end-of-run Pushgateway push when
// PushgatewayURL is set.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads embedded defaults, merges the user JSON file, and applies
// env overrides (BBCLERK_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	// env override (BBCLERK_*)
	v.SetEnvPrefix("BBCLERK")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
