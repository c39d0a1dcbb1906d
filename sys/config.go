package sys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// --- Configuration & Environment ---

type Config struct {
	Token        string       `koanf:"token"`
	GuildID      string       `koanf:"guild_id"`
	DatabasePath string       `koanf:"database_path"`
	OwnerIDs     []string     `koanf:"owner_ids"`
	Silent       bool         `koanf:"silent"`
	LogToFile    bool         `koanf:"log_to_file"`
	Player       PlayerConfig `koanf:"player"`
	Notify       NotifyConfig `koanf:"notify"`
	Events       EventsConfig `koanf:"events"`
	Status       StatusConfig `koanf:"status"`
}

type PlayerConfig struct {
	DefaultVolume int           `koanf:"default_volume"` // display scale, 0-1000
	PickTimeout   time.Duration `koanf:"pick_timeout"`   // how long search results stay selectable
}

type NotifyConfig struct {
	Interval    time.Duration `koanf:"interval"`
	MaxAttempts int           `koanf:"max_attempts"`
	NaturalTime bool          `koanf:"natural_time"` // accept phrases like "next friday"
}

// EventsConfig enables publishing player events to redis when URL is set.
type EventsConfig struct {
	RedisURL string `koanf:"redis_url"`
	Channel  string `koanf:"channel"`
}

// StatusConfig enables the read-only HTTP status API when Addr is set.
type StatusConfig struct {
	Addr string `koanf:"addr"`
}

var GlobalConfig *Config

func defaultConfig() *Config {
	return &Config{
		Player: PlayerConfig{
			DefaultVolume: 50,
			PickTimeout:   2 * time.Minute,
		},
		Notify: NotifyConfig{
			Interval:    10 * time.Second,
			MaxAttempts: 5,
		},
		Events: EventsConfig{
			Channel: "tempo:player",
		},
	}
}

// LoadConfig reads .env, overlays an optional TOML file and then the
// environment. The TOML file is TEMPO_CONFIG or ./tempo.toml.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	overlay := os.Getenv("TEMPO_CONFIG")
	if overlay == "" {
		overlay = GetProjectName() + ".toml"
	}

	cfg, err := loadConfig(overlay, os.LookupEnv)
	if err != nil {
		return nil, err
	}

	if cfg.Silent {
		InitLogger(true, cfg.LogToFile)
	}

	GlobalConfig = cfg
	return cfg, nil
}

func loadConfig(overlay string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := defaultConfig()

	if overlay != "" {
		if _, err := os.Stat(overlay); err == nil {
			k := koanf.New(".")
			if err := k.Load(file.Provider(overlay), toml.Parser()); err != nil {
				return nil, fmt.Errorf("%s: %w", overlay, err)
			}
			if err := k.Unmarshal("", cfg); err != nil {
				return nil, fmt.Errorf("%s: %w", overlay, err)
			}
			LogInfo(MsgConfigOverlayLoaded, overlay)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = defaultDatabasePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("DISCORD_TOKEN", &cfg.Token)
	str("GUILD_ID", &cfg.GuildID)
	str("DATABASE_PATH", &cfg.DatabasePath)
	boolean("SILENT", &cfg.Silent)
	boolean("LOG_TO_FILE", &cfg.LogToFile)
	integer("DEFAULT_VOLUME", &cfg.Player.DefaultVolume)
	duration("SEARCH_PICK_TIMEOUT", &cfg.Player.PickTimeout)
	duration("NOTIFY_INTERVAL", &cfg.Notify.Interval)
	integer("NOTIFY_MAX_ATTEMPTS", &cfg.Notify.MaxAttempts)
	boolean("NOTIFY_NATURAL_TIME", &cfg.Notify.NaturalTime)
	str("REDIS_URL", &cfg.Events.RedisURL)
	str("REDIS_CHANNEL", &cfg.Events.Channel)
	str("STATUS_ADDR", &cfg.Status.Addr)

	if v, ok := lookup("OWNER_IDS"); ok && v != "" {
		cfg.OwnerIDs = nil
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.OwnerIDs = append(cfg.OwnerIDs, id)
			}
		}
	}

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf("invalid GUILD_ID: must be a valid Snowflake")
	}
	if c.Player.DefaultVolume < 0 || c.Player.DefaultVolume > 1000 {
		return fmt.Errorf("invalid default volume %d: must be between 0 and 1000", c.Player.DefaultVolume)
	}
	if c.Player.PickTimeout <= 0 {
		return fmt.Errorf("invalid pick timeout %s", c.Player.PickTimeout)
	}
	if c.Notify.Interval < time.Second {
		return fmt.Errorf("invalid notify interval %s: must be at least 1s", c.Notify.Interval)
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("invalid notify max attempts %d", c.Notify.MaxAttempts)
	}
	return nil
}

// defaultDatabasePath prefers ./data when present, then the XDG data dir.
func defaultDatabasePath() string {
	name := GetProjectName() + ".db"
	if info, err := os.Stat("data"); err == nil && info.IsDir() {
		return filepath.Join("data", name)
	}
	if p, err := xdg.DataFile(filepath.Join(GetProjectName(), name)); err == nil {
		return p
	}
	return name
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "tempo"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") || strings.HasSuffix(projectName, ".test") {
			projectName = "tempo"
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}

// IsOwner reports whether userID is listed in owner_ids.
func (c *Config) IsOwner(userID string) bool {
	return c != nil && slices.Contains(c.OwnerIDs, userID)
}
