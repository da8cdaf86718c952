// Package config loads rekberd configuration from a JSON file or from
// REKBER_-prefixed environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// defaultWarningMessage is the anti-scam notice the repeater posts when
// no custom copy is configured.
const defaultWarningMessage = "⚠️ **HATI-HATI PENIPUAN!** Selalu gunakan jasa rekber resmi server ini. " +
	"Admin tidak pernah DM duluan dan transaksi di luar tiket rekber bukan tanggung jawab server."

// Config is the top-level rekberd configuration.
type Config struct {
	DataDir  string         `json:"data_dir"`
	Discord  DiscordConfig  `json:"discord"`
	Slowmode SlowmodeConfig `json:"slowmode"`
	Guard    GuardConfig    `json:"guard"`
	Archive  ArchiveConfig  `json:"archive"`
	API      APIConfig      `json:"api"`
}

// DiscordConfig holds the gateway settings.
type DiscordConfig struct {
	Token            string `json:"token"`
	GuildID          string `json:"guild_id"`
	TicketCategoryID string `json:"ticket_category_id,omitempty"`
	PanelChannelID   string `json:"panel_channel_id,omitempty"`
	PrivilegedRoleID string `json:"privileged_role_id,omitempty"`
}

// SlowmodeConfig holds the per-channel rate-limit settings.
type SlowmodeConfig struct {
	Channels          []string `json:"channels,omitempty"`
	NormalSeconds     int      `json:"normal_seconds,omitempty"`     // default 180
	PrivilegedSeconds int      `json:"privileged_seconds,omitempty"` // default 30
}

// GuardConfig holds the anti-scam warning settings.
type GuardConfig struct {
	WarningChannelID string `json:"warning_channel_id,omitempty"`
	WarningEvery     string `json:"warning_every,omitempty"` // cron spec, default "@every 30m"
	WarningMessage   string `json:"warning_message,omitempty"`
}

// ArchiveConfig holds the archival sink settings.
type ArchiveConfig struct {
	ChannelID    string `json:"channel_id"`
	GraceSeconds int    `json:"grace_seconds,omitempty"` // default 5
}

// APIConfig holds the ops HTTP server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds the config from environment variables with the
// REKBER_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DataDir: getenv("REKBER_DATA_DIR", "/data"),
		Discord: DiscordConfig{
			Token:            os.Getenv("REKBER_DISCORD_TOKEN"),
			GuildID:          os.Getenv("REKBER_GUILD_ID"),
			TicketCategoryID: os.Getenv("REKBER_TICKET_CATEGORY_ID"),
			PanelChannelID:   os.Getenv("REKBER_PANEL_CHANNEL_ID"),
			PrivilegedRoleID: os.Getenv("REKBER_PRIVILEGED_ROLE_ID"),
		},
		Slowmode: SlowmodeConfig{
			Channels:          parseList(os.Getenv("REKBER_SLOWMODE_CHANNELS")),
			NormalSeconds:     getenvInt("REKBER_SLOWMODE_NORMAL", 0),
			PrivilegedSeconds: getenvInt("REKBER_SLOWMODE_PRIVILEGED", 0),
		},
		Guard: GuardConfig{
			WarningChannelID: os.Getenv("REKBER_WARNING_CHANNEL_ID"),
			WarningEvery:     os.Getenv("REKBER_WARNING_EVERY"),
			WarningMessage:   os.Getenv("REKBER_WARNING_MESSAGE"),
		},
		Archive: ArchiveConfig{
			ChannelID:    os.Getenv("REKBER_ARCHIVE_CHANNEL_ID"),
			GraceSeconds: getenvInt("REKBER_ARCHIVE_GRACE", 0),
		},
		API: APIConfig{
			Host: getenv("REKBER_API_HOST", "0.0.0.0"),
			Port: getenvInt("REKBER_API_PORT", 8080),
			Key:  os.Getenv("REKBER_API_KEY"),
		},
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "/data"
	}
	if c.Slowmode.NormalSeconds == 0 {
		c.Slowmode.NormalSeconds = 180
	}
	if c.Slowmode.PrivilegedSeconds == 0 {
		c.Slowmode.PrivilegedSeconds = 30
	}
	if c.Guard.WarningEvery == "" {
		c.Guard.WarningEvery = "@every 30m"
	}
	if c.Guard.WarningMessage == "" {
		c.Guard.WarningMessage = defaultWarningMessage
	}
	if c.Archive.GraceSeconds == 0 {
		c.Archive.GraceSeconds = 5
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Discord.Token == "" {
		errs = append(errs, "discord.token is required")
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, "discord.guild_id is required")
	}
	if c.Archive.ChannelID == "" {
		errs = append(errs, "archive.channel_id is required")
	}
	if c.Slowmode.NormalSeconds < c.Slowmode.PrivilegedSeconds {
		errs = append(errs, "slowmode.normal_seconds must not be shorter than slowmode.privileged_seconds")
	}
	if c.Guard.WarningChannelID != "" && c.Guard.WarningEvery == "" {
		errs = append(errs, "guard.warning_every is required when guard.warning_channel_id is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
