// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry of the order bot.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog converts l to a [slog.Level]. Unknown values map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure. It is loaded from YAML with
// [Load] or [LoadFromReader]; ${VAR} references are expanded from the
// environment before decoding.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Menu          MenuConfig          `yaml:"menu"`
	LLM           LLMConfig           `yaml:"llm"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Storage       StorageConfig       `yaml:"storage"`
	Orders        OrdersConfig        `yaml:"orders"`
	Discord       DiscordConfig       `yaml:"discord"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the HTTP listener (health and metrics) and logging.
type ServerConfig struct {
	// ListenAddr is the address of the health and metrics endpoint.
	// Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds certificate paths for serving HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// MenuConfig locates the menu document.
type MenuConfig struct {
	// Path is a YAML or JSON file with "main" and "addons" mappings.
	Path string `yaml:"path"`
}

// LLMConfig configures the model gateway.
type LLMConfig struct {
	// Primary names the profile tried first. Default: the first profile.
	Primary string `yaml:"primary"`

	// Profiles are tried in order after the primary.
	Profiles []LLMProfile `yaml:"profiles"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// JSONMode asks providers that support it for a JSON object reply.
	JSONMode bool `yaml:"json_mode"`

	// Timeout bounds one profile attempt. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// LLMProfile is one model backend with rotating credential, model and
// endpoint pools.
type LLMProfile struct {
	Name string `yaml:"name"`

	// Provider selects the registered factory, e.g. "openai" or "mistral".
	Provider string `yaml:"provider"`

	APIKeys  []string `yaml:"api_keys"`
	Models   []string `yaml:"models"`
	BaseURLs []string `yaml:"base_urls"`
}

// CircuitBreakerConfig tunes the per-backend breakers.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// TranscriptionConfig lists voice transcription backends, tried in order.
// No providers disables voice orders.
type TranscriptionConfig struct {
	Providers []ProviderEntry `yaml:"providers"`

	// Timeout bounds one transcription attempt. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`
}

// ProviderEntry configures one transcription backend. Name selects the
// constructor in the [Registry].
type ProviderEntry struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Language is an ISO-639-1 hint, e.g. "ru".
	Language string `yaml:"language"`

	// Options holds backend-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// StorageConfig selects the order store.
type StorageConfig struct {
	// PostgresDSN selects the Postgres store. Empty keeps orders in memory,
	// which is only suitable for development.
	PostgresDSN string `yaml:"postgres_dsn"`

	MaxConns int32 `yaml:"max_conns"`

	// LockTimeout makes blocked writes fail fast with a retryable error.
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// OrdersConfig tunes the order flow.
type OrdersConfig struct {
	// Timezone is the IANA zone used for "today" and report timestamps.
	// Default: the process's local zone.
	Timezone string `yaml:"timezone"`

	// PendingTTL drops unconfirmed proposals after this long. Zero keeps
	// them until they are confirmed, cancelled or replaced.
	PendingTTL time.Duration `yaml:"pending_ttl"`

	// NoticeTTL removes transient error notices from the channel. Zero
	// keeps them.
	NoticeTTL time.Duration `yaml:"notice_ttl"`

	// PersistAttempts and PersistRetryDelay configure the retry of order
	// writes that lose a storage conflict. Defaults: 3 and 500ms.
	PersistAttempts   int           `yaml:"persist_attempts"`
	PersistRetryDelay time.Duration `yaml:"persist_retry_delay"`
}

// DiscordConfig holds the bot credentials and access rules.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id"`

	// OrderRoleID is required to place orders. Empty allows every member.
	OrderRoleID string `yaml:"order_role_id"`

	// StaffRoleID is required for /report. Empty allows every member.
	StaffRoleID string `yaml:"staff_role_id"`

	// OrderChannelIDs restricts order messages to these channels.
	OrderChannelIDs []string `yaml:"order_channel_ids"`

	// StaffChannelID receives a notice for every confirmed order. Empty
	// disables notifications.
	StaffChannelID string `yaml:"staff_channel_id"`

	AllowDMs bool `yaml:"allow_dms"`
}

// EventsConfig configures the NATS feed of confirmed orders.
type EventsConfig struct {
	// NATSURL is the server to publish to, e.g. nats://localhost:4222.
	// Empty disables events.
	NATSURL string `yaml:"nats_url"`

	// SubjectPrefix is prepended to every subject. Default: "orderbot".
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ObservabilityConfig configures telemetry.
type ObservabilityConfig struct {
	// ServiceName is reported in telemetry. Default: "orderbot".
	ServiceName string `yaml:"service_name"`

	// Metrics enables the /metrics endpoint.
	Metrics bool `yaml:"metrics"`
}
