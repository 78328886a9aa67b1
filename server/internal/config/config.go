package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort             = 8080
	DefaultHealthTimeout        = 10 * time.Second
	DefaultMetricsTimeout       = 15 * time.Second
	DefaultMaxInFlight          = 32
	DefaultPerClientFanout      = 8
	DefaultMaxConns             = 10
	DefaultRetention            = 90 * 24 * time.Hour
	DefaultCooldown             = 15 * time.Minute
	DefaultMinutesPerAutomation = 15.0
	DefaultHourlyRate           = 25.0
	DefaultNATSSubject          = "clientpulse.alerts"
	DefaultKafkaTopic           = "clientpulse-alerts"
)

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Probe   ProbeConfig   `yaml:"probe"`
	Storage StorageConfig `yaml:"storage"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	ROI     ROIConfig     `yaml:"roi"`

	// Clients is an optional seed list registered at startup and on reload.
	Clients []ClientConfig `yaml:"clients"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the JSON API and /metrics listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the API authenticates callers.
	Auth ServerAuthConfig `yaml:"auth"`
}

// ServerAuthConfig controls API authentication.
type ServerAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a ServerAuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a ServerAuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// ProbeConfig controls outbound calls to client endpoints.
type ProbeConfig struct {
	HealthTimeout  time.Duration `yaml:"health_timeout"`
	MetricsTimeout time.Duration `yaml:"metrics_timeout"`

	// MaxInFlight bounds concurrent probes across all clients.
	MaxInFlight int `yaml:"max_in_flight"`

	// PerClientFanout bounds concurrent probes within one client.
	PerClientFanout int `yaml:"per_client_fanout"`

	// RatePerSecond limits requests per endpoint host. Zero disables limiting.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`

	Auth ProbeAuthConfig `yaml:"auth"`
	TLS  TLSConfig       `yaml:"tls"`
}

// ProbeAuthConfig specifies how the prober authenticates to client endpoints.
type ProbeAuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header name for apikey mode.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a ProbeAuthConfig) Key() string { return getenv(a.KeyEnv) }

// Token returns the bearer token value resolved from the environment.
func (a ProbeAuthConfig) Token() string { return getenv(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a ProbeAuthConfig) Password() string { return getenv(a.PasswordEnv) }

// TLSConfig holds TLS dial options for probes.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is one of: memory | postgres.
	Backend string `yaml:"backend"`

	// DSNEnv names the environment variable holding the PostgreSQL DSN.
	DSNEnv string `yaml:"dsn_env"`

	// MaxConns caps the PostgreSQL pool size.
	MaxConns int32 `yaml:"max_conns"`

	// Retention bounds how long the memory backend keeps health samples,
	// performance rollups and alert events. Reports are never evicted. Zero
	// keeps everything.
	Retention time.Duration `yaml:"retention"`
}

// DSN returns the PostgreSQL connection string resolved from the environment.
func (s StorageConfig) DSN() string { return getenv(s.DSNEnv) }

// AlertsConfig controls scheduled evaluation, cooldown and the event sink.
type AlertsConfig struct {
	// PollInterval is how often all active thresholds are evaluated.
	// Zero disables the poller.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Cooldown suppresses repeat events for the same (client, metric).
	Cooldown time.Duration `yaml:"cooldown"`

	// CooldownBackend is one of: memory | redis.
	CooldownBackend string `yaml:"cooldown_backend"`

	Redis RedisConfig `yaml:"redis"`
	Sink  SinkConfig  `yaml:"sink"`
}

// RedisConfig locates the Redis instance used for shared cooldown state.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
}

// Password returns the Redis password resolved from the environment.
func (r RedisConfig) Password() string { return getenv(r.PasswordEnv) }

// SinkConfig selects where fired alert events are handed off for delivery.
type SinkConfig struct {
	// Type is one of: log | nats | kafka | webhook.
	Type string `yaml:"type"`

	// URL is the NATS server URL.
	URL string `yaml:"url"`

	// URLEnv names the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
	// Format is the webhook payload: json | slack | teams (default json).
	Format string `yaml:"format"`
	// Subject is the NATS subject.
	Subject string `yaml:"subject"`

	// Brokers lists Kafka bootstrap brokers.
	Brokers []string `yaml:"brokers"`
	// Topic is the Kafka topic.
	Topic string `yaml:"topic"`
}

// WebhookURL returns the webhook URL resolved from the environment.
func (s SinkConfig) WebhookURL() string { return getenv(s.URLEnv) }

// ROIConfig holds the value assumptions used by the ROI calculator.
type ROIConfig struct {
	MinutesPerAutomation float64 `yaml:"minutes_per_automation"`
	HourlyRate           float64 `yaml:"hourly_rate"`
}

// ClientConfig is one seeded client.
type ClientConfig struct {
	ID           string            `yaml:"client_id"`
	Name         string            `yaml:"name"`
	Industry     string            `yaml:"industry"`
	ContactEmail string            `yaml:"contact_email"`
	Preferences  map[string]string `yaml:"alert_preferences"`
	Active       *bool             `yaml:"active"`
	Systems      []types.Endpoint  `yaml:"systems"`
}

// ToClient converts the seed entry into a domain Client. Clients are active
// unless the file says otherwise.
func (c ClientConfig) ToClient() *types.Client {
	active := true
	if c.Active != nil {
		active = *c.Active
	}
	return &types.Client{
		ID:               c.ID,
		Name:             c.Name,
		Industry:         c.Industry,
		ContactEmail:     c.ContactEmail,
		AlertPreferences: c.Preferences,
		Systems:          append([]types.Endpoint(nil), c.Systems...),
		Active:           active,
	}
}

// Load reads and parses the config file at path.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
		},
		Probe: ProbeConfig{
			HealthTimeout:   DefaultHealthTimeout,
			MetricsTimeout:  DefaultMetricsTimeout,
			MaxInFlight:     DefaultMaxInFlight,
			PerClientFanout: DefaultPerClientFanout,
			Burst:           1,
		},
		Storage: StorageConfig{
			Backend:   "memory",
			MaxConns:  DefaultMaxConns,
			Retention: DefaultRetention,
		},
		Alerts: AlertsConfig{
			Cooldown:        DefaultCooldown,
			CooldownBackend: "memory",
			Sink: SinkConfig{
				Type:    "log",
				Subject: DefaultNATSSubject,
				Topic:   DefaultKafkaTopic,
			},
		},
		ROI: ROIConfig{
			MinutesPerAutomation: DefaultMinutesPerAutomation,
			HourlyRate:           DefaultHourlyRate,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}

	p := cfg.Probe
	if p.HealthTimeout <= 0 || p.MetricsTimeout <= 0 {
		return fmt.Errorf("probe timeouts must be positive")
	}
	if p.PerClientFanout < 1 {
		return fmt.Errorf("probe.per_client_fanout must be at least 1")
	}
	if p.MaxInFlight < p.PerClientFanout {
		return fmt.Errorf("probe.max_in_flight %d must be >= probe.per_client_fanout %d", p.MaxInFlight, p.PerClientFanout)
	}
	if p.RatePerSecond < 0 || p.Burst < 0 {
		return fmt.Errorf("probe.rate_per_second and probe.burst must not be negative")
	}
	switch p.Auth.Mode {
	case "apikey":
		if p.Auth.Header == "" {
			return fmt.Errorf("probe.auth.header is required for apikey mode")
		}
	case "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("probe.auth.mode %q unknown: want apikey|bearer|basic|none", p.Auth.Mode)
	}

	if cfg.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention must not be negative")
	}
	switch cfg.Storage.Backend {
	case "memory":
	case "postgres":
		if cfg.Storage.DSNEnv == "" {
			return fmt.Errorf("storage.dsn_env is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend %q unknown: want memory|postgres", cfg.Storage.Backend)
	}

	a := cfg.Alerts
	if a.PollInterval < 0 || a.Cooldown < 0 {
		return fmt.Errorf("alerts.poll_interval and alerts.cooldown must not be negative")
	}
	switch a.CooldownBackend {
	case "memory":
	case "redis":
		if a.Redis.Addr == "" {
			return fmt.Errorf("alerts.redis.addr is required for the redis cooldown backend")
		}
	default:
		return fmt.Errorf("alerts.cooldown_backend %q unknown: want memory|redis", a.CooldownBackend)
	}
	switch a.Sink.Type {
	case "log":
	case "nats":
		if a.Sink.URL == "" {
			return fmt.Errorf("alerts.sink.url is required for the nats sink")
		}
	case "kafka":
		if len(a.Sink.Brokers) == 0 {
			return fmt.Errorf("alerts.sink.brokers is required for the kafka sink")
		}
	case "webhook":
		if a.Sink.URLEnv == "" {
			return fmt.Errorf("alerts.sink.url_env is required for the webhook sink")
		}
		switch a.Sink.Format {
		case "", "json", "slack", "teams":
		default:
			return fmt.Errorf("alerts.sink.format %q unknown: want json|slack|teams", a.Sink.Format)
		}
	default:
		return fmt.Errorf("alerts.sink.type %q unknown: want log|nats|kafka|webhook", a.Sink.Type)
	}

	if cfg.ROI.MinutesPerAutomation <= 0 || cfg.ROI.HourlyRate <= 0 {
		return fmt.Errorf("roi.minutes_per_automation and roi.hourly_rate must be positive")
	}

	seen := make(map[string]bool, len(cfg.Clients))
	for i, c := range cfg.Clients {
		if err := c.ToClient().Validate(); err != nil {
			return fmt.Errorf("clients[%d]: %w", i, err)
		}
		if seen[c.ID] {
			return fmt.Errorf("clients[%d]: duplicate client_id %q", i, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
