package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for lwm2md.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Directory DirectoryConfig `yaml:"directory"`
	Objects   ObjectsConfig   `yaml:"objects"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig identifies this server instance.
type ServerConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP admin API settings.
type APIConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Host        string           `yaml:"host"`
	Port        int              `yaml:"port"`
	Timeouts    APITimeoutConfig `yaml:"timeouts"`
	MaxBodySize int64            `yaml:"max_body_size"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// SecurityConfig contains admin API authentication settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains settings for the bearer tokens that guard the API
// routes which change directory state.
type JWTConfig struct {
	// Secret signs and verifies HS256 tokens. Required when the API is
	// enabled; set it with LWM2M_JWT_SECRET rather than in the file.
	Secret string `yaml:"secret"`

	// TokenTTL is the lifetime of issued tokens, in minutes.
	TokenTTL int `yaml:"token_ttl"`
}

// WebSocketConfig contains settings for the lifecycle event stream.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DirectoryConfig contains registration directory settings.
type DirectoryConfig struct {
	// LifetimeCheckInterval is the lease sweep period in seconds.
	LifetimeCheckInterval int `yaml:"lifetime_check_interval"`

	// DefaultLifetime applies to registrations without lt=, in seconds.
	DefaultLifetime int64 `yaml:"default_lifetime"`

	// Persistent stores registrations in SQLite and restores them on start.
	Persistent bool `yaml:"persistent"`
}

// ObjectsConfig contains object definition settings.
type ObjectsConfig struct {
	// Dir holds extra object definitions (*.yaml, *.json) loaded over the
	// built-in ones. Empty means built-in objects only.
	Dir string `yaml:"dir"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LWM2M_SECTION_KEY
// For example: LWM2M_DATABASE_PATH, LWM2M_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the default configuration with environment overrides
// applied, for running without a config file.
func Default() (*Config, error) {
	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ID:   "lwm2m-001",
			Name: "LWM2M Server",
		},
		Database: DatabaseConfig{
			Path:        "./data/lwm2m.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lwm2md",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			MaxBodySize: 1 << 20,
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Directory: DirectoryConfig{
			LifetimeCheckInterval: 300,
			DefaultLifetime:       86400,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 60 * 24,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LWM2M_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	strVars := map[string]*string{
		"LWM2M_SERVER_ID":      &cfg.Server.ID,
		"LWM2M_DATABASE_PATH":  &cfg.Database.Path,
		"LWM2M_MQTT_HOST":      &cfg.MQTT.Broker.Host,
		"LWM2M_MQTT_USERNAME":  &cfg.MQTT.Auth.Username,
		"LWM2M_MQTT_PASSWORD":  &cfg.MQTT.Auth.Password,
		"LWM2M_API_HOST":       &cfg.API.Host,
		"LWM2M_INFLUXDB_URL":   &cfg.InfluxDB.URL,
		"LWM2M_INFLUXDB_TOKEN": &cfg.InfluxDB.Token,
		"LWM2M_LOGGING_LEVEL":  &cfg.Logging.Level,
		"LWM2M_OBJECTS_DIR":    &cfg.Objects.Dir,
		"LWM2M_JWT_SECRET":     &cfg.Security.JWT.Secret,
	}
	for name, dst := range strVars {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"LWM2M_MQTT_PORT":                         &cfg.MQTT.Broker.Port,
		"LWM2M_API_PORT":                          &cfg.API.Port,
		"LWM2M_DIRECTORY_LIFETIME_CHECK_INTERVAL": &cfg.Directory.LifetimeCheckInterval,
	}
	for name, dst := range intVars {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
		*dst = n
	}

	boolVars := map[string]*bool{
		"LWM2M_MQTT_ENABLED":         &cfg.MQTT.Enabled,
		"LWM2M_API_ENABLED":          &cfg.API.Enabled,
		"LWM2M_INFLUXDB_ENABLED":     &cfg.InfluxDB.Enabled,
		"LWM2M_DIRECTORY_PERSISTENT": &cfg.Directory.Persistent,
	}
	for name, dst := range boolVars {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
		*dst = b
	}
	return nil
}

// minJWTSecretLength is the shortest accepted HS256 signing secret.
const minJWTSecretLength = 32

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.ID == "" {
		errs = append(errs, "server.id is required")
	}

	if c.Directory.Persistent && c.Database.Path == "" {
		errs = append(errs, "database.path is required when directory.persistent is set")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.API.Enabled && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, fmt.Sprintf("security.jwt.secret must be at least %d characters when api is enabled (set LWM2M_JWT_SECRET)", minJWTSecretLength))
	}
	if c.Security.JWT.TokenTTL < 1 {
		errs = append(errs, "security.jwt.token_ttl must be at least 1 minute")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.Directory.LifetimeCheckInterval < 1 {
		errs = append(errs, "directory.lifetime_check_interval must be at least 1 second")
	}
	if c.Directory.DefaultLifetime < 0 {
		errs = append(errs, "directory.default_lifetime must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetLifetimeCheckInterval returns the lease sweep period as a Duration.
func (c *Config) GetLifetimeCheckInterval() time.Duration {
	return time.Duration(c.Directory.LifetimeCheckInterval) * time.Second
}

// GetTokenTTL returns the lifetime of issued API tokens as a Duration.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Minute
}
