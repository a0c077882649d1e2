package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the asset transfer service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Engine    EngineConfig    `yaml:"engine"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Graph     GraphConfig     `yaml:"graph"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Seed      SeedConfig      `yaml:"seed"`
}

// SiteConfig identifies this deployment.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// Ledger drivers.
const (
	LedgerDriverSQLite   = "sqlite"
	LedgerDriverPostgres = "postgres"
)

// Quorum policies.
const (
	QuorumNewOwner    = "new_owner"
	QuorumBothParties = "both"
)

// LedgerConfig selects and configures the authoritative ownership ledger.
//
// The sqlite driver keeps the ledger tables in the main database file.
// The postgres driver connects to an external ledger database.
type LedgerConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// EngineConfig contains transfer engine settings.
type EngineConfig struct {
	// CommitTimeout bounds a single ledger append (seconds).
	CommitTimeout int `yaml:"commit_timeout"`

	// TransferTTL is how long a transfer may stay pending (hours).
	TransferTTL int `yaml:"transfer_ttl"`

	// SweepInterval is how often expired transfers are swept (seconds).
	SweepInterval int `yaml:"sweep_interval"`

	// RequireOwnerInitiator restricts initiate to the asset's current owner
	// (admins may always initiate on the owner's behalf).
	RequireOwnerInitiator bool `yaml:"require_owner_initiator"`

	// Quorum selects which approvals execute a transfer:
	// "new_owner" (recipient only) or "both" (recipient and current owner).
	Quorum string `yaml:"quorum"`

	// EventQueueSize is the buffer of the internal event queue.
	EventQueueSize int `yaml:"event_queue_size"`

	// SigningSecret is the master secret per-identity approval keys derive from.
	SigningSecret string `yaml:"signing_secret"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// ReadTimeout returns the read timeout as a Duration.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout returns the keep-alive idle timeout as a Duration.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
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

// GraphConfig contains Neo4j settings for the ownership provenance graph.
type GraphConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URI            string `yaml:"uri"`
	Database       string `yaml:"database"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	MaxConnections int    `yaml:"max_connections"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// SeedConfig lists accounts and assets created on first boot.
type SeedConfig struct {
	Users  []SeedUser  `yaml:"users"`
	Assets []SeedAsset `yaml:"assets"`
}

// SeedUser is a user account created when the users table is empty.
type SeedUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// SeedAsset is an asset registered on the ledger if it does not exist yet.
type SeedAsset struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Owner string `yaml:"owner"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AMS_SECTION_KEY
// For example: AMS_DATABASE_PATH, AMS_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "ams-001",
			Name: "Asset Management System",
		},
		Database: DatabaseConfig{
			Path:        "./data/ams.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Ledger: LedgerConfig{
			Driver: LedgerDriverSQLite,
		},
		Engine: EngineConfig{
			CommitTimeout:         10,
			TransferTTL:           24,
			SweepInterval:         60,
			RequireOwnerInitiator: true,
			Quorum:                QuorumNewOwner,
			EventQueueSize:        256,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ams-core",
			},
			QoS:         1,
			TopicPrefix: "ams",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Graph: GraphConfig{
			Database:       "neo4j",
			MaxConnections: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: AMS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("AMS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Ledger
	if v := os.Getenv("AMS_LEDGER_DRIVER"); v != "" {
		cfg.Ledger.Driver = v
	}
	if v := os.Getenv("AMS_LEDGER_DSN"); v != "" {
		cfg.Ledger.DSN = v
	}

	// Engine
	if v := os.Getenv("AMS_ENGINE_QUORUM"); v != "" {
		cfg.Engine.Quorum = v
	}

	// MQTT
	if v := os.Getenv("AMS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("AMS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AMS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("AMS_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("AMS_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("AMS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Graph
	if v := os.Getenv("AMS_GRAPH_PASSWORD"); v != "" {
		cfg.Graph.Password = v
	}

	// Secrets (always override in production)
	if v := os.Getenv("AMS_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("AMS_SIGNING_SECRET"); v != "" {
		cfg.Engine.SigningSecret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	switch c.Ledger.Driver {
	case LedgerDriverSQLite:
	case LedgerDriverPostgres:
		if c.Ledger.DSN == "" {
			errs = append(errs, "ledger.dsn is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("ledger.driver %q is not supported (sqlite, postgres)", c.Ledger.Driver))
	}

	if c.Engine.CommitTimeout <= 0 {
		errs = append(errs, "engine.commit_timeout must be positive")
	}
	if c.Engine.TransferTTL <= 0 {
		errs = append(errs, "engine.transfer_ttl must be positive")
	}
	switch c.Engine.Quorum {
	case QuorumNewOwner, QuorumBothParties:
	default:
		errs = append(errs, fmt.Sprintf("engine.quorum %q is not supported (new_owner, both)", c.Engine.Quorum))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Graph.Enabled && c.Graph.URI == "" {
		errs = append(errs, "graph.uri is required when graph is enabled")
	}

	// Forged tokens would let anyone approve transfers of assets they do not own.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set AMS_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	for i, u := range c.Seed.Users {
		if u.Username == "" || u.Password == "" {
			errs = append(errs, fmt.Sprintf("seed.users[%d] requires username and password", i))
		}
	}
	for i, a := range c.Seed.Assets {
		if a.ID == "" || a.Owner == "" {
			errs = append(errs, fmt.Sprintf("seed.assets[%d] requires id and owner", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// SigningSecret returns the approval signing secret, falling back to the JWT
// secret when none is configured.
func (c *Config) SigningSecret() string {
	if c.Engine.SigningSecret != "" {
		return c.Engine.SigningSecret
	}
	return c.Security.JWT.Secret
}

// GetCommitTimeout returns the ledger commit timeout as a Duration.
func (c *Config) GetCommitTimeout() time.Duration {
	return time.Duration(c.Engine.CommitTimeout) * time.Second
}

// GetTransferTTL returns how long a transfer may remain pending.
func (c *Config) GetTransferTTL() time.Duration {
	return time.Duration(c.Engine.TransferTTL) * time.Hour
}

// GetSweepInterval returns the expiry sweep interval as a Duration.
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.Engine.SweepInterval) * time.Second
}
