// Package config loads and validates the teller service configuration.
//
// Configuration comes from a YAML file with ${ENV_VAR} placeholders
// expanded before parsing. Defaults are applied via struct tags
// (creasty/defaults) and the result is validated with
// go-playground/validator.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so values can be written as "30s" or "5m"
// in YAML and in default tags.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText implements encoding.TextUnmarshaler (used by defaults tags).
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(raw))
}

// Config represents the teller service configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Teller     TellerConfig     `yaml:"teller"`
	Ethereum   EthereumConfig   `yaml:"ethereum"`
	Transport  TransportConfig  `yaml:"transport"`
	Auth       AuthConfig       `yaml:"auth"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string   `yaml:"host" default:"0.0.0.0"`
	Port            int      `yaml:"port" default:"8080"`
	ReadTimeout     Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    Duration `yaml:"write_timeout" default:"15s"`
	IdleTimeout     Duration `yaml:"idle_timeout" default:"60s"`
	RequestTimeout  Duration `yaml:"request_timeout" default:"60s"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" default:"30s"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost" validate:"required"`
	Port     int    `yaml:"port" default:"5432"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"tellerdb" validate:"required"`
	SSLMode  string `yaml:"ssl_mode" default:"disable"`
}

// TellerConfig contains settings for the teller core itself
type TellerConfig struct {
	// LocalChainSelector identifies the chain this teller instance fronts.
	// It is baked into every outbound message id.
	LocalChainSelector uint64 `yaml:"local_chain_selector" validate:"required"`
	// LocalTellerAddress is this teller's on-chain identity, the sender
	// peers verify inbound messages against.
	LocalTellerAddress string `yaml:"local_teller_address" validate:"required,eth_addr"`
	// MaxPayloadBytes caps the opaque data accepted on bridge requests.
	MaxPayloadBytes int `yaml:"max_payload_bytes" default:"10240"`
	// SweepInterval controls how often stuck pending sends are re-reported.
	SweepInterval Duration `yaml:"sweep_interval" default:"5m"`
	// PendingAgeThreshold is how old a pending send must be before the
	// sweeper reports it as stuck.
	PendingAgeThreshold Duration `yaml:"pending_age_threshold" default:"10m"`
}

// EthereumConfig contains Ethereum client settings for the vault and
// router contracts. Required when transport mode is "router".
type EthereumConfig struct {
	RPCURL           string   `yaml:"rpc_url"`
	ChainID          int64    `yaml:"chain_id"`
	VaultContract    string   `yaml:"vault_contract"`
	RouterContract   string   `yaml:"router_contract"`
	TellerPrivateKey string   `yaml:"teller_private_key"`
	GasLimit         uint64   `yaml:"gas_limit" default:"300000"`
	MaxGasPrice      string   `yaml:"max_gas_price"`
	RequestTimeout   Duration `yaml:"request_timeout" default:"30s"`
}

// Transport modes.
const (
	TransportModeRouter   = "router"
	TransportModeLoopback = "loopback"
)

// TransportConfig selects and configures the outbound message transport.
type TransportConfig struct {
	// Mode is "router" (EVM router contract) or "loopback" (in-process,
	// for local development and demos).
	Mode string `yaml:"mode" default:"router" validate:"oneof=router loopback"`
	// RelayerAddress, when set, requires inbound webhook deliveries to be
	// signed by this address (EIP-191 over the raw body).
	RelayerAddress string `yaml:"relayer_address"`
}

// APIKey grants a static key a set of capabilities. Intended for ops
// tooling; user traffic should use JWTs.
type APIKey struct {
	Key          string   `yaml:"key"`
	Name         string   `yaml:"name"`
	Capabilities []string `yaml:"capabilities"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWKSURL string   `yaml:"jwks_url"`
	Issuer  string   `yaml:"issuer"`
	APIKeys []APIKey `yaml:"api_keys"`
	// AllowUnauthenticatedCaller lets bridge requests name their caller in
	// the request body instead of deriving it from credentials. Local
	// development only.
	AllowUnauthenticatedCaller bool `yaml:"allow_unauthenticated_caller"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// Load loads configuration from file, expanding ${ENV} references,
// applying defaults, and validating the result.
func Load(configPath string) (*Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return err
	}

	// Cross-field checks the tag language does not express.
	if cfg.Transport.Mode == TransportModeRouter {
		if cfg.Ethereum.RPCURL == "" {
			return fmt.Errorf("ethereum.rpc_url is required when transport.mode is router")
		}
		if cfg.Ethereum.VaultContract == "" {
			return fmt.Errorf("ethereum.vault_contract is required when transport.mode is router")
		}
		if cfg.Ethereum.RouterContract == "" {
			return fmt.Errorf("ethereum.router_contract is required when transport.mode is router")
		}
	}
	return nil
}
