package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Database drivers accepted in [DatabaseConfig.Driver].
const (
	DriverNone   = ""
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// DefaultMetadataBytes caps how much of a file is read for embedded metadata.
const DefaultMetadataBytes int64 = 1 << 20

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Metadata    MetadataConfig    `toml:"metadata"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Google GoogleConfig `toml:"google"`
	Genius GeniusConfig `toml:"genius"`
}

// GoogleConfig contains the OAuth2 client used for Drive access and where its token is kept.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	TokenPath    string `toml:"token_path"`
}

// GeniusConfig contains lyrics source credentials.
type GeniusConfig struct {
	AccessToken       string  `toml:"access_token"`
	APIURL            string  `toml:"api_url"`
	HeadersPath       string  `toml:"headers_path"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// DatabaseConfig contains cache store settings.
//
// Driver selects the backend; an empty driver disables caching entirely.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	URI          string `toml:"uri"`
	Name         string `toml:"name"`
	Collection   string `toml:"collection"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// MetadataConfig bounds embedded metadata extraction.
type MetadataConfig struct {
	MaxBytes int64 `toml:"max_bytes"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidConfig)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides credentials and the document store URI from the environment.
//
// Unset variables leave the loaded values alone.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}

	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Credentials.Google.ClientID, "GOOGLE_CLIENT_ID")
	set(&c.Credentials.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&c.Credentials.Google.RedirectURI, "GOOGLE_REDIRECT_URI")
	set(&c.Credentials.Genius.AccessToken, "GENIUS_ACCESS_TOKEN")
	set(&c.Database.URI, "MONGO_URI")
}

// Validate checks the fields the pipeline cannot run without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverNone, DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required for sqlite", ErrInvalidConfig)
	}

	if c.Database.Driver == DriverMongo && (c.Database.URI == "" || c.Database.Name == "" || c.Database.Collection == "") {
		return fmt.Errorf("%w: database.uri, name and collection are required for mongo", ErrInvalidConfig)
	}

	if c.Metadata.MaxBytes < 0 {
		return fmt.Errorf("%w: metadata.max_bytes must not be negative", ErrInvalidConfig)
	}

	return nil
}

// MetadataBytes returns the configured prefix size or [DefaultMetadataBytes].
func (c *Config) MetadataBytes() int64 {
	if c.Metadata.MaxBytes <= 0 {
		return DefaultMetadataBytes
	}
	return c.Metadata.MaxBytes
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
