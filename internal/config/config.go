package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "WARNAIN"
	defaultHTTPAddress    = "0.0.0.0:8000"
	defaultDatabaseDriver = DriverSQLite
	defaultDatabasePath   = "warnain.db"
	defaultLogLevel       = "info"
	defaultLogMaxSizeMB   = 50
	defaultLogMaxBackups  = 5
	defaultTokenTTL       = 30 * 24 * 60
	defaultNetworkSource  = NetworkSourceShell
	defaultCupsServer     = "localhost:631"
	defaultMediaRoot      = "media"
	defaultMediaURL       = "/media/"
	defaultUploadMaxBytes = 10 << 20
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Supported network interface sources.
const (
	NetworkSourceShell   = "shell"
	NetworkSourceNetlink = "netlink"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress string

	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int

	SigningSecret string
	TokenTTL      time.Duration

	// PrinterName and NetworkInterface are the static fallbacks used when no
	// default row exists in the database.
	PrinterName      string
	NetworkInterface string
	NetworkSource    string

	CupsServer   string
	CupsUser     string
	CupsPassword string
	CupsTLS      bool

	MediaRoot      string
	MediaURL       string
	UploadDir      string
	UploadMaxBytes int64
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", "")
	configViper.SetDefault("log.max_size_mb", defaultLogMaxSizeMB)
	configViper.SetDefault("log.max_backups", defaultLogMaxBackups)
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("printer.name", "")
	configViper.SetDefault("network.interface", "")
	configViper.SetDefault("network.source", defaultNetworkSource)
	configViper.SetDefault("cups.server", defaultCupsServer)
	configViper.SetDefault("cups.user", "")
	configViper.SetDefault("cups.password", "")
	configViper.SetDefault("cups.tls", false)
	configViper.SetDefault("media.root", defaultMediaRoot)
	configViper.SetDefault("media.url", defaultMediaURL)
	configViper.SetDefault("upload.dir", "")
	configViper.SetDefault("upload.max_bytes", defaultUploadMaxBytes)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	return load(configViper, true)
}

// LoadOffline parses configuration for commands that never issue tokens.
// The signing secret is not required.
func LoadOffline(configViper *viper.Viper) (AppConfig, error) {
	return load(configViper, false)
}

func load(configViper *viper.Viper, requireSecret bool) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		DatabaseDriver:   strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:     configViper.GetString("database.path"),
		DatabaseDSN:      configViper.GetString("database.dsn"),
		LogLevel:         configViper.GetString("log.level"),
		LogFile:          strings.TrimSpace(configViper.GetString("log.file")),
		LogMaxSizeMB:     configViper.GetInt("log.max_size_mb"),
		LogMaxBackups:    configViper.GetInt("log.max_backups"),
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		TokenTTL:         time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		PrinterName:      strings.TrimSpace(configViper.GetString("printer.name")),
		NetworkInterface: strings.TrimSpace(configViper.GetString("network.interface")),
		NetworkSource:    strings.ToLower(strings.TrimSpace(configViper.GetString("network.source"))),
		CupsServer:       strings.TrimSpace(configViper.GetString("cups.server")),
		CupsUser:         configViper.GetString("cups.user"),
		CupsPassword:     configViper.GetString("cups.password"),
		CupsTLS:          configViper.GetBool("cups.tls"),
		MediaRoot:        configViper.GetString("media.root"),
		MediaURL:         configViper.GetString("media.url"),
		UploadDir:        configViper.GetString("upload.dir"),
		UploadMaxBytes:   configViper.GetInt64("upload.max_bytes"),
	}

	if err := cfg.validate(requireSecret); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate(requireSecret bool) error {
	if requireSecret && strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	switch c.DatabaseDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.DatabaseDriver)
	}
	switch c.NetworkSource {
	case NetworkSourceShell, NetworkSourceNetlink:
	default:
		return fmt.Errorf("unsupported network.source %q", c.NetworkSource)
	}
	if c.CupsServer == "" {
		return fmt.Errorf("cups.server is required")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	return nil
}
