package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Backend selects which implementation talks to the mail store.
type Backend string

const (
	BackendREST Backend = "rest"
	BackendIMAP Backend = "imap"
)

// APIConfig holds the settings for the REST mail API.
type APIConfig struct {
	// BaseURL is the root of the mail API (e.g., https://mail.example.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds each HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// AllowInsecure permits plain http:// base URLs.
	AllowInsecure bool `mapstructure:"allow_insecure" yaml:"allow_insecure"`
}

// IMAPConfig holds the settings for the IMAP/SMTP backend. The password
// lives in the system keyring, never in this file.
type IMAPConfig struct {
	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`

	// Folders maps mailbox names (inbox, sent, archive) to IMAP folders.
	Folders map[string]string `mapstructure:"folders" yaml:"folders"`
}

// DisplayConfig holds UI preferences.
type DisplayConfig struct {
	// RefreshIntervalSec is how often the unread counter polls the inbox.
	// Zero disables polling.
	RefreshIntervalSec int `mapstructure:"refresh_interval_sec" yaml:"refresh_interval_sec"`
}

// LogConfig controls the log file. The terminal belongs to the UI, so logs
// are never written to stdout.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend Backend       `mapstructure:"backend" yaml:"backend"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	IMAP    IMAPConfig    `mapstructure:"imap" yaml:"imap"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ConfigDir returns ~/.config/mailclient, falling back to the working
// directory when the home directory is unknown.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailclient")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailclient/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendREST,
		API: APIConfig{
			BaseURL:    "http://localhost:8000",
			TimeoutSec: 30,
		},
		IMAP: IMAPConfig{
			IMAPPort: "993",
			SMTPPort: "587",
			TLS:      true,
			Folders:  defaultFolders(),
		},
		Display: DisplayConfig{
			RefreshIntervalSec: 60,
		},
		Log: LogConfig{
			File:  filepath.Join(ConfigDir(), "mailclient.log"),
			Level: "info",
		},
	}
}

func defaultFolders() map[string]string {
	return map[string]string{
		string(MailboxInbox):   "INBOX",
		string(MailboxSent):    "Sent",
		string(MailboxArchive): "Archive",
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	def := DefaultAppConfig()
	v.SetDefault("backend", string(def.Backend))
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("imap.imap_port", def.IMAP.IMAPPort)
	v.SetDefault("imap.smtp_port", def.IMAP.SMTPPort)
	v.SetDefault("imap.tls", def.IMAP.TLS)
	v.SetDefault("display.refresh_interval_sec", def.Display.RefreshIntervalSec)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.level", def.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Fill in any folder the file left out.
	for mb, folder := range defaultFolders() {
		if cfg.IMAP.Folders[mb] == "" {
			if cfg.IMAP.Folders == nil {
				cfg.IMAP.Folders = make(map[string]string)
			}
			cfg.IMAP.Folders[mb] = folder
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the fields the selected backend depends on.
func (c *AppConfig) Validate() error {
	switch c.Backend {
	case BackendREST:
		if c.API.BaseURL == "" {
			return fmt.Errorf("api.base_url is required for the rest backend")
		}
	case BackendIMAP:
		if c.IMAP.IMAPHost == "" || c.IMAP.SMTPHost == "" {
			return fmt.Errorf("imap.imap_host and imap.smtp_host are required for the imap backend")
		}
		if c.IMAP.Username == "" {
			return fmt.Errorf("imap.username is required for the imap backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", string(cfg.Backend))
	v.Set("api", cfg.API)
	v.Set("imap", cfg.IMAP)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
