package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gologme/log"
	"github.com/spf13/cobra"

	"github.com/nhle/mailclient/internal/app"
	"github.com/nhle/mailclient/internal/logging"
	"github.com/nhle/mailclient/internal/model"
	appsync "github.com/nhle/mailclient/internal/sync"
)

var (
	cfgFile     string
	apiURL      string
	backendName string
	logFile     string
	debug       bool

	cfg       *model.AppConfig
	logger    *log.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "mailclient",
	Short: "Terminal mail client",
	Long: `mailclient is a full-screen terminal mail client. It shows the inbox,
sent and archive mailboxes, opens messages, archives them, and sends
new messages and replies.

It talks to a JSON mail API (see "mailclient devserver") or to an
IMAP/SMTP account.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			// setup exists to repair a broken configuration.
			if cmd.Name() != "setup" {
				return err
			}
			cfg = model.DefaultAppConfig()
		}

		logger, logCloser, err = logging.Open(cfg.Log)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
	RunE: runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/mailclient/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.Flags().StringVar(&apiURL, "api-url", "", "mail API base URL")
	rootCmd.Flags().StringVar(&backendName, "backend", "", "backend to use: rest or imap")
}

// ExecuteContext runs the root command with the given context, enabling
// graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return model.DefaultConfigPath()
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*model.AppConfig, error) {
	c, err := model.LoadConfig(configPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if apiURL != "" {
		c.API.BaseURL = apiURL
	}
	if backendName != "" {
		c.Backend = model.Backend(backendName)
	}
	if logFile != "" {
		c.Log.File = logFile
	}
	if debug {
		c.Log.Level = "debug"
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	client, err := app.OpenBackend(cfg, logger)
	if err != nil {
		return err
	}

	interval := time.Duration(cfg.Display.RefreshIntervalSec) * time.Second
	poller := appsync.New(client, interval, logger)
	defer poller.Stop()

	m := app.New(client, app.Options{
		Poller:    poller,
		Logger:    logger,
		ExportDir: filepath.Join(model.ConfigDir(), "exports"),
	})

	logger.Infof("starting mailclient with %s backend", cfg.Backend)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}
