package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nhle/mailclient/internal/app"
	"github.com/nhle/mailclient/internal/devserver"
	"github.com/nhle/mailclient/internal/logging"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/store"
)

var (
	devAddr  string
	devDB    string
	devUser  string
	devToken string
	devSeed  bool
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local mail API backed by SQLite",
	Long: `Run a local implementation of the mail API the rest backend talks to.

Every request acts as the --user account. Recipients must already have an
account; --seed creates a few demo users and messages.

Point the client at it with:
  mailclient --api-url http://127.0.0.1:8000

and set api.allow_insecure: true in the config file.

Use Ctrl+C to stop the server gracefully.`,
	RunE: runDevserver,
}

func init() {
	devserverCmd.Flags().StringVar(&devAddr, "addr", "127.0.0.1:8000", "listen address")
	devserverCmd.Flags().StringVar(&devDB, "db", "", "SQLite database path (default ~/.config/mailclient/devserver.db)")
	devserverCmd.Flags().StringVar(&devUser, "user", "me@example.com", "account every request acts as")
	devserverCmd.Flags().StringVar(&devToken, "token", "", "require this Bearer token (default $"+app.TokenEnv+")")
	devserverCmd.Flags().BoolVar(&devSeed, "seed", false, "create demo users and messages")
	rootCmd.AddCommand(devserverCmd)
}

func runDevserver(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// The server has no UI, so it logs to stderr.
	srvLog := logging.New(os.Stderr, cfg.Log.Level)

	dbPath := devDB
	if dbPath == "" {
		dbPath = filepath.Join(model.ConfigDir(), "devserver.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	if devSeed {
		if err := store.Seed(ctx, st, devUser); err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		srvLog.Infof("seeded demo messages for %s", devUser)
	}

	token := devToken
	if token == "" {
		token = os.Getenv(app.TokenEnv)
	}

	srv, err := devserver.New(ctx, st, devserver.Config{
		User:   devUser,
		Token:  token,
		Logger: srvLog,
	})
	if err != nil {
		return err
	}

	return srv.ListenAndServe(ctx, devAddr)
}
