package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/mailclient/internal/app"
	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/ui/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the mail backend interactively",
	Long: `Choose between the mail API and an IMAP/SMTP account, enter the
connection details, and test them. The configuration is saved only when
the inbox can be listed; secrets go to the system keyring.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

// setupModel adapts the setup view to a standalone program.
type setupModel struct {
	config.Model
	saved bool
}

func (m setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(config.DoneMsg); ok {
		m.saved = done.Saved
		return m, tea.Quit
	}
	next, cmd := m.Model.Update(msg)
	m.Model = next.(config.Model)
	return m, cmd
}

func runSetup(cmd *cobra.Command, args []string) error {
	path := configPath()

	m := setupModel{Model: config.New(config.Options{
		Path:   path,
		Config: cfg,
		Open: func(c *model.AppConfig) (mailapi.Client, error) {
			return app.OpenBackend(c, logger)
		},
	}, 80, 24)}

	p := tea.NewProgram(m, tea.WithContext(cmd.Context()))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("running setup: %w", err)
	}

	if fm, ok := final.(setupModel); ok && fm.saved {
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)
	}
	return nil
}
