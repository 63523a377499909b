package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nhle/mailclient/internal/credential"
)

var tokenIMAP bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage stored credentials",
	Long: `Store or remove the mail API token, or with --imap the IMAP/SMTP
password, in the system keyring.

The API token can also be supplied through $MAILCLIENT_TOKEN.`,
}

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a credential read from the terminal or stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, label := credentialKey()

		// Prompt without echo; never accept secrets as flags.
		secret, err := readSecret(cmd.OutOrStdout(), cmd.InOrStdin(), label)
		if err != nil {
			return err
		}
		if secret == "" {
			return fmt.Errorf("%s is required", label)
		}

		if err := credential.Set(key, secret); err != nil {
			return err
		}
		logger.Infof("stored %s in keyring", key)
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %s.\n", label)
		return nil
	},
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a stored credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, label := credentialKey()
		err := credential.Delete(key)
		if errors.Is(err, credential.ErrNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "No %s stored.\n", label)
			return nil
		}
		if err != nil {
			return err
		}
		logger.Infof("deleted %s from keyring", key)
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", label)
		return nil
	},
}

func init() {
	tokenCmd.PersistentFlags().BoolVar(&tokenIMAP, "imap", false, "manage the IMAP/SMTP password instead of the API token")
	tokenCmd.AddCommand(tokenSetCmd, tokenDeleteCmd)
	rootCmd.AddCommand(tokenCmd)
}

func credentialKey() (key, label string) {
	key = credential.APITokenKey
	if tokenIMAP {
		key = credential.IMAPPasswordKey
	}
	return key, credential.Label(key)
}

// readSecret prompts on a terminal without echo, or reads one line from a
// pipe.
func readSecret(out io.Writer, in io.Reader, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "%s: ", label)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", label, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return strings.TrimSpace(line), nil
}
