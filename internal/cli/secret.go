package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/slipwayci/slipway/internal/secret"
)

// AddSecretCommand adds the secret command group to the parent command.
func AddSecretCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage deployment secrets",
		Long: `Secret manages named credentials used by deployments. Values are
read from stdin (or prompted on a terminal), stored with owner-only
permissions, and never written to any log. Secrets are write-once:
use rotate to replace a value.`,
	}

	cmd.AddCommand(newSecretSetCmd())
	cmd.AddCommand(newSecretRotateCmd())
	cmd.AddCommand(newSecretListCmd())
	cmd.AddCommand(newSecretRemoveCmd())

	parent.AddCommand(cmd)
}

// newSecretSetCmd creates the secret set subcommand.
func newSecretSetCmd() *cobra.Command {
	var scopes []string

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create a new secret (write-once)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			value, err := readSecretValue(cmd)
			if err != nil {
				return err
			}

			if err := app.secrets.Create(ctx, args[0], value, scopes); err != nil {
				return err
			}
			logger.Info().Str("secret", args[0]).Strs("scopes", scopes).Msg("secret created")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "target names allowed to resolve the secret (repeatable; empty allows all)")
	return cmd
}

// newSecretRotateCmd creates the secret rotate subcommand.
func newSecretRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate <name>",
		Short: "Replace the value of an existing secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			value, err := readSecretValue(cmd)
			if err != nil {
				return err
			}

			if err := app.secrets.Rotate(ctx, args[0], value); err != nil {
				return err
			}
			logger.Info().Str("secret", args[0]).Msg("secret rotated")
			return nil
		},
	}
}

// newSecretListCmd creates the secret list subcommand.
func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List secret names and scopes (never values)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			records, err := app.secrets.List(ctx)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("No secrets found.")
				return nil
			}

			cmd.Printf("%-24s %-8s %-20s %s\n", "NAME", "VERSION", "CREATED", "SCOPES")
			for _, record := range records {
				scopes := "all targets"
				if len(record.Scopes) > 0 {
					scopes = strings.Join(record.Scopes, ", ")
				}
				cmd.Printf("%-24s %-8d %-20s %s\n",
					record.Name,
					record.Version,
					record.CreatedAt.Format("2006-01-02 15:04:05"),
					scopes,
				)
			}
			return nil
		},
	}
}

// newSecretRemoveCmd creates the secret rm subcommand.
func newSecretRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			if err := app.secrets.Delete(ctx, args[0]); err != nil {
				return err
			}
			logger.Info().Str("secret", args[0]).Msg("secret deleted")
			return nil
		},
	}
}

// readSecretValue reads the secret value without echoing it. On a
// terminal it prompts; otherwise it reads stdin to EOF so values can be
// piped in.
func readSecretValue(cmd *cobra.Command) (secret.Value, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		cmd.PrintErr("Enter secret value: ")
		raw, err := term.ReadPassword(fd)
		cmd.PrintErrln()
		if err != nil {
			return "", fmt.Errorf("failed to read secret value: %w", err)
		}
		return secret.Value(raw), nil
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read secret value: %w", err)
	}
	return secret.Value(strings.TrimRight(string(raw), "\r\n")), nil
}
