package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/G1P0/vkomment/internal/credential"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the VK token stored in the system keyring",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set [TOKEN]",
			Short: "Save a token (argument or --token) to the keyring",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				token := a.token
				if len(args) == 1 {
					token = args[0]
				}
				token = strings.TrimSpace(token)
				if token == "" {
					return fmt.Errorf("%w: pass a token as argument or with --token", credential.ErrMissingCredential)
				}
				if a.noKeyring {
					return errors.New("keyring is disabled by --no-keyring")
				}
				k := credential.DefaultKeyring()
				if err := k.Save(token); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "token saved to keyring (service %q, user %q)\n", k.Service, k.User)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the token from the keyring",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if a.noKeyring {
					return errors.New("keyring is disabled by --no-keyring")
				}
				if err := credential.DefaultKeyring().Delete(); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "token removed from keyring")
				return nil
			},
		},
	)
	return cmd
}
