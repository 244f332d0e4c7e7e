package cmd

import (
	"github.com/spf13/cobra"

	"flakecast/internal/security"
	"flakecast/pkg/errors"
)

var loginForget bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the warehouse password in the OS keyring",
	Long: `Ask for the Snowflake password of the configured account and user and keep
it in the OS keyring. Systems without a keyring get an encrypted file under
~/.flakecast/credentials instead.

With --forget the stored password is removed instead.`,
	Example: `  flakecast login
  flakecast login --forget`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		sf := a.cfg.Snowflake
		if sf.Account == "" || sf.Username == "" {
			return errors.ConfigError("account and username must be configured before login", "snowflake.account").
				WithSuggestions("Set snowflake.account and snowflake.username in config.yaml")
		}
		if a.secrets == nil {
			return errors.New(errors.ErrCodeCredentials, "No credential store is available")
		}
		who := sf.Username + "@" + sf.Account

		if loginForget {
			err := a.secrets.DeletePassword(sf.Account, sf.Username)
			switch {
			case errors.Is(err, security.ErrNotFound):
				a.ui.Warning("No stored password for " + who)
				return nil
			case err != nil:
				return errors.Wrap(err, errors.ErrCodeCredentials, "Failed to remove the password")
			}
			a.ui.Success("Password removed for " + who)
			return nil
		}

		password, err := a.prompter.Password("Password for " + who)
		if err != nil {
			return err
		}
		if err := a.secrets.StorePassword(sf.Account, sf.Username, password); err != nil {
			return errors.Wrap(err, errors.ErrCodeCredentials, "Failed to store the password")
		}
		a.ui.Success("Password stored for " + who)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().BoolVar(&loginForget, "forget", false, "remove the stored password")
}
