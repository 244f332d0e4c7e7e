package config

import (
	stderrors "errors"
	"os"

	"github.com/joho/godotenv"

	"flakecast/internal/security"
	"flakecast/pkg/errors"
	"flakecast/pkg/models"
)

// PasswordSource looks up a stored warehouse password.
type PasswordSource interface {
	Password(account, user string) (string, error)
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// not an error; variables already set win over the file.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to load environment file").
				WithContext("path", p)
		}
	}
	return nil
}

// ResolvePassword fills in the warehouse password from the secret store when
// neither the config file nor the environment provided one.
func ResolvePassword(cfg *models.Config, source PasswordSource) error {
	sf := &cfg.Snowflake
	if sf.Password != "" {
		return nil
	}
	if source == nil {
		return errors.New(errors.ErrCodeCredentials, "No warehouse password configured").
			WithSuggestions(
				"Set FLAKECAST_SNOWFLAKE_PASSWORD",
				"Run 'flakecast login' to store it in the keyring",
			)
	}

	pw, err := source.Password(sf.Account, sf.Username)
	if stderrors.Is(err, security.ErrNotFound) {
		return errors.New(errors.ErrCodeCredentials, "No warehouse password configured").
			WithContext("account", sf.Account).
			WithContext("user", sf.Username).
			WithSuggestions(
				"Set FLAKECAST_SNOWFLAKE_PASSWORD",
				"Run 'flakecast login' to store it in the keyring",
			)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentials, "Failed to read the stored password")
	}

	sf.Password = pw
	return nil
}
