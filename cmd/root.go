package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"flakecast/internal/config"
	"flakecast/internal/observability"
	"flakecast/internal/ui"
	"flakecast/pkg/errors"
	"flakecast/pkg/models"
)

var (
	cfgFile string
	verbose bool
	quiet   bool

	// current is the container built for the running command.
	current *app

	rootCmd = &cobra.Command{
		Use:   "flakecast",
		Short: "Forecast store and item sales with a Snowflake forecasting function",
		Long: `flakecast trains a warehouse forecasting function on the sales history of one
store and item and shows the result as a chart and a table.

Run 'flakecast forecast' for the terminal workflow or 'flakecast serve' for the
browser dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsSetup(cmd) {
				return nil
			}
			cfg, err := initConfig()
			if err != nil {
				return err
			}
			logger, err := initLogger(cfg)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return err
			}
			current = a
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if current == nil {
				return
			}
			if err := current.close(); err != nil {
				current.logger.Warn("shutdown", zap.Error(err))
			}
			_ = current.logger.Sync()
			current = nil
		},
	}
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.ShowError(rootCmd.ErrOrStderr(), err)
		if current != nil {
			_ = current.close()
			current = nil
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ~/.flakecast/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output and debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print errors only")
}

// skipsSetup reports commands that need neither config nor a logger.
func skipsSetup(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "path", "completion":
		return true
	}
	return false
}

// initConfig layers .env, the config file and FLAKECAST_* variables.
func initConfig() (*models.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if env := os.Getenv("FLAKECAST_CONFIG"); env != "" {
		v.SetConfigFile(env)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".flakecast"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read config file").
				WithContext("file", v.ConfigFileUsed())
		}
	}

	return config.Load(v)
}

func initLogger(cfg *models.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(observability.LoggerConfig{
		Level:   level,
		Format:  cfg.Log.Format,
		Service: "flakecast",
		Version: Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
