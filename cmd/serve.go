package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flakecast/internal/server"
)

var serveAddr string

// runServer is replaced in tests so no port is opened.
var runServer = server.Run

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the forecast dashboard",
	Long: `Serve the browser dashboard. Pick a store, an item and a horizon, then press
"Run forecast". Results are cached for the life of the process.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a := current

		cat, err := a.catalog(ctx)
		if err != nil {
			return err
		}
		fc, err := a.forecasts(ctx)
		if err != nil {
			return err
		}
		notes, err := a.annotations(ctx)
		if err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = a.cfg.Server.Addr
		}

		h := server.NewHandler(cat, fc, notes, a.cache, a.logger)
		router := server.NewRouter(h, server.Options{
			AllowedOrigins: a.cfg.Server.AllowedOrigins,
			Logger:         a.logger,
			Health:         a.health(),
		})

		a.ui.Info("Dashboard on http://" + displayAddr(addr))
		a.logger.Debug("serving", zap.String("addr", addr), zap.Bool("unique_annotations", notes.Unique()))
		return runServer(ctx, addr, router, a.logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr, "+server.DefaultAddr+")")
}

// displayAddr turns ":8501" into "localhost:8501".
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
