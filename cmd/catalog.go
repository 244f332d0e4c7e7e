package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"flakecast/internal/catalog"
	"flakecast/internal/report"
)

var catalogCmd = &cobra.Command{
	Use:       "catalog stores|items",
	Short:     "List the stores or items that can be forecast",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"stores", "items"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := current

		d, err := catalog.ParseDimension(args[0])
		if err != nil {
			return err
		}
		cat, err := a.catalog(ctx)
		if err != nil {
			return err
		}
		values, err := cat.List(ctx, d)
		if err != nil {
			return err
		}

		out := a.ui.Writer()
		for _, v := range values {
			fmt.Fprintln(out, v)
		}
		a.ui.VerbosePrintf("%d %s\n", len(values), d)
		return nil
	},
}

var (
	previewStore int64
	previewLimit int
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show raw sales rows for a store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := current

		cat, err := a.catalog(ctx)
		if err != nil {
			return err
		}
		rows, err := cat.Preview(ctx, previewStore, previewLimit)
		if err != nil {
			return err
		}
		report.SalesTable(a.ui.Writer(), rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().Int64Var(&previewStore, "store", 0, "store number")
	previewCmd.Flags().IntVar(&previewLimit, "limit", catalog.DefaultPreviewLimit, "maximum rows to show")
	_ = previewCmd.MarkFlagRequired("store")
}
