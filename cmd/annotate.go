package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"flakecast/internal/annotation"
	"flakecast/internal/config"
	"flakecast/internal/report"
	"flakecast/pkg/errors"
)

var (
	annotateStore int64
	annotateItem  int64
	annotateDate  string

	// today is replaced in tests.
	today = time.Now
)

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Record and read comments about a store and item",
}

var annotateAddCmd = &cobra.Command{
	Use:     "add comment...",
	Short:   "Append a comment for a store, item and day",
	Example: `  flakecast annotate add --store 5 --item 12 --date 2017-11-24 "Black Friday promotion"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := current

		date, err := parseDateFlag(annotateDate)
		if err != nil {
			return err
		}
		note := annotation.New(date, annotateStore, annotateItem, strings.Join(args, " "))
		if err := note.Validate(); err != nil {
			return err
		}

		store, err := a.annotations(ctx)
		if err != nil {
			return err
		}
		if err := store.Append(ctx, note); err != nil {
			return err
		}
		a.ui.Success("Saved comment " + note.Key)
		return nil
	},
}

var annotateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the comments for a store and item",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := current

		store, err := a.annotations(ctx)
		if err != nil {
			return err
		}
		list, err := store.ListFor(ctx, annotateStore, annotateItem)
		if err != nil {
			return err
		}
		report.AnnotationTable(a.ui.Writer(), list)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(annotateCmd)
	annotateCmd.AddCommand(annotateAddCmd)
	annotateCmd.AddCommand(annotateListCmd)

	annotateCmd.PersistentFlags().Int64Var(&annotateStore, "store", 0, "store number")
	annotateCmd.PersistentFlags().Int64Var(&annotateItem, "item", 0, "item number")
	_ = annotateCmd.MarkPersistentFlagRequired("store")
	_ = annotateCmd.MarkPersistentFlagRequired("item")

	annotateAddCmd.Flags().StringVar(&annotateDate, "date", "", "day the comment is about, YYYY-MM-DD (default today)")
}

// parseDateFlag reads a YYYY-MM-DD flag; empty means today.
func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return today(), nil
	}
	d, err := config.ParseDate(s)
	if err != nil {
		return time.Time{}, errors.ValidationError("date", s, "must be a YYYY-MM-DD date")
	}
	return d, nil
}
