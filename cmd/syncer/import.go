package main

import (
	"fmt"

	"github.com/spf13/cobra"

	importfeeds "mpsync/syncer/internal/import"
	"mpsync/syncer/internal/storage"
)

var importCmd = &cobra.Command{
	Use:   "import <csv>",
	Short: "Import feed subscriptions from a CSV file or URL",
	Long:  "Columns: id and name are required; cover, intro, status and update_time are optional. Existing feeds are updated in place.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signalContext()
		defer cancel()

		report, err := importfeeds.NewImporter(storage.NewRepository(db)).ImportFeeds(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d feeds successfully\n", report.Imported)
		if len(report.Errors) > 0 {
			fmt.Printf("Encountered %d errors:\n", len(report.Errors))
			for _, e := range report.Errors {
				fmt.Printf("  - %s\n", e)
			}
		}
		return nil
	},
}
