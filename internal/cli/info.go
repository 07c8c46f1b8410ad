package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show what the collection holds",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, cleanup, err := openApp(ctx, "")
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := a.Info.Describe(ctx, a.Collection, a.Records)
	if err != nil {
		return err
	}

	if infoJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	collections, err := a.Info.ListCollections(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Store: %s (%d collections)\n\n", cfg.Store.Path, len(collections))
	printReport(info.Report, true)

	if run := info.LastRun; run != nil {
		fmt.Printf("\nLast ingest: %s from %s\n", run.StartedAt.Format("2006-01-02 15:04:05"), run.Source)
		fmt.Printf("  inserted %d, updated %d, failed %d\n", run.Inserted, run.Updated, run.Failed)
	}
	return nil
}
