package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/liliang-cn/ragchat/internal/watch"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	ingestAtomic bool
	ingestQuiet  bool
	ingestWatch  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Load a directory into the collection",
	Long: `Load every matching file under the data directory into the collection.
A file whose name is already stored replaces the stored record; a new name
adds one. Running ingest twice on the same files changes nothing.

Examples:
  ragchat ingest              # Ingest the configured data directory
  ragchat ingest ./docs       # Ingest a specific directory
  ragchat ingest --watch      # Keep ingesting as files change`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestAtomic, "atomic", false, "write through the store's insert-or-replace primitive")
	ingestCmd.Flags().BoolVarP(&ingestQuiet, "quiet", "q", false, "do not print the per-record listing")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "re-ingest whenever files in the directory change")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := cfg.Ingest.DataDir
	if len(args) > 0 {
		dir = args[0]
	}

	ctx := cmd.Context()
	a, cleanup, err := openApp(ctx, "")
	if err != nil {
		return err
	}
	defer cleanup()

	if ingestAtomic {
		a.Ingest.AtomicUpsert = true
	}

	fmt.Printf("Ingesting %s into collection %q...\n", dir, a.Collection.Name)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	progress := func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	result, err := a.Ingest.IngestDirectory(ctx, dir, progress)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Inserted: %d\n", result.Inserted)
	fmt.Printf("  Updated:  %d\n", result.Updated)
	fmt.Printf("  Failed:   %d\n", result.Failed)
	if len(result.Errors) > 0 {
		fmt.Printf("\nSkipped documents:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - #%d %s: %s\n", e.Index, e.ID, e.Err)
		}
	}

	info, err := a.Info.Describe(ctx, a.Collection, a.Records)
	if err != nil {
		return err
	}
	fmt.Println()
	printReport(info.Report, !ingestQuiet)

	if !ingestWatch {
		return nil
	}

	fmt.Printf("\nWatching %s for changes (Ctrl+C to stop)...\n", dir)
	w := watch.New(dir, watch.DefaultDebounce, func(ctx context.Context) error {
		result, err := a.Ingest.IngestDirectory(ctx, dir, nil)
		if err != nil {
			return err
		}
		fmt.Printf("[%s] inserted %d, updated %d, failed %d\n",
			time.Now().Format("15:04:05"), result.Inserted, result.Updated, result.Failed)
		return nil
	}, a.Logger.Named("watch"))
	return w.Run(ctx)
}

func printReport(report *domain.CollectionReport, withRecords bool) {
	fmt.Printf("Collection:        %s\n", report.Collection)
	fmt.Printf("Records:           %d\n", report.Count)
	fmt.Printf("Total text length: %d\n", report.TotalTextLength)
	fmt.Printf("Embedding dim:     %d\n", report.EmbeddingDim)
	if !withRecords {
		return
	}
	for i, id := range report.IDs {
		fmt.Printf("  %s\n", id)
		for _, key := range []string{
			domain.MetadataKeyFilePath,
			domain.MetadataKeyFileType,
			domain.MetadataKeyFileSize,
			domain.MetadataKeyLastModifiedDate,
		} {
			if v, ok := report.Metadatas[i][key]; ok {
				fmt.Printf("    %-20s %v\n", key+":", v)
			}
		}
	}
}
