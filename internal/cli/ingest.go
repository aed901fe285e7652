package cli

import (
	"fmt"
	"sync"

	"review-rag-be/internal/bootstrap"
	"review-rag-be/pkg/rag/ingestion"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	ingestLoadExisting bool
	ingestDataPath     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load review documents into the vector store",
	Long: `Read the reviews CSV, embed every row and upload it to the configured
collection. With --load-existing nothing is read or embedded; the existing
collection is opened as is.

Examples:
  reviewrag ingest
  reviewrag ingest --data "data/*.csv"
  reviewrag ingest --load-existing`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestLoadExisting, "load-existing", false, "open the existing collection instead of loading")
	ingestCmd.Flags().StringVar(&ingestDataPath, "data", "", "CSV file or glob (default INGEST_DATA_PATH)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestDataPath != "" {
		cfg.Ingest.DataPath = ingestDataPath
	}

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
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		_ = bar.Set(done)
	}

	core, err := openCore(bootstrap.WithIngestionOptions(ingestion.WithProgress(progress)))
	if err != nil {
		return err
	}
	defer core.Close()

	ctx := cmd.Context()
	if ingestLoadExisting {
		if _, err := core.Ingestion.GetOrCreateStore(ctx, true); err != nil {
			return err
		}
		n, err := core.Store.Count(ctx)
		if err != nil {
			color.Yellow("Opened existing collection (count unavailable: %v)", err)
			return nil
		}
		color.Green("Opened existing collection with %d documents", n)
		return nil
	}

	report, err := core.Ingestion.Load(ctx)
	if err != nil {
		return err
	}
	color.Green("Loaded %d documents from %s in %s", report.Documents, report.DataPath, report.Duration.Round(1e6))
	return nil
}
