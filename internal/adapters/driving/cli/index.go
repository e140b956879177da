package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

var (
	indexFull  bool
	indexWatch bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index documents for retrieval",
	Long: `Walks the source directory, chunks and embeds every document, and
commits the results to the store. By default only new and changed
documents are processed; --full re-embeds everything.

Examples:
  quarry index                # Index the configured source root
  quarry index ./docs         # Index a specific directory
  quarry index --watch        # Keep re-indexing as files change`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndexCmd,
}

func init() {
	indexCmd.Flags().BoolVar(&indexFull, "full", false, "re-index every document, ignoring stored hashes")
	indexCmd.Flags().BoolVar(&indexWatch, "watch", false, "stay running and re-index documents as they change")
	rootCmd.AddCommand(indexCmd)
}

func runIndexCmd(cmd *cobra.Command, args []string) error {
	if indexerService == nil {
		return errors.New("indexer not configured")
	}

	opts := domain.IndexOptions{
		Incremental: !indexFull,
	}
	if len(args) > 0 {
		opts.SourceRoot = args[0]
	}

	report, err := indexWithProgress(cmd.Context(), cmd, indexerService, opts)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	printIndexReport(cmd, report)

	if indexWatch {
		cmd.Println()
		cmd.Println("Watching for changes. Press Ctrl+C to stop.")
		if err := indexerService.Watch(cmd.Context(), opts); err != nil &&
			!errors.Is(err, context.Canceled) {
			return fmt.Errorf("watch failed: %w", err)
		}
	}

	return nil
}

// indexWithProgress runs the index while displaying a progress spinner
// driven by the indexer's status endpoint.
func indexWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	indexer driving.Indexer,
	opts domain.IndexOptions,
) (*domain.IndexReport, error) {
	type outcome struct {
		report *domain.IndexReport
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := indexer.Index(ctx, opts)
		done <- outcome{report, err}
	}()

	// The total is unknown until the walk finishes, so the bar runs in
	// spinner mode. It writes to stderr to keep stdout clean.
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Indexing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
	)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-done:
			_ = bar.Finish()
			_ = bar.Clear()
			return res.report, res.err
		case <-ticker.C:
			// Best effort; a status error never interrupts the run.
			status, err := indexer.Status(ctx)
			if err == nil && status != nil {
				_ = bar.Set(status.DocumentsProcessed)
			}
		}
	}
}

func printIndexReport(cmd *cobra.Command, report *domain.IndexReport) {
	if report == nil {
		return
	}

	cmd.Println("Indexing complete:")
	cmd.Printf("  Documents indexed: %d\n", report.DocumentsIndexed)
	cmd.Printf("  Documents skipped: %d (unchanged)\n", report.DocumentsSkipped)
	cmd.Printf("  Documents failed:  %d\n", report.DocumentsFailed)
	cmd.Printf("  Chunks written:    %d\n", report.ChunksWritten)
	cmd.Printf("  Duration:          %s\n", report.Duration.Round(time.Millisecond))

	if len(report.Errors) > 0 {
		cmd.Println()
		cmd.Println("Warnings:")
		for _, msg := range report.Errors {
			cmd.Printf("  - %s\n", msg)
		}
	}
}
