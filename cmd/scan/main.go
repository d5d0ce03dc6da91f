package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/bighogz/secform/internal/aggregator"
	"github.com/bighogz/secform/internal/cache"
	"github.com/bighogz/secform/internal/config"
	"github.com/bighogz/secform/internal/feed"
	"github.com/bighogz/secform/internal/filing"
	"github.com/bighogz/secform/internal/httpclient"
	"github.com/bighogz/secform/internal/models"
	"github.com/bighogz/secform/internal/sp500"
	"github.com/bighogz/secform/internal/telemetry"
)

type scanOptions struct {
	start          int
	count          int
	filingType     string
	owner          string
	details        bool
	summary        bool
	sp500Only      bool
	format         string
	workers        int
	cachePath      string
	diagnosticsDir string
	trace          bool
}

func newRootCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "scan lists recent insider transaction filings from the EDGAR current feed.",
		Long: "scan pages through the EDGAR current-filings feed, keeps the reporting-owner\n" +
			"entries and optionally fetches each filing to extract issuer and\n" +
			"non-derivative transaction details.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.start, "start", 0, "Feed offset to start from")
	f.IntVar(&opts.count, "count", 100, "Number of feed entries to scan")
	f.StringVar(&opts.filingType, "type", "4", "Filing form type")
	f.StringVar(&opts.owner, "owner", "include", "Owner filter: include, exclude or only")
	f.BoolVar(&opts.details, "details", false, "Fetch each filing and extract issuer and transactions")
	f.BoolVar(&opts.summary, "summary", false, "Fetch details and print per-issuer totals")
	f.BoolVar(&opts.sp500Only, "sp500", false, "Keep only filings whose issuer is an S&P 500 constituent (implies --details)")
	f.StringVar(&opts.format, "format", "table", "Output format: table, csv or json")
	f.IntVar(&opts.workers, "workers", config.DetailWorkers, "Filings fetched concurrently")
	f.StringVar(&opts.cachePath, "cache", config.CachePath, "SQLite file caching filing documents (empty disables)")
	f.StringVar(&opts.diagnosticsDir, "diagnostics-dir", config.DiagnosticsDir, "Directory receiving fragments of filings that failed to parse")
	f.BoolVar(&opts.trace, "trace", config.TraceEnabled, "Print OpenTelemetry spans to stderr")
	return cmd
}

func runScan(cmd *cobra.Command, opts *scanOptions) error {
	switch opts.format {
	case formatTable, formatCSV, formatJSON:
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	ctx := cmd.Context()
	if opts.trace {
		shutdown, err := telemetry.Setup(ctx, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	fetcher := httpclient.New()
	t0 := time.Now()
	entries := feed.New(fetcher, "").GetRecentFilings(ctx, feed.Query{
		Start:      opts.start,
		Count:      opts.count,
		FilingType: opts.filingType,
		Owner:      opts.owner,
	})
	slog.Info("feed scanned", "entries", len(entries), "seconds", time.Since(t0).Seconds())

	out := cmd.OutOrStdout()
	if !opts.details && !opts.summary && !opts.sp500Only {
		return writeEntries(out, opts.format, entries)
	}

	var docs httpclient.Fetcher = fetcher
	if opts.cachePath != "" {
		store, err := cache.Open(opts.cachePath)
		if err != nil {
			return err
		}
		defer store.Close()
		docs = &cache.Fetcher{Next: fetcher, Store: store}
	}

	t1 := time.Now()
	records := filing.New(docs,
		filing.WithWorkers(opts.workers),
		filing.WithDiagnosticsDir(opts.diagnosticsDir),
	).DetailEntries(ctx, entries)
	slog.Info("filings detailed", "records", len(records), "entries", len(entries), "seconds", time.Since(t1).Seconds())

	if opts.sp500Only {
		index, err := sp500.Load(ctx, fetcher, config.SP500URL)
		if err != nil {
			return err
		}
		records = aggregator.FilterIssuers(records, func(is models.Issuer) bool {
			return index.Contains(is.IssuerTradingSymbol)
		})
		slog.Info("filtered to S&P 500", "records", len(records), "constituents", len(index))
	}

	if opts.summary {
		return writeSummary(out, opts.format, aggregator.Summarize(records))
	}
	return writeRecords(out, opts.format, records)
}

func main() {
	telemetry.InitSlog(config.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
