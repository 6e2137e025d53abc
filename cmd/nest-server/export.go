package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"nest/internal/archive"
	"nest/internal/inbox"
	"nest/pkg/bootstrap"
	"nest/pkg/cel"
	"nest/pkg/metrics"
)

func exportCmd() *cobra.Command {
	var binID, filterExpr string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Archive all events of a bin to S3 as gzip JSONL",
		Long:  "Archive all events of a bin, oldest first, to S3 as gzip JSONL.\n\nFilter examples:\n" + filterExamples(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if binID == "" {
				return errors.New("--bin is required")
			}

			var filter *cel.Filter
			if filterExpr != "" {
				eval, err := cel.NewEvaluator()
				if err != nil {
					return err
				}
				if filter, err = eval.CompileFilter(filterExpr); err != nil {
					return err
				}
			}

			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			metrics.Register()

			connector := bootstrap.NewDatabaseConnector(cfg, log)
			db, err := connector.InitPostgreSQL(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := archive.NewS3Client(ctx, cfg.Archive)
			if err != nil {
				return err
			}

			repo := inbox.NewRepository(db)
			exporter := archive.NewExporter(repo, repo, client, archive.Config{
				Bucket: cfg.Archive.Bucket,
				Prefix: cfg.Archive.Prefix,
				Filter: filter,
			}, log)

			result, err := exporter.ExportBin(ctx, binID)
			if err != nil {
				log.ErrorwCtx(ctx, "Export failed", "bin_id", binID, "error", err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "s3://%s/%s (%d events, %d skipped, %d bytes)\n",
				result.Bucket, result.Key, result.Events, result.Skipped, result.Bytes)
			return nil
		},
	}

	cmd.Flags().StringVar(&binID, "bin", "", "ID of the bin to export")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "CEL expression selecting the events to export")
	return cmd
}

func filterExamples() string {
	names := make([]string, 0, len(cel.FilterExpressionExamples))
	for name := range cel.FilterExpressionExamples {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", cel.FilterExpressionExamples[name])
	}
	return b.String()
}
