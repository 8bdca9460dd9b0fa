package cli

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/amti/internal/extract"
	"github.com/roach88/amti/internal/preview"
)

// NewExtractCommand creates the extract command group.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract data from a saved batch",
		Long:  `Extract the results of a saved batch into other formats.`,
	}
	cmd.AddCommand(newExtractTabularCommand(rootOpts))
	cmd.AddCommand(newExtractXMLCommand(rootOpts))
	return cmd
}

func newExtractTabularCommand(rootOpts *RootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "tabular <batch-dir> <output>",
		Short: "Extract a saved batch as a table",
		Long: `Extract the saved batch in BATCH_DIR to OUTPUT as a table, one row per
assignment and one column per answer field plus the HIT and assignment
metadata. OUTPUT "-" writes to standard output.

This command's --format selects the table format (csv, json or jsonl) and
shadows the global output format.

Example:
  amti extract tabular batch-1234/ results.csv --format csv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := extract.ParseFormat(format)
			if err != nil {
				return rootOpts.fail(cmd, &commandError{ErrCodeUsage, err})
			}
			x := extract.New(rootOpts.cfg.Layout, rootOpts.Logger(), cmd.OutOrStdout())
			report, err := x.Tabular(args[0], args[1], f)
			if err != nil {
				return rootOpts.fail(cmd, err)
			}
			if report.Output == extract.Stdout {
				return nil
			}
			return rootOpts.formatter(cmd).Result(report, block("Extracted batch "+report.BatchID,
				field{"output", report.Output},
				field{"format", report.Format},
				field{"rows", report.Rows},
				field{"columns", len(report.Columns)},
			))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(extract.FormatJSONL), "table format (csv|json|jsonl)")

	return cmd
}

func newExtractXMLCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xml <batch-dir> <output-dir>",
		Short: "Extract the answer XML of a saved batch",
		Long: `Write the answer XML of every assignment in the saved batch BATCH_DIR,
pretty-printed, to batch-<id>-xml/ under OUTPUT_DIR.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x := extract.New(rootOpts.cfg.Layout, rootOpts.Logger(), cmd.OutOrStdout())
			report, err := x.XML(args[0], args[1])
			if err != nil {
				return rootOpts.fail(cmd, err)
			}
			return rootOpts.formatter(cmd).Result(report, block("Extracted batch "+report.BatchID,
				field{"directory", report.Path},
				field{"HITs", report.HITs},
				field{"assignments", report.Assignments},
			))
		},
	}
	return cmd
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "preview <definition-dir> <data-path>",
		Short: "Preview rendered HITs in a browser",
		Long: `Run a local web server that renders the question template of
DEFINITION_DIR with each line of DATA_PATH.

Line i (0-based) is served at /hits/i/ and at /?id=i. The server stops on
Ctrl-C.

Example:
  amti preview definition/ data.jsonl --port 8000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl := rootOpts.cfg.Layout.Definition(args[0]).QuestionTemplate()
			srv := preview.New(tpl, args[1], rootOpts.Logger())

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", port), func(addr string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Previewing %s at %s\nPress Ctrl-C to stop.\n",
					filepath.Base(args[1]), previewURL(addr))
			})
			if err != nil {
				return rootOpts.fail(cmd, &commandError{ErrCodeGeneric, err})
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", preview.DefaultPort, "port to listen on")

	return cmd
}

// commandContext returns the command's context, or Background when the
// command was run without one.
// previewURL is the first preview page served on the bound address addr.
func previewURL(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/hits/0/"
	}
	return "http://localhost:" + port + "/hits/0/"
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
