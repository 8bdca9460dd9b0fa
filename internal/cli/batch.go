package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/amti/internal/batch"
	"github.com/roach88/amti/internal/review"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Live bool
}

// CreateOutput is the JSON payload of create.
type CreateOutput struct {
	batch.CreateResult
	PreviewURL string `json:"preview_url,omitempty"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <definition-dir> <data-path> <save-dir>",
		Short: "Create a batch of HITs",
		Long: `Create a batch of HITs using DEFINITION_DIR and DATA_PATH, and save the
batch directory under SAVE_DIR.

The definition and every data line are validated before anything is
written. One HIT is created per non-blank data line, by rendering the
question template with the line's fields.

Example:
  amti create definition/ data.jsonl batches/
  amti create --live definition/ data.jsonl batches/`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, cmd, args[0], args[1], args[2])
		},
	}
	addLiveFlag(cmd, &opts.Live)

	return cmd
}

func runCreate(opts *CreateOptions, cmd *cobra.Command, definitionDir, dataPath, saveDir string) error {
	client, rec, release, err := opts.remote(cmd, opts.Live)
	if err != nil {
		return opts.fail(cmd, err)
	}
	defer release()

	opts.formatter(cmd).VerboseLog("Creating batch from %s and %s under %s", definitionDir, dataPath, saveDir)
	result, err := opts.manager(cmd, client, rec).Create(cmd.Context(), definitionDir, dataPath, saveDir)
	if err != nil {
		if result.Path != "" {
			opts.Logger().Error("batch directory was written but upload did not finish", "path", result.Path)
		}
		return opts.fail(cmd, err)
	}

	out := CreateOutput{CreateResult: result}
	if result.HITGroupID != "" {
		if env, _, err := opts.cfg.Env(opts.Live); err == nil {
			out.PreviewURL = env.PreviewURL(result.HITGroupID)
		}
	}

	fields := []field{
		{"batch id", result.ID},
		{"directory", result.Path},
		{"HITs", len(result.HITIDs)},
		{"estimated cost", fmt.Sprintf("$%.2f", result.Estimate.Cost)},
	}
	if out.PreviewURL != "" {
		fields = append(fields, field{"preview", out.PreviewURL})
	}
	return opts.formatter(cmd).Result(out, block("Batch created", fields...))
}

// NewEstimateCommand creates the estimate command.
func NewEstimateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate <definition-dir> <data-path>",
		Short: "Estimate the cost of a batch",
		Long: `Estimate the cost of running DEFINITION_DIR over DATA_PATH, in USD.

The estimate is reward x MaxAssignments x HITs x the configured overhead
factor. Nothing is uploaded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			est, err := rootOpts.manager(cmd, nil, nil).EstimateCost(args[0], args[1])
			if err != nil {
				return rootOpts.fail(cmd, err)
			}
			return rootOpts.formatter(cmd).Result(est, block("Estimated cost",
				field{"cost", fmt.Sprintf("$%.2f", est.Cost)},
				field{"reward", fmt.Sprintf("$%.2f", est.Reward)},
				field{"assignments per HIT", est.MaxAssignments},
				field{"HITs", est.HITs},
				field{"overhead factor", est.OverheadFactor},
			))
		},
	}
	return cmd
}

// batchCommand builds the commands that take one batch directory and talk
// to Mechanical Turk.
func batchCommand(rootOpts *RootOptions, use, short, long string, run func(cmd *cobra.Command, m *batch.Manager, batchDir string) error) *cobra.Command {
	var live bool
	cmd := &cobra.Command{
		Use:   use + " <batch-dir>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, rec, release, err := rootOpts.remote(cmd, live)
			if err != nil {
				return rootOpts.fail(cmd, err)
			}
			defer release()
			return run(cmd, rootOpts.manager(cmd, client, rec), args[0])
		},
	}
	addLiveFlag(cmd, &live)
	return cmd
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return batchCommand(rootOpts, "status", "Report the status of a batch",
		`Count the HITs of an open batch by their Mechanical Turk status.`,
		func(cmd *cobra.Command, m *batch.Manager, batchDir string) error {
			report, err := m.Status(cmd.Context(), batchDir)
			if err != nil {
				return rootOpts.fail(cmd, err)
			}
			fields := append([]field{{"HITs", report.HITCount}}, counts(report.HITStatusCounts)...)
			return rootOpts.formatter(cmd).Result(report, block("Batch "+report.BatchID, fields...))
		})
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	return batchCommand(rootOpts, "save", "Save the results of a batch",
		`Download every HIT and assignment of a reviewed batch into results/.

Every HIT must be Reviewable and every assignment Approved or Rejected;
otherwise nothing is written.`,
		func(cmd *cobra.Command, m *batch.Manager, batchDir string) error {
			report, err := m.Save(cmd.Context(), batchDir)
			if err != nil {
				return rootOpts.fail(cmd, err)
			}
			return rootOpts.formatter(cmd).Result(report, block("Batch saved",
				field{"batch id", report.BatchID},
				field{"HITs", report.HITs},
				field{"assignments", report.Assignments},
			))
		})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return batchCommand(rootOpts, "delete", "Delete the HITs of a batch",
		`Delete every HIT of a batch from Mechanical Turk. Local files are kept.`,
		func(cmd *cobra.Command, m *batch.Manager, batchDir string) error {
			ids, err := m.Delete(cmd.Context(), batchDir)
			if err != nil {
				return rootOpts.fail(cmd, err)
			}
			return rootOpts.formatter(cmd).Result(map[string]any{"deleted": ids}, list("Deleted HITs", ids))
		})
}

// NewExpireCommand creates the expire command.
func NewExpireCommand(rootOpts *RootOptions) *cobra.Command {
	return batchCommand(rootOpts, "expire", "Expire the HITs of a batch",
		`Expire every HIT of an open batch now, so no more workers can accept it.`,
		func(cmd *cobra.Command, m *batch.Manager, batchDir string) error {
			ids, err := m.Expire(cmd.Context(), batchDir)
			if err != nil {
				return rootOpts.fail(cmd, err)
			}
			return rootOpts.formatter(cmd).Result(map[string]any{"expired": ids}, list("Expired HITs", ids))
		})
}

// ReviewCommandOptions holds flags for the review command.
type ReviewCommandOptions struct {
	*RootOptions
	Live       bool
	ApproveAll bool
	MarkFile   string
}

// NewReviewCommand creates the review command.
func NewReviewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReviewCommandOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "review <batch-dir>",
		Short: "Review the submitted assignments of a batch",
		Long: `Review each submitted assignment of an open batch interactively.

For every assignment choose (a)ccept, (r)eject, (s)kip or (m)ark. Marked
assignments are written to marked_assignments.json in the batch directory,
or to --mark-file ("-" for standard output).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(opts, cmd, args[0])
		},
	}
	addLiveFlag(cmd, &opts.Live)
	cmd.Flags().BoolVar(&opts.ApproveAll, "approve-all", false, "approve every submitted assignment without asking")
	cmd.Flags().StringVar(&opts.MarkFile, "mark-file", "", `where to write marked assignments ("-" for stdout)`)

	return cmd
}

func runReview(opts *ReviewCommandOptions, cmd *cobra.Command, batchDir string) error {
	client, rec, release, err := opts.remote(cmd, opts.Live)
	if err != nil {
		return opts.fail(cmd, err)
	}
	defer release()

	ropts := batch.ReviewOptions{ApproveAll: opts.ApproveAll, MarkFile: opts.MarkFile}
	if !opts.ApproveAll {
		// The dialogue owns stdout in text mode; JSON output keeps prompts
		// on stderr.
		promptOut := cmd.OutOrStdout()
		if opts.Format == "json" {
			promptOut = cmd.ErrOrStderr()
		}
		ropts.Reviewer = review.NewSession(cmd.InOrStdin(), promptOut)
	}

	report, err := opts.manager(cmd, client, rec).Review(cmd.Context(), batchDir, ropts)
	if err != nil {
		return opts.fail(cmd, err)
	}

	fields := []field{
		{"approved", report.Approved},
		{"rejected", report.Rejected},
		{"skipped", report.Skipped},
		{"marked", len(report.Marks)},
	}
	if report.MarkFile != "" && report.MarkFile != "-" {
		fields = append(fields, field{"mark file", report.MarkFile})
	}
	return opts.formatter(cmd).Result(report, block("Review of batch "+report.BatchID+" complete", fields...))
}
