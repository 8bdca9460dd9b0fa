package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/amti/internal/ledger"
)

// HistoryEvent is one ledger event with its verification result.
type HistoryEvent struct {
	ledger.Event
	Verified bool `json:"verified"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <batch-dir>",
		Short: "Show the ledger events of a batch",
		Long: `Show every event the ledger recorded for a batch, oldest first.

Each event's content hash is recomputed; events whose hash no longer
matches are flagged. Requires a ledger (--ledger or ledger: in amti.yaml).

Example:
  amti history --ledger amti.db batch-1234/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runHistory(opts *RootOptions, cmd *cobra.Command, batchDir string) error {
	if opts.ledgerPath() == "" {
		return opts.fail(cmd, &commandError{ErrCodeLedger, errors.New("no ledger configured; pass --ledger or set ledger in amti.yaml")})
	}
	batchID, err := opts.manager(cmd, nil, nil).ReadBatchID(batchDir)
	if err != nil {
		return opts.fail(cmd, err)
	}

	l, err := ledger.Open(opts.ledgerPath())
	if err != nil {
		return opts.fail(cmd, &commandError{ErrCodeLedger, err})
	}
	defer func() {
		if closeErr := l.Close(); closeErr != nil {
			opts.Logger().Error("error closing ledger", "error", closeErr)
		}
	}()

	events, err := l.History(commandContext(cmd), batchID)
	if err != nil {
		return opts.fail(cmd, &commandError{ErrCodeLedger, err})
	}

	out := make([]HistoryEvent, len(events))
	lines := make([]string, len(events))
	for i, e := range events {
		out[i] = HistoryEvent{Event: e, Verified: true}
		mark := ""
		if err := e.Verify(); err != nil {
			out[i].Verified = false
			opts.Logger().Warn("ledger event failed verification", "error", err)
			mark = "  " + errorStyle.Render("hash mismatch")
		}
		lines[i] = fmt.Sprintf("%4d  %s  %-16s %s%s",
			e.Seq,
			labelStyle.Render(e.RecordedAt.UTC().Format("2006-01-02 15:04:05")),
			e.Kind,
			strings.TrimSpace(string(e.Payload)),
			mark)
	}
	return opts.formatter(cmd).Result(map[string]any{"batch_id": batchID, "events": out},
		list("History of batch "+batchID, lines))
}
