package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/amti/internal/mturk"
	"github.com/roach88/amti/internal/workers"
)

// WorkerOptions holds flags shared by the worker commands.
type WorkerOptions struct {
	*RootOptions
	Live bool
	File string
}

func (o *WorkerOptions) addFlags(cmd *cobra.Command) {
	addLiveFlag(cmd, &o.Live)
	cmd.Flags().StringVar(&o.File, "file", "", "CSV file of worker ids (a WorkerId header row is skipped)")
}

// ids collects worker ids from the arguments and --file, in that order.
func (o *WorkerOptions) ids(args []string) ([]string, error) {
	ids := append([]string{}, args...)
	if o.File != "" {
		fromFile, err := workers.ReadWorkerIDs(o.File)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromFile...)
	}
	return ids, nil
}

func (o *WorkerOptions) manager(cmd *cobra.Command) (*workers.Manager, error) {
	client, err := o.client(commandContext(cmd), o.Live)
	if err != nil {
		return nil, &commandError{ErrCodeConfig, fmt.Errorf("create Mechanical Turk client: %w", err)}
	}
	return workers.New(client, o.Logger(), o.cfg.ChunkSize), nil
}

// NewBlockCommand creates the block command.
func NewBlockCommand(rootOpts *RootOptions) *cobra.Command {
	return blockCommand(rootOpts, "block", "Block workers", workers.DefaultBlockReason,
		func(cmd *cobra.Command, m *workers.Manager, ids []string, reason string) error {
			return m.Block(commandContext(cmd), ids, reason)
		})
}

// NewUnblockCommand creates the unblock command.
func NewUnblockCommand(rootOpts *RootOptions) *cobra.Command {
	return blockCommand(rootOpts, "unblock", "Unblock workers", workers.DefaultUnblockReason,
		func(cmd *cobra.Command, m *workers.Manager, ids []string, reason string) error {
			return m.Unblock(commandContext(cmd), ids, reason)
		})
}

func blockCommand(rootOpts *RootOptions, use, short, defaultReason string, run func(cmd *cobra.Command, m *workers.Manager, ids []string, reason string) error) *cobra.Command {
	opts := &WorkerOptions{RootOptions: rootOpts}
	var reason string

	cmd := &cobra.Command{
		Use:   use + " [worker-id...]",
		Short: short,
		Long: short + ` given as arguments and/or listed in --file.

Example:
  amti ` + use + ` A1B2C3 D4E5F6
  amti ` + use + ` --file workers.csv --reason "..."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := opts.ids(args)
			if err != nil {
				return opts.fail(cmd, err)
			}
			m, err := opts.manager(cmd)
			if err != nil {
				return opts.fail(cmd, err)
			}
			if err := run(cmd, m, ids, reason); err != nil {
				return opts.fail(cmd, err)
			}
			return opts.formatter(cmd).Result(map[string]any{"workers": ids, "reason": reason},
				done(fmt.Sprintf("%s: %d worker(s)", short, len(ids))))
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&reason, "reason", defaultReason, "reason recorded with the "+use)

	return cmd
}

// NewBlockedCommand creates the blocked command.
func NewBlockedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "List blocked workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager(cmd)
			if err != nil {
				return opts.fail(cmd, err)
			}
			blocks, err := m.Blocked(commandContext(cmd))
			if err != nil {
				return opts.fail(cmd, err)
			}
			lines := make([]string, len(blocks))
			for i, b := range blocks {
				lines[i] = b.WorkerId + "  " + labelStyle.Render(b.Reason)
			}
			if blocks == nil {
				blocks = []mturk.WorkerBlock{}
			}
			return opts.formatter(cmd).Result(map[string]any{"blocks": blocks}, list("Blocked workers", lines))
		},
	}
	addLiveFlag(cmd, &opts.Live)

	return cmd
}

// NewNotifyCommand creates the notify command.
func NewNotifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkerOptions{RootOptions: rootOpts}
	var msg workers.Message
	var messageFile string

	cmd := &cobra.Command{
		Use:   "notify [worker-id...]",
		Short: "Send a message to workers",
		Long: `Send a message to the workers given as arguments and/or listed in --file.

The message is --subject and --message, or a JSON --message-file with
Subject and MessageText fields, which takes precedence. Workers are
messaged in chunks of up to 100.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if messageFile != "" {
				fromFile, err := workers.ReadMessage(messageFile)
				if err != nil {
					return opts.fail(cmd, err)
				}
				msg = fromFile
			}
			if err := msg.Validate(); err != nil {
				return opts.fail(cmd, &commandError{ErrCodeUsage, err})
			}
			ids, err := opts.ids(args)
			if err != nil {
				return opts.fail(cmd, err)
			}
			m, err := opts.manager(cmd)
			if err != nil {
				return opts.fail(cmd, err)
			}
			failures, err := m.Notify(commandContext(cmd), ids, msg)
			if err != nil {
				return opts.fail(cmd, err)
			}
			if failures == nil {
				failures = []mturk.NotifyFailure{}
			}
			return opts.formatter(cmd).Result(map[string]any{"workers": len(ids), "failures": failures},
				block("Notification sent",
					field{"workers", len(ids)},
					field{"failures", len(failures)},
				))
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&msg.Subject, "subject", "", "message subject")
	cmd.Flags().StringVar(&msg.MessageText, "message", "", "message body")
	cmd.Flags().StringVar(&messageFile, "message-file", "", "JSON file with Subject and MessageText")

	return cmd
}

// QualOptions holds flags for the qualification commands.
type QualOptions struct {
	WorkerOptions
	Qual   string
	ByName bool
}

func (o *QualOptions) addQualFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Qual, "qual", "q", "", "qualification type id (or name, with --name)")
	cmd.Flags().BoolVarP(&o.ByName, "name", "n", false, "treat --qual as a qualification type name")
	_ = cmd.MarkFlagRequired("qual")
}

// NewAssociateCommand creates the associate command.
func NewAssociateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QualOptions{WorkerOptions: WorkerOptions{RootOptions: rootOpts}}
	var value int32
	var notify bool

	cmd := &cobra.Command{
		Use:   "associate [worker-id...]",
		Short: "Grant a qualification to workers",
		Long: `Grant the qualification --qual to the workers given as arguments and/or
listed in --file, optionally with an integer --value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := opts.ids(args)
			if err != nil {
				return opts.fail(cmd, err)
			}
			m, err := opts.manager(cmd)
			if err != nil {
				return opts.fail(cmd, err)
			}
			aopts := workers.AssociateOptions{Qualification: opts.Qual, ByName: opts.ByName, Notify: notify}
			if cmd.Flags().Changed("value") {
				aopts.Value = &value
			}
			qualID, err := m.Associate(commandContext(cmd), ids, aopts)
			if err != nil {
				return opts.fail(cmd, err)
			}
			return opts.formatter(cmd).Result(map[string]any{"qualification_type_id": qualID, "workers": ids},
				done(fmt.Sprintf("Associated %s with %d worker(s)", qualID, len(ids))))
		},
	}
	opts.addFlags(cmd)
	opts.addQualFlags(cmd)
	cmd.Flags().Int32Var(&value, "value", 0, "integer value of the qualification")
	cmd.Flags().BoolVar(&notify, "notify", false, "notify workers of the grant")

	return cmd
}

// NewDisassociateCommand creates the disassociate command.
func NewDisassociateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QualOptions{WorkerOptions: WorkerOptions{RootOptions: rootOpts}}
	var reason string

	cmd := &cobra.Command{
		Use:   "disassociate [worker-id...]",
		Short: "Revoke a qualification from workers",
		Long: `Revoke the qualification --qual from the workers given as arguments
and/or listed in --file. The --reason, if any, is shown to the workers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := opts.ids(args)
			if err != nil {
				return opts.fail(cmd, err)
			}
			m, err := opts.manager(cmd)
			if err != nil {
				return opts.fail(cmd, err)
			}
			qualID, err := m.Disassociate(commandContext(cmd), ids, opts.Qual, opts.ByName, reason)
			if err != nil {
				return opts.fail(cmd, err)
			}
			return opts.formatter(cmd).Result(map[string]any{"qualification_type_id": qualID, "workers": ids},
				done(fmt.Sprintf("Disassociated %s from %d worker(s)", qualID, len(ids))))
		},
	}
	opts.addFlags(cmd)
	opts.addQualFlags(cmd)
	cmd.Flags().StringVar(&reason, "reason", "", "reason shown to the workers")

	return cmd
}

// NewAssociatedCommand creates the associated command.
func NewAssociatedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QualOptions{WorkerOptions: WorkerOptions{RootOptions: rootOpts}}
	var status string

	cmd := &cobra.Command{
		Use:   "associated",
		Short: "List workers holding a qualification",
		Long: `List the workers associated with the qualification --qual, optionally
only those whose grant is Granted or Revoked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager(cmd)
			if err != nil {
				return opts.fail(cmd, err)
			}
			quals, err := m.Associated(commandContext(cmd), opts.Qual, opts.ByName, status)
			if err != nil {
				return opts.fail(cmd, err)
			}
			lines := make([]string, len(quals))
			for i, q := range quals {
				granted := ""
				if q.GrantTime != nil {
					granted = q.GrantTime.UTC().Format("2006-01-02 15:04:05")
				}
				value := ""
				if q.IntegerValue != nil {
					value = strconv.Itoa(int(*q.IntegerValue))
				}
				lines[i] = fmt.Sprintf("%s  %s  %s %s", q.WorkerId, q.Status, labelStyle.Render(granted), value)
			}
			if quals == nil {
				quals = []mturk.Qualification{}
			}
			return opts.formatter(cmd).Result(map[string]any{"qualifications": quals}, list("Associated workers", lines))
		},
	}
	addLiveFlag(cmd, &opts.Live)
	opts.addQualFlags(cmd)
	cmd.Flags().StringVar(&status, "status", "", "only list Granted or Revoked grants")

	return cmd
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the account balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.client(commandContext(cmd), live)
			if err != nil {
				return rootOpts.fail(cmd, &commandError{ErrCodeConfig, fmt.Errorf("create Mechanical Turk client: %w", err)})
			}
			balance, err := client.AccountBalance(commandContext(cmd))
			if err != nil {
				return rootOpts.fail(cmd, err)
			}
			return rootOpts.formatter(cmd).Result(map[string]any{"available_balance": balance},
				block("Account balance", field{"available", "$" + balance}))
		},
	}
	addLiveFlag(cmd, &live)

	return cmd
}
