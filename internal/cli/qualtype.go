package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/amti/internal/qualtype"
)

// NewCreateQualificationTypeCommand creates the create-qualificationtype command.
func NewCreateQualificationTypeCommand(rootOpts *RootOptions) *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "create-qualificationtype <definition-dir> <save-dir>",
		Short: "Create a qualification type",
		Long: `Create a qualification type from the qualificationtypeproperties.json
in DEFINITION_DIR, with test.xml and answerkey.xml when present, and save
it as qualification-type-<id>/ under SAVE_DIR.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, rec, release, err := rootOpts.remote(cmd, live)
			if err != nil {
				return rootOpts.fail(cmd, err)
			}
			defer release()

			creator := qualtype.NewCreator(rootOpts.cfg.Layout, client, rec, rootOpts.Logger())
			dir, err := creator.Create(commandContext(cmd), args[0], args[1])
			if err != nil {
				return rootOpts.fail(cmd, err)
			}
			return rootOpts.formatter(cmd).Result(dir, block("Qualification type created",
				field{"id", dir.QualificationType.QualificationTypeId},
				field{"name", dir.QualificationType.Name},
				field{"directory", dir.Path},
			))
		},
	}
	addLiveFlag(cmd, &live)

	return cmd
}
