package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/morie/internal/output"
)

func newGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH",
		Short: "Print a document's content at HEAD",
		Long: `Print the raw bytes of the document at PATH in HEAD's tree.

The cache is not consulted, so get always reflects HEAD even when the
cache is stale.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			data, err := a.catalog.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.Plain(cmd.OutOrStdout()).Raw(data)
		},
	}
}
