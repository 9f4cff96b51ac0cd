package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/morie/internal/output"
)

func newReindexCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the cache from HEAD",
		Long: `Discard the cached entries and rebuild them from HEAD.

Maintenance normally runs on every list, so this is only needed after
changing extraction settings such as index.max_blob_size.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			report, err := a.catalog.Reindex(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Indexed %d documents at %s in %s",
				report.Upserted, shortHash(report.To), report.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
