package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/morie/internal/logging"
	"github.com/Aman-CERP/morie/internal/output"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		level   string
		pattern string
		follow  bool
		file    string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show morie log output",
		Long: `Show the JSON log written by morie watch and by any command run
with --debug, formatted one record per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}

			vcfg := logging.ViewerConfig{
				Level:   level,
				NoColor: !output.New(cmd.OutOrStdout()).Styled(),
			}
			if pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid --grep pattern: %w", err)
				}
				vcfg.Pattern = re
			}
			viewer := logging.NewViewer(vcfg, cmd.OutOrStdout())

			entries, err := viewer.Tail(path, lines)
			if err != nil {
				return err
			}
			viewer.Print(entries)
			if !follow {
				return nil
			}

			ch := make(chan logging.LogEntry, 64)
			errCh := make(chan error, 1)
			go func() {
				errCh <- viewer.Follow(cmd.Context(), path, ch)
				close(ch)
			}()
			for entry := range ch {
				viewer.Print([]logging.LogEntry{entry})
			}
			return <-errCh
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().StringVar(&pattern, "grep", "", "Only show lines matching this regular expression")
	cmd.Flags().BoolVarP(&follow, "follow", "F", false, "Keep printing new records")
	cmd.Flags().StringVar(&file, "file", "", "Log file to read (default: ~/.morie/logs/morie.log)")

	return cmd
}
