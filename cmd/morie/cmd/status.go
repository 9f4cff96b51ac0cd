package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/morie/internal/daemon"
	"github.com/Aman-CERP/morie/internal/output"
)

// statusInfo is the --json shape of status.
type statusInfo struct {
	Repository string `json:"repository"`
	Cache      string `json:"cache"`
	Head       string `json:"head"`
	Indexed    string `json:"indexed,omitempty"`
	Entries    int    `json:"entries"`
	Fresh      bool   `json:"fresh"`
	WatchPID   int    `json:"watch_pid,omitempty"`
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache state relative to HEAD",
		Long: `Display the cache position without running maintenance:
  - HEAD and the last indexed commit
  - Number of cached documents
  - Whether the cache reflects HEAD
  - Whether a watch daemon is keeping it up to date`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			st, err := a.catalog.Status(cmd.Context())
			if err != nil {
				return err
			}

			info := statusInfo{
				Repository: a.cfg.Repository.Path,
				Cache:      a.cfg.CachePath(),
				Head:       st.Head.String(),
				Entries:    st.Entries,
				Fresh:      st.Fresh,
			}
			if st.HasIndex {
				info.Indexed = st.Indexed.String()
			}
			if pid, ok := daemon.Running(daemon.DefaultConfig(a.cfg.DataDir())); ok {
				info.WatchPID = pid
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(info)
			}
			out.KeyValues(statusPairs(info))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func statusPairs(info statusInfo) [][2]string {
	indexed := "never"
	if info.Indexed != "" {
		indexed = info.Indexed
	}
	fresh := "yes"
	if !info.Fresh {
		fresh = "no (next list will update)"
	}
	watch := "not running"
	if info.WatchPID != 0 {
		watch = fmt.Sprintf("running (pid %d)", info.WatchPID)
	}
	return [][2]string{
		{"Repository", info.Repository},
		{"Cache", info.Cache},
		{"HEAD", info.Head},
		{"Indexed", indexed},
		{"Documents", strconv.Itoa(info.Entries)},
		{"Fresh", fresh},
		{"Watch", watch},
	}
}
