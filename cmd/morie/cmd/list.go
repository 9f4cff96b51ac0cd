package cmd

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/morie/internal/output"
	"github.com/Aman-CERP/morie/internal/store"
)

// entryJSON is the --json shape of one document.
type entryJSON struct {
	Path     string          `json:"path"`
	Size     int64           `json:"size"`
	MimeType string          `json:"mime_type"`
	Metadata json.RawMessage `json:"metadata"`
	Title    *string         `json:"title"`
	Time     string          `json:"time"`
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var filter string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents at HEAD",
		Long: `List every document committed at HEAD with its metadata.

The cache is brought up to date with HEAD first. --filter takes a glob
matched against the whole path, where * stays within one path segment
and ** crosses segments, e.g. "docs/**/*.md".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			entries, err := a.catalog.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			sortEntries(entries)

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(toEntryJSON(entries))
			}
			out.Table([]string{"PATH", "SIZE", "MIME", "TITLE", "TIME"}, entryRows(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Glob matched against document paths")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// sortEntries orders entries by path; the catalog leaves order unspecified.
func sortEntries(entries []store.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}

func toEntryJSON(entries []store.Entry) []entryJSON {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON{
			Path:     e.Path,
			Size:     e.Size,
			MimeType: e.MimeType,
			Metadata: e.Metadata,
			Title:    e.Title,
			Time:     e.Time.Format(time.RFC3339),
		})
	}
	return out
}

func entryRows(entries []store.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		title := ""
		if e.Title != nil {
			title = *e.Title
		}
		rows = append(rows, []string{
			e.Path,
			strconv.FormatInt(e.Size, 10),
			e.MimeType,
			title,
			e.Time.Format(time.RFC3339),
		})
	}
	return rows
}
