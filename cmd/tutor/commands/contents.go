package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ai-tutor/internal/client"
)

type clientFactory func() *client.Client

func NewContentsCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "contents",
		Short: "List your learning contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := newClient().ListContents(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing contents: %w", err)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No contents yet. Try: tutor generate <topic>")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTOPIC\tTITLE\tPROGRESS\tLAST ACCESSED")
			for _, c := range list {
				progress, last := "-", "-"
				if c.Progress != nil {
					if c.Progress.CompletedPercentage != nil {
						progress = fmt.Sprintf("%d%%", *c.Progress.CompletedPercentage)
					}
					if c.Progress.LastAccessedAt != nil {
						last = c.Progress.LastAccessedAt.Local().Format("2006-01-02 15:04")
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.TopicName, c.Title, progress, last)
			}
			return w.Flush()
		},
	}
}
