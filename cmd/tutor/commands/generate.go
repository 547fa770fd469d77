package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ai-tutor/internal/client"
)

func NewGenerateCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <topic> [topic...]",
		Short: "Generate learning contents for one or more topics",
		Long: `Generate learning contents for one or more topics.

Examples:
  tutor generate Photosynthesis
  tutor generate "Cell division" "DNA replication"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := newClient().GenerateContent(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("generating contents: %w", err)
			}
			printContents(cmd, created)
			return nil
		},
	}
}

func printContents(cmd *cobra.Command, list []client.Content) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Generated %d contents\n", len(list))
	for _, c := range list {
		fmt.Fprintf(out, "- [%s] %s: %s\n", c.ID, c.Title, c.Summary)
	}
}
