package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewDeleteCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <content-id>",
		Short: "Delete a content with its chat history and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := newClient().DeleteContent(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("deleting content: %w", err)
			}
			if !deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing deleted: %s not found\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
