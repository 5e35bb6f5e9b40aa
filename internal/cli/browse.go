package cli

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// browseCommand creates the browse command.
func (c *CLI) browseCommand() *cobra.Command {
	var src sourceFlags

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Page through a published index interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)

			spinner := newSpinnerWithContext(ctx, "Opening index...")
			spinner.Start()
			idx, _, err := c.openIndex(ctx, cmd, src)
			spinner.Stop()
			if err != nil {
				return err
			}

			final, err := tea.NewProgram(NewIndexModel(idx),
				tea.WithContext(ctx),
				tea.WithAltScreen(),
				tea.WithOutput(os.Stderr),
			).Run()
			if err != nil {
				return err
			}
			if m, ok := final.(IndexModel); ok && m.Err() != nil {
				printWarning("some records could not be decoded: %v", m.Err())
			}
			return nil
		},
	}

	src.register(cmd)
	return cmd
}
