package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile every module that changed since the last build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")
			workers, _ := cmd.Flags().GetInt("workers")
			return c.app.Build(cmd.Context(), app.RunOptions{
				Force:   force,
				Workers: workers,
			})
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Recompile every module, bypassing the cache")
	cmd.Flags().IntP("workers", "w", 0, "Number of parallel compile workers (0 = auto)")
	return cmd
}
