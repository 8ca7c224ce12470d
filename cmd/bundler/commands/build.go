package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/bundler/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every entry point and bundle",
		Long: `Build every entry point and bundle declared in bundler.yaml.

With --watch, bundler keeps running and rebuilds the targets affected by each
file change. Build failures are reported and never stop the watch loop.
With --deploy, output is minified and the application receives devMode=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			watch, _ := cmd.Flags().GetBool("watch")
			deploy, _ := cmd.Flags().GetBool("deploy")
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			return c.app.Build(cmd.Context(), app.BuildOptions{
				Watch:       watch,
				Deploy:      deploy,
				Concurrency: concurrency,
			})
		},
	}
	cmd.Flags().BoolP("watch", "w", false, "Rebuild affected targets when files change")
	cmd.Flags().BoolP("deploy", "d", false, "Build for production (minified, devMode=false)")
	cmd.Flags().IntP("concurrency", "j", 0, "Maximum number of targets built in parallel (0 uses the configured value)")
	return cmd
}
