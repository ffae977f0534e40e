package cmd

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script with registry-backed imports",
	Long: `Run an entry script in the configured runtime. Symbols the script asks for
are resolved through the registered namespaces and each file loads once.

Examples:
  autoload run main.lua
  autoload --runtime starlark run main.star`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openService(cmd.Context(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer cleanup()

		return svc.Run(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
