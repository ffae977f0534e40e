package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/autoload/internal/presentation"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List winning namespace registrations",
	Long: `List the winning registration of every namespace: its normalized prefix,
version and base directory, sorted by namespace.

Examples:
  # JSON (default)
  autoload list

  # Aligned text table
  autoload list --format text

  # Try a registration without writing a manifest
  autoload list --register 'Acme\Geo@1.2.0=lib/geo'

  # Parse specific fields with jq
  autoload list | jq '.[].namespace'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := presentation.ValidateFormat(listFormat); err != nil {
			return err
		}

		svc, cleanup, err := openService(cmd.Context(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer cleanup()

		formatter := presentation.NewFormatter(cmd.OutOrStdout(), listFormat)
		return formatter.FormatRegistrations(presentation.FromDomainRegistrations(svc.List()))
	},
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "format", "f", presentation.FormatJSON, "output format: json or text")
	rootCmd.AddCommand(listCmd)
}
