package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/autoload/internal/presentation"
)

var (
	resolveDryRun bool
	resolveFormat string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <symbol>...",
	Short: "Resolve symbols to files and load them",
	Long: `Resolve fully-qualified symbols through the registered namespaces.

Each symbol is offered to the namespaces in registration order. The first
one whose prefix matches and whose file exists loads it. A symbol no
namespace handles is reported as declined, which is not an error.

With --dry-run the candidate file is reported as found without loading it.

Examples:
  autoload resolve 'Acme\Geo\Point'
  autoload resolve --dry-run --format text 'Acme\Geo\Point' 'Acme\Geo\Line'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := presentation.ValidateFormat(resolveFormat); err != nil {
			return err
		}

		ctx := cmd.Context()
		svc, cleanup, err := openService(ctx, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer cleanup()

		results := make([]presentation.ResolutionDTO, 0, len(args))
		failed := 0
		for _, symbol := range args {
			if resolveDryRun {
				path, ok := svc.Candidate(ctx, symbol)
				results = append(results, presentation.FromCandidate(symbol, path, ok))
				continue
			}
			res, err := svc.Resolve(ctx, symbol)
			if err != nil {
				failed++
			}
			results = append(results, presentation.FromResolution(symbol, res, err))
		}

		formatter := presentation.NewFormatter(cmd.OutOrStdout(), resolveFormat)
		if err := formatter.FormatResolutions(results); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d symbols failed to load", failed, len(args))
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVarP(&resolveDryRun, "dry-run", "n", false, "report the candidate file without loading it")
	resolveCmd.Flags().StringVarP(&resolveFormat, "format", "f", presentation.FormatJSON, "output format: json or text")
	rootCmd.AddCommand(resolveCmd)
}
