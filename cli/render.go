package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twosigma/uberjob"
)

// NewRenderCmd creates the "render" subcommand: build one of the
// built-in demo plans and print its symbolic call graph as Graphviz DOT.
func NewRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <plan>",
		Short: "Render a built-in demonstration plan's call graph as Graphviz DOT",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender,
	}

	cmd.Flags().String("store-dir", ".uberjob", "Directory for JSON value stores used by the pipeline demo")
	cmd.Flags().Int("level", 0, "Truncate scope grouping to this many levels (0 = render every node individually)")

	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	name := args[0]
	storeDir, _ := cmd.Flags().GetString("store-dir")
	level, _ := cmd.Flags().GetInt("level")

	plan, registry, output, err := demoPlan(name, storeDir)
	if err != nil {
		return exitError(exitBadArgument, "%v", err)
	}

	opts := []uberjob.RenderOption{uberjob.WithRenderOutput(output)}
	if registry != nil {
		opts = append(opts, uberjob.WithRenderRegistry(registry))
	}
	if level > 0 {
		opts = append(opts, uberjob.WithRenderLevel(level))
	}

	dot, err := uberjob.Render(plan, opts...)
	if err != nil {
		var constructionErr *uberjob.ConstructionError
		if errors.As(err, &constructionErr) {
			return exitError(exitConstruct, "%v", err)
		}
		return exitError(exitRuntime, "%v", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), dot)
	return nil
}
