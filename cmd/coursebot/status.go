package main

import (
	"fmt"

	"github.com/4thel00z/coursebot/internal"
	"github.com/spf13/cobra"
)

func NewStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Long:  `Show the active scope and the size and shape of its document index.`,
		Args:  cobra.NoArgs,
		RunE:  makeStatusRunner(a),
	}
}

func makeStatusRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		_, scope, err := a.Config(cmd)
		if err != nil {
			return err
		}
		pipeline, err := a.Pipeline(cmd)
		if err != nil {
			return err
		}

		out, err := internal.NewIndexStatusUseCase(pipeline).Execute(cmd.Context())
		if err != nil {
			return fmt.Errorf("index status: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), out)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Scope:     %s (%s)\n", scope.Type, scope.Dir)
		fmt.Fprintf(w, "Backend:   %s\n", out.Backend)
		fmt.Fprintf(w, "Embedder:  %s (%d dims)\n", out.Embedder, out.Dimension)
		fmt.Fprintf(w, "Documents: %d\n", out.Documents)
		return nil
	}
}
