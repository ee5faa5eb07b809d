package main

import (
	"fmt"

	"github.com/4thel00z/coursebot/internal"
	"github.com/spf13/cobra"
)

func NewServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chatbot HTTP API",
		Long: `Serve POST /api/documents, POST /api/chatbot and GET /api/index/status.
The configured models are checked before the listener starts.`,
		Args: cobra.NoArgs,
		RunE: makeServeRunner(a),
	}

	cmd.Flags().String("addr", "", "Listen address (defaults to server.addr)")
	cmd.Flags().Bool("skip-model-check", false, "Start without checking the models")
	return cmd
}

func makeServeRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := a.Config(cmd)
		if err != nil {
			return err
		}
		pipeline, err := a.Pipeline(cmd)
		if err != nil {
			return err
		}
		logger := a.Logger(cmd)

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}

		if skip, _ := cmd.Flags().GetBool("skip-model-check"); !skip {
			if err := pipeline.EnsureModels(cmd.Context()); err != nil {
				return fmt.Errorf("check models: %w (run 'coursebot models pull')", err)
			}
		}

		return internal.NewServer(pipeline, logger).ListenAndServe(cmd.Context(), addr)
	}
}
