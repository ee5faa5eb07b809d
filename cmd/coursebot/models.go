package main

import (
	"errors"
	"fmt"

	"github.com/4thel00z/coursebot/internal"
	"github.com/spf13/cobra"
)

func NewModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Check or download the configured models",
	}

	cmd.AddCommand(
		newModelsCheckCmd(a),
		newModelsPullCmd(a),
	)

	return cmd
}

func newModelsCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the embedding and generation models are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := a.Config(cmd)
			if err != nil {
				return err
			}
			pipeline, err := a.Pipeline(cmd)
			if err != nil {
				return err
			}
			if err := pipeline.EnsureModels(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "embeddings: %s (%s) ok\n", cfg.Embeddings.Model, cfg.Embeddings.Backend)
			fmt.Fprintf(cmd.OutOrStdout(), "generation: %s (%s) ok\n", cfg.Generation.Model, cfg.Generation.Provider)
			return nil
		},
	}
}

// ollamaModel is a model served by an ollama backend.
type ollamaModel struct {
	BaseURL string
	Name    string
}

// ollamaModels lists the models in cfg that ollama serves.
func ollamaModels(cfg *internal.Config) []ollamaModel {
	var models []ollamaModel
	if cfg.Embeddings.Backend == internal.EmbedderOllama {
		models = append(models, ollamaModel{cfg.Embeddings.BaseURL, cfg.Embeddings.Model})
	}
	if cfg.Generation.Provider == internal.ProviderOllama {
		models = append(models, ollamaModel{cfg.Generation.BaseURL, cfg.Generation.Model})
	}
	return models
}

func newModelsPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download the ollama models named in the config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := a.Config(cmd)
			if err != nil {
				return err
			}

			models := ollamaModels(cfg)
			if len(models) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No ollama models configured.")
				return nil
			}

			var errs []error
			for _, m := range models {
				client, err := internal.NewOllamaClient(m.BaseURL, 0)
				if err != nil {
					errs = append(errs, err)
					continue
				}

				last := ""
				err = internal.PullModel(cmd.Context(), client, m.Name, func(p internal.PullProgress) {
					if p.Status == last && p.Total == 0 {
						return
					}
					last = p.Status
					if p.Total > 0 {
						fmt.Fprintf(cmd.ErrOrStderr(), "\r%s: %s %d%%", m.Name, p.Status, p.Completed*100/p.Total)
						return
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%s: %s\n", m.Name, p.Status)
				})
				if err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s ready\n", m.Name)
			}
			return errors.Join(errs...)
		},
	}
}
