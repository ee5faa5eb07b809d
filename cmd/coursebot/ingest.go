package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/4thel00z/coursebot/internal"
	"github.com/spf13/cobra"
)

func NewIngestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [id] [file|-]",
		Short: "Add course material to the index",
		Long: `Embed a document and store it under id. The text comes from --text, a
file (txt, md or pdf) or stdin. With --dir every supported file under the
directory is chunked and ingested; files matched by .ingestignore are skipped.`,
		Args: cobra.MaximumNArgs(2),
		RunE: makeIngestRunner(a),
	}

	cmd.Flags().StringP("text", "t", "", "Document text")
	cmd.Flags().String("dir", "", "Ingest every supported file under this directory")
	cmd.Flags().String("prefix", "", "Id prefix for documents ingested with --dir")
	return cmd
}

func makeIngestRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if dir != "" {
			if len(args) > 0 {
				return errors.New("--dir takes no positional arguments")
			}
			return runIngestDir(cmd, a, dir)
		}

		if len(args) == 0 {
			return errors.New("document id required")
		}

		text, err := readIngestText(cmd, args[1:])
		if err != nil {
			return err
		}

		pipeline, err := a.Pipeline(cmd)
		if err != nil {
			return err
		}

		out, err := internal.NewIngestDocumentUseCase(pipeline).Execute(cmd.Context(), internal.IngestDocumentInput{
			ID:   args[0],
			Text: text,
		})
		if err != nil {
			return fmt.Errorf("ingest %s: %s", args[0], out.Message)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), out)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Message)
		return nil
	}
}

func readIngestText(cmd *cobra.Command, args []string) (string, error) {
	if text, _ := cmd.Flags().GetString("text"); text != "" {
		if len(args) > 0 {
			return "", errors.New("use either --text or a file, not both")
		}
		return text, nil
	}

	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	return internal.LoadFile(args[0])
}

func runIngestDir(cmd *cobra.Command, a *app, dir string) error {
	pipeline, err := a.Pipeline(cmd)
	if err != nil {
		return err
	}
	cfg, _, err := a.Config(cmd)
	if err != nil {
		return err
	}
	prefix, _ := cmd.Flags().GetString("prefix")

	out, err := ingestDirectory(cmd, a, pipeline, cfg, dir, prefix)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), out)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d files: %d ingested, %d skipped, %d failed\n",
		out.Files, out.Ingested, out.Skipped, out.Failed)
	for _, e := range out.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", e)
	}
	if out.Failed > 0 {
		return fmt.Errorf("%d chunks failed", out.Failed)
	}
	return nil
}

func ingestDirectory(cmd *cobra.Command, a *app, pipeline *internal.Pipeline, cfg *internal.Config, dir, prefix string) (*internal.IngestDirectoryOutput, error) {
	uc := internal.NewIngestDirectoryUseCase(pipeline, a.Logger(cmd))
	out, err := uc.Execute(cmd.Context(), internal.IngestDirectoryInput{
		Dir:          dir,
		Prefix:       prefix,
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		Workers:      cfg.Ingest.Workers,
	})
	if err != nil {
		return out, fmt.Errorf("ingest %s: %w", dir, err)
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
