package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/4thel00z/coursebot/internal"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewAskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the course material",
		Long:  `Retrieve the closest course material and answer the question from it.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  makeAskRunner(a),
	}

	cmd.Flags().Bool("sources", false, "Print the retrieved passages")
	return cmd
}

func makeAskRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		question := joinArgs(args)
		asJSON, _ := cmd.Flags().GetBool("json")
		showSources, _ := cmd.Flags().GetBool("sources")

		pipeline, err := a.Pipeline(cmd)
		if err != nil {
			return err
		}

		out, err := internal.NewAnswerQueryUseCase(pipeline).Execute(cmd.Context(), internal.AnswerQueryInput{
			Question: question,
		})
		if asJSON && out != nil {
			if encErr := writeJSON(cmd.OutOrStdout(), out); encErr != nil {
				return encErr
			}
			return err
		}
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}

		printAnswer(cmd.OutOrStdout(), out, showSources)
		if out.Blocked {
			return errors.New("question refused")
		}
		return nil
	}
}

func printAnswer(w io.Writer, out *internal.AnswerQueryOutput, showSources bool) {
	if out.Blocked {
		color.New(color.FgYellow).Fprintln(w, out.Message)
		return
	}

	fmt.Fprintln(w, out.Answer)

	if !showSources {
		return
	}
	faint := color.New(color.Faint)
	if len(out.Sources) == 0 {
		faint.Fprintln(w, "\nNo course material matched.")
		return
	}
	bold := color.New(color.Bold)
	bold.Fprintln(w, "\nSources:")
	for i, src := range out.Sources {
		faint.Fprintf(w, "  [%d] %s\n", i+1, preview(src, 120))
	}
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
