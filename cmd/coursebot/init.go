package main

import (
	"fmt"
	"os"

	"github.com/4thel00z/coursebot/internal"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a coursebot scope",
		Long:  `Create a .coursebot directory holding the default config and the document index.`,
		RunE:  runInit,
	}

	cmd.Flags().Bool("global", false, "Initialize global scope (~/.coursebot)")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	isGlobal, _ := cmd.Flags().GetBool("global")

	resolver := internal.NewScopeResolver()

	var scope internal.Scope
	if isGlobal {
		scope = resolver.Global()
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		scope = resolver.ProjectAt(cwd)
	}

	if scope.Exists() {
		return fmt.Errorf("already initialized at %s", scope.Dir)
	}

	if err := scope.Init(); err != nil {
		return fmt.Errorf("init scope: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized coursebot at %s\n", scope.Dir)
	return nil
}
