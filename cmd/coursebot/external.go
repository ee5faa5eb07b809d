package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/4thel00z/coursebot/internal"
)

// Executables named coursebot-<name> on PATH run as `coursebot <name>`.
const externalPrefix = "coursebot-"

func findExternal(name string) (string, error) {
	if isBuiltin(name) {
		return "", fmt.Errorf("%q is a builtin command", name)
	}
	binary := externalPrefix + name
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("unknown command %q: %s not found in PATH", name, binary)
	}
	return path, nil
}

func isBuiltin(name string) bool {
	for _, c := range NewRootCmd(version, newApp()).Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return true
		}
	}
	return false
}

func listExternalCommands() []string {
	var commands []string
	seen := make(map[string]bool)

	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := externalName(dir, entry)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			commands = append(commands, name)
		}
	}
	return commands
}

func externalName(dir string, entry os.DirEntry) string {
	if entry.IsDir() || !strings.HasPrefix(entry.Name(), externalPrefix) {
		return ""
	}

	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	if err != nil || info.Mode()&0111 == 0 {
		return ""
	}

	return strings.TrimPrefix(entry.Name(), externalPrefix)
}

func executeExternal(ctx context.Context, name string, args []string, version string) error {
	binaryPath, err := findExternal(name)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, binaryPath, args...)
	cmd.Env = buildExternalEnv(internal.NewScopeResolver().Resolve(""), version)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// buildExternalEnv tells plugins where the active scope lives so they can
// read the same config and index.
func buildExternalEnv(scope internal.Scope, version string) []string {
	bin, _ := os.Executable()

	return append(os.Environ(),
		"COURSEBOT_VERSION="+version,
		"COURSEBOT_BIN="+bin,
		"COURSEBOT_SCOPE="+string(scope.Type),
		"COURSEBOT_DIR="+scope.Dir,
		"COURSEBOT_CONFIG="+scope.ConfigPath(),
		"COURSEBOT_INDEX="+scope.IndexPath(),
	)
}
