package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/4thel00z/coursebot/internal"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func NewWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory and ingest new material",
		Long: `Ingest a directory, then keep watching it and ingest files as they are
added. Chunks already in the index are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: makeWatchRunner(a),
	}

	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Debounce window for batching changes")
	cmd.Flags().String("prefix", "", "Id prefix for ingested documents")
	return cmd
}

func makeWatchRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		prefix, _ := cmd.Flags().GetString("prefix")

		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("not a directory: %s", args[0])
		}

		cfg, scope, err := a.Config(cmd)
		if err != nil {
			return err
		}
		pipeline, err := a.Pipeline(cmd)
		if err != nil {
			return err
		}

		sync := func() {
			out, err := ingestDirectory(cmd, a, pipeline, cfg, dir, prefix)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "ingest error: %v\n", err)
				return
			}
			if out.Ingested > 0 || out.Failed > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %d ingested, %d failed\n",
					time.Now().Format(time.TimeOnly), out.Ingested, out.Failed)
			}
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer watcher.Close()

		if err := addWatchDirs(watcher, dir); err != nil {
			return fmt.Errorf("add watch dirs: %w", err)
		}

		sync()
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes...\n", dir)

		timer := time.NewTimer(0)
		if !timer.Stop() {
			<-timer.C
		}
		pending := false

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if shouldIgnoreEvent(event, scope.Dir) {
					continue
				}
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = addWatchDirs(watcher, event.Name)
					}
				}
				if !pending {
					timer.Reset(debounce)
					pending = true
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
			case <-timer.C:
				pending = false
				sync()
			}
		}
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if info.IsDir() {
			base := filepath.Base(path)
			if strings.HasPrefix(base, ".") && path != root {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

// shouldIgnoreEvent drops events under the state directory, for files that
// cannot be ingested, and for chmod-only changes.
func shouldIgnoreEvent(event fsnotify.Event, stateDir string) bool {
	if stateDir != "" && strings.HasPrefix(event.Name, stateDir) {
		return true
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}

	if ext := filepath.Ext(event.Name); ext != "" && !internal.Supported(event.Name) {
		return true
	}

	return false
}
