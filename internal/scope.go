package internal

import (
	"fmt"
	"os"
	"path/filepath"
)

const ScopeDirName = ".coursebot"

type ScopeType string

const (
	ScopeGlobal  ScopeType = "global"
	ScopeProject ScopeType = "project"
)

// Scope is a coursebot state directory: ~/.coursebot for the global scope or
// the nearest .coursebot above the working directory for a project.
type Scope struct {
	Type ScopeType
	Path string // directory holding Dir
	Dir  string // .coursebot directory
}

func (s Scope) ConfigPath() string {
	return filepath.Join(s.Dir, "config.yaml")
}

func (s Scope) IndexPath() string {
	return filepath.Join(s.Dir, IndexFilename)
}

func (s Scope) Exists() bool {
	info, err := os.Stat(s.Dir)
	return err == nil && info.IsDir()
}

// Init creates the scope directory and writes a default config unless one
// exists.
func (s Scope) Init() error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", s.Dir, err)
	}
	if _, err := os.Stat(s.ConfigPath()); err == nil {
		return nil
	}
	return SaveConfig(s, DefaultConfig())
}

type ScopeResolver struct {
	homeDir string
	workDir string
}

func NewScopeResolver() *ScopeResolver {
	home, _ := os.UserHomeDir()
	return &ScopeResolver{homeDir: home}
}

// NewScopeResolverAt resolves against fixed home and working directories.
func NewScopeResolverAt(home, workDir string) *ScopeResolver {
	return &ScopeResolver{homeDir: home, workDir: workDir}
}

func (r *ScopeResolver) Global() Scope {
	return Scope{
		Type: ScopeGlobal,
		Path: r.homeDir,
		Dir:  filepath.Join(r.homeDir, ScopeDirName),
	}
}

// ProjectAt is the project scope rooted at dir, whether or not it exists yet.
func (r *ScopeResolver) ProjectAt(dir string) Scope {
	return Scope{
		Type: ScopeProject,
		Path: dir,
		Dir:  filepath.Join(dir, ScopeDirName),
	}
}

func (r *ScopeResolver) Project() (Scope, bool) {
	cwd := r.workDir
	if cwd == "" {
		var err error
		if cwd, err = os.Getwd(); err != nil {
			return Scope{}, false
		}
	}
	return r.findProjectScope(cwd)
}

func (r *ScopeResolver) findProjectScope(dir string) (Scope, bool) {
	for {
		if s := r.ProjectAt(dir); s.Exists() && s.Dir != r.Global().Dir {
			return s, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Scope{}, false
		}
		dir = parent
	}
}

// Resolve picks the scope named by explicit ("global" or "project"), falling
// back to the nearest project and then the global scope.
func (r *ScopeResolver) Resolve(explicit string) Scope {
	if explicit == string(ScopeGlobal) {
		return r.Global()
	}
	if scope, ok := r.Project(); ok {
		return scope
	}
	return r.Global()
}
