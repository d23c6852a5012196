package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// OutputExt is the extension of captured engine output files.
const OutputExt = ".txt"

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateName reports whether name can be used as a file stem inside a
// workspace. Names must start with a letter or digit, contain only letters,
// digits, '_', '.' and '-', and never contain "..".
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Workspace is the temporary directory holding scripts and captured output.
// A directory that already existed before Ensure is shared with the user, so
// Remove only deletes the files the workspace wrote into it.
type Workspace struct {
	dir       string
	scriptExt string

	mu      sync.Mutex
	created bool
	files   map[string]struct{}
}

// NewWorkspace returns a workspace rooted at dir. The directory is created
// lazily by Ensure.
func NewWorkspace(dir string) *Workspace {
	return &Workspace{dir: dir, scriptExt: DefaultScriptExt, files: make(map[string]struct{})}
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Ensure creates the workspace directory if needed. An existing directory is
// not an error.
func (w *Workspace) Ensure() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, statErr := os.Stat(w.dir)
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", w.dir, err)
	}
	if errors.Is(statErr, fs.ErrNotExist) {
		w.created = true
	}
	return nil
}

// Created reports whether Ensure created the directory.
func (w *Workspace) Created() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.created
}

// track records a file written into the workspace.
func (w *Workspace) track(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[path] = struct{}{}
}

// ScriptPath returns the script file for name.
func (w *Workspace) ScriptPath(name string) string {
	return filepath.Join(w.dir, name+w.scriptExt)
}

// OutputPath returns the captured output file for name.
func (w *Workspace) OutputPath(name string) string {
	return filepath.Join(w.dir, name+OutputExt)
}

// Remove deletes the workspace directory if Ensure created it. Otherwise it
// deletes only the script and output files the workspace wrote. Removing a
// workspace that was never created is not an error.
func (w *Workspace) Remove() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.created {
		if err := os.RemoveAll(w.dir); err != nil {
			return fmt.Errorf("remove workspace %s: %w", w.dir, err)
		}
		w.created = false
		w.files = make(map[string]struct{})
		return nil
	}

	var errs []error
	for path := range w.files {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		delete(w.files, path)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("remove workspace files in %s: %w", w.dir, err)
	}
	return nil
}
