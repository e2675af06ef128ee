// Package workspace manages the temporary user-data directory handed to the
// browser. The browser creates the directory itself; this package only picks
// a collision-free name and removes it afterwards.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"
)

// Prefix starts the name of every temporary workspace.
const Prefix = "chromerun-"

// Workspace is a directory owned by one launcher run.
type Workspace struct {
	Path string
	fs   afero.Fs
}

// New returns a workspace under baseDir with a unique, time-ordered name. An
// empty baseDir means os.TempDir(). Nothing is created on disk.
func New(fs afero.Fs, baseDir string) *Workspace {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Workspace{
		Path: filepath.Join(baseDir, Prefix+ulid.Make().String()),
		fs:   fs,
	}
}

// Remove deletes the workspace and everything in it. A workspace that was
// never created is not an error.
func (w *Workspace) Remove() error {
	if w == nil {
		return nil
	}
	if err := w.fs.RemoveAll(w.Path); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", w.Path, err)
	}
	return nil
}
