// Copyright 2025, the Neptune contributors.

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// A run keeping less than this much free space in the spill directory is
// likely to fail mid-aggregation.
const lowSpaceBytes = 1 << 30

// Workspace is the per-run temporary directory holding spill files and
// intermediate candidate output.
type Workspace struct {
	Dir  string
	keep bool
	log  *zap.SugaredLogger
}

// NewWorkspace creates a uniquely named directory under base, or under the
// system temporary directory when base is empty.
func NewWorkspace(base string, keep bool, log *zap.SugaredLogger) (*Workspace, error) {

	if base == "" {
		base = os.TempDir()
	}
	u, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(base, fmt.Sprintf("neptune-%s", u.String()[0:8]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	w := &Workspace{Dir: dir, keep: keep, log: log}
	w.checkSpace()
	log.Infow("created workspace", "dir", dir)
	return w, nil
}

// checkSpace warns when the filesystem holding the workspace is nearly
// full. Spill files can be large for big target groups.
func (w *Workspace) checkSpace() {
	var st unix.Statfs_t
	if err := unix.Statfs(w.Dir, &st); err != nil {
		return
	}
	free := st.Bavail * uint64(st.Bsize)
	if free < lowSpaceBytes {
		w.log.Warnw("workspace filesystem is low on space", "dir", w.Dir, "freeBytes", free)
	}
}

// Path joins elem onto the workspace directory.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.Dir}, elem...)...)
}

// Mkdir creates a subdirectory of the workspace.
func (w *Workspace) Mkdir(name string) (string, error) {
	dir := w.Path(name)
	return dir, os.MkdirAll(dir, 0o755)
}

// Close removes the workspace unless it was opened with keep set.
func (w *Workspace) Close() error {
	if w.keep {
		w.log.Infow("keeping workspace", "dir", w.Dir)
		return nil
	}
	return os.RemoveAll(w.Dir)
}
