package backend

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bnema/upscaler/internal/domain"
)

// Workspace is a per-job scratch directory under the configured work root.
type Workspace struct {
	Dir string
}

func NewWorkspace(root, jobID string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &domain.BackendIOError{Op: "create work root", Path: root, Err: err}
	}
	dir, err := os.MkdirTemp(root, "job-"+jobID+"-")
	if err != nil {
		return nil, &domain.BackendIOError{Op: "create workspace", Path: root, Err: err}
	}
	return &Workspace{Dir: dir}, nil
}

func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Subdir creates and returns a directory inside the workspace.
func (w *Workspace) Subdir(name string) (string, error) {
	dir := w.Path(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &domain.BackendIOError{Op: "create directory", Path: dir, Err: err}
	}
	return dir, nil
}

// FramePath names frame n (1-based) inside dir.
func FramePath(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%06d.png", n))
}

func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Dir)
}
