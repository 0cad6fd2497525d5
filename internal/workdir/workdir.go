// Package workdir manages the per-connection scratch directory sandbox
// (spec §4.2): a fresh "<root>/conn<N>" directory created on accept and
// removed, best-effort, on disconnect.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cran/rserve-go/internal/rlog"
)

// Sandbox is one connection's scratch directory.
type Sandbox struct {
	root string
	path string
}

// Open creates "<root>/conn<id>" with mode 0777 if root is non-empty. An
// empty root means no workdir was configured; Sandbox then behaves as a
// no-op (Path returns "", Close does nothing), matching the teacher's
// pattern of treating an unset path as "feature disabled" rather than an
// error.
func Open(root string, id uint64) (*Sandbox, error) {
	if root == "" {
		return &Sandbox{}, nil
	}
	path := filepath.Join(root, fmt.Sprintf("conn%d", id))
	if err := os.MkdirAll(path, 0777); err != nil {
		return nil, fmt.Errorf("workdir: create %s: %w", path, err)
	}
	return &Sandbox{root: root, path: path}, nil
}

// Path returns the sandbox's directory (root joined with "conn<id>", so
// relative if root is relative), or "" if no workdir was configured.
func (s *Sandbox) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close removes the sandbox directory. Failures are logged and swallowed
// (spec §4.2: "best-effort; failures are ignored") since a connection
// tearing down must never block on leftover file descriptors held by the
// client's own file handle commands racing the close.
func (s *Sandbox) Close() {
	if s == nil || s.path == "" {
		return
	}
	if err := os.RemoveAll(s.path); err != nil {
		rlog.Log.Warningf("workdir: cleanup %s: %v", s.path, err)
	}
}
