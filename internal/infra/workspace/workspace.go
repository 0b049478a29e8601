package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

const (
	DirPrefix    = "horusec-ws-"
	ReportPrefix = "horusec-report-"
)

// Manager allocates per-request workspaces under BaseDir and remembers the
// ones not yet released.
type Manager struct {
	BaseDir string

	mu     sync.Mutex
	active map[string]*Workspace
}

func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{BaseDir: baseDir, active: make(map[string]*Workspace)}
}

// Workspace is owned by exactly one request.
type Workspace struct {
	m          *Manager
	dir        string
	outputFile string
	once       sync.Once
	err        error
}

// Acquire creates a uniquely named directory. With withOutputFile it also
// reserves a unique report path next to it; the file itself is not created.
func (m *Manager) Acquire(withOutputFile bool) (domain.Workspace, error) {
	id := uuid.NewString()
	dir, err := os.MkdirTemp(m.BaseDir, DirPrefix+id+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	ws := &Workspace{m: m, dir: dir}
	if withOutputFile {
		ws.outputFile = filepath.Join(m.BaseDir, ReportPrefix+id+".json")
	}

	m.mu.Lock()
	if m.active == nil {
		m.active = make(map[string]*Workspace)
	}
	m.active[dir] = ws
	m.mu.Unlock()
	return ws, nil
}

// InUse reports whether path is the directory or output file of a workspace
// that has not been released.
func (m *Manager) InUse(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[path]; ok {
		return true
	}
	for _, ws := range m.active {
		if ws.outputFile == path {
			return true
		}
	}
	return false
}

// Active is the number of unreleased workspaces.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// ReleaseAll removes every unreleased workspace. Used on shutdown when
// in-flight scans did not finish in time.
func (m *Manager) ReleaseAll() error {
	m.mu.Lock()
	live := make([]*Workspace, 0, len(m.active))
	for _, ws := range m.active {
		live = append(live, ws)
	}
	m.mu.Unlock()

	var errs []error
	for _, ws := range live {
		errs = append(errs, ws.Release())
	}
	return errors.Join(errs...)
}

func (w *Workspace) Dir() string        { return w.dir }
func (w *Workspace) OutputFile() string { return w.outputFile }

// Release removes the directory and the output file. Safe to call more than
// once; only the first call does work.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		var errs []error
		if err := os.RemoveAll(w.dir); err != nil {
			errs = append(errs, fmt.Errorf("remove workspace %s: %w", w.dir, err))
		}
		if w.outputFile != "" {
			if err := os.Remove(w.outputFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove report %s: %w", w.outputFile, err))
			}
		}
		w.err = errors.Join(errs...)

		if w.m != nil {
			w.m.mu.Lock()
			delete(w.m.active, w.dir)
			w.m.mu.Unlock()
		}
	})
	return w.err
}
