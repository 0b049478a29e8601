package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Janitor removes workspaces left behind by a crashed process. Entries still
// held by the Manager are never touched, however old.
type Janitor struct {
	BaseDir  string
	Interval time.Duration
	MaxAge   time.Duration
	Log      *zap.Logger
	manager  *Manager
	now      func() time.Time
}

func NewJanitor(m *Manager, interval, maxAge time.Duration, log *zap.Logger) *Janitor {
	return &Janitor{BaseDir: m.BaseDir, Interval: interval, MaxAge: maxAge, Log: log, manager: m, now: time.Now}
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	if j.Interval <= 0 {
		return
	}
	j.Sweep()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep returns the number of removed entries.
func (j *Janitor) Sweep() int {
	entries, err := os.ReadDir(j.BaseDir)
	if err != nil {
		j.Log.Warn("janitor: read base dir", zap.String("dir", j.BaseDir), zap.Error(err))
		return 0
	}

	cutoff := j.now().Add(-j.MaxAge)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, DirPrefix) && !strings.HasPrefix(name, ReportPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(j.BaseDir, name)
		if j.manager != nil && j.manager.InUse(path) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			j.Log.Warn("janitor: remove stale entry", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		j.Log.Info("janitor: removed stale workspaces", zap.Int("count", removed))
	}
	return removed
}
