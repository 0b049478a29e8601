package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/horusec-scan/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

// maxScans bounds the in-memory history; the oldest entries are dropped.
const maxScans = 1000

// ScanRepository keeps scan history in process memory.
type ScanRepository struct {
	mu    sync.RWMutex
	scans map[domain.ScanID]*domain.Scan
	order []domain.ScanID
}

func NewScanRepository() *ScanRepository {
	return &ScanRepository{scans: make(map[domain.ScanID]*domain.Scan)}
}

func (r *ScanRepository) Save(_ context.Context, s *domain.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *s
	if _, ok := r.scans[s.ID]; !ok {
		r.order = append(r.order, s.ID)
		if len(r.order) > maxScans {
			delete(r.scans, r.order[0])
			r.order = r.order[1:]
		}
	}
	r.scans[s.ID] = &cp
	return nil
}

func (r *ScanRepository) Get(_ context.Context, id domain.ScanID) (*domain.Scan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *ScanRepository) Latest(_ context.Context, limit int) ([]*domain.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	out := make([]*domain.Scan, 0, len(r.scans))
	for _, s := range r.scans {
		cp := *s
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ScanRepository) Summary(_ context.Context, since time.Time) (domain.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum domain.Summary
	for _, s := range r.scans {
		if s.TriggeredAt.Before(since) {
			continue
		}
		sum.TotalScans++
		if s.Status == domain.StatusFailed {
			sum.Failed++
		}
		sum.Critical += s.Counts.Critical
		sum.High += s.Counts.High
		sum.Medium += s.Counts.Medium
		sum.Low += s.Counts.Low
	}
	return sum, nil
}

// ScanErrorRepository keeps scan diagnostics in process memory.
type ScanErrorRepository struct {
	mu     sync.RWMutex
	nextID int64
	byScan map[string][]*scanerrors.ScanError
}

func NewScanErrorRepository() *ScanErrorRepository {
	return &ScanErrorRepository{byScan: make(map[string][]*scanerrors.ScanError)}
}

func (r *ScanErrorRepository) Save(_ context.Context, e *scanerrors.ScanError) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	cp := *e
	cp.ID = r.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.byScan[e.ScanID] = append(r.byScan[e.ScanID], &cp)
	return nil
}

func (r *ScanErrorRepository) ListByScan(_ context.Context, scanID string, limit int) ([]*scanerrors.ScanError, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byScan[scanID]
	out := make([]*scanerrors.ScanError, 0, len(list))
	// newest first
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}
