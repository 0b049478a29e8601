package scans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/horusec-scan/internal/application"
	"github.com/bryanwahyu/horusec-scan/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

// maxDiagnosticBytes caps each captured stream returned to callers.
const maxDiagnosticBytes = 64 << 10

// ErrHistoryDisabled is returned by the history queries when no repository
// is configured.
var ErrHistoryDisabled = errors.New("scan history is disabled")

// Recorder receives scan lifecycle events for metrics.
type Recorder interface {
	ScanStarted()
	ScanFinished(kind domain.Kind)
}

type nopRecorder struct{}

func (nopRecorder) ScanStarted()             {}
func (nopRecorder) ScanFinished(domain.Kind) {}

// Service orchestrates one scan per call: clone, run the engine, parse.
// Service is safe for concurrent use; every call owns its own workspace.
type Service struct {
	Cloner     domain.Cloner
	Engine     domain.Engine
	Workspaces domain.WorkspaceProvider
	// OutputToFile makes the engine write its report to a file instead of stdout.
	OutputToFile      bool
	BlockPrivateHosts bool

	// optional collaborators
	Repo      domain.Repository
	Errors    scanerrors.Repository
	Artifacts domain.ArtifactStore
	Analyst   domain.Analyst
	Recorder  Recorder

	Clock application.Clock
	Log   *zap.Logger

	// Abort, when cancelled, kills the child processes of every running scan.
	// Caller cancellation never does.
	Abort context.Context

	inflight sync.WaitGroup
}

// Result is the outcome of a successful scan.
type Result struct {
	ScanID      domain.ScanID
	Report      domain.Report
	ArtifactURL string
	Analysis    string
	Duration    time.Duration
}

// Scan runs the full lifecycle for req. Any returned error is a
// *domain.Error. The workspace and output file are gone when Scan returns,
// whatever the outcome.
//
// The caller's cancellation is not propagated to the child processes; a
// launched clone or scan runs to completion, to the engine timeout, or until
// Abort is cancelled.
func (s *Service) Scan(ctx context.Context, req domain.Request) (res Result, err error) {
	s.inflight.Add(1)
	defer s.inflight.Done()

	ctx, cancel := s.runContext(ctx)
	defer cancel()
	start := s.now()
	res.ScanID = domain.ScanID(uuid.NewString())

	log := s.logger().With(
		zap.String("scan_id", string(res.ScanID)),
		zap.String("repo_url", RedactURL(req.RepoURL)),
		zap.Bool("has_credential", req.HasCredential()),
	)
	started := false

	defer func() {
		if p := recover(); p != nil {
			log.Error("scan panicked", zap.Any("panic", p), zap.Stack("stack"))
			res = Result{ScanID: res.ScanID}
			err = domain.NewError(domain.KindUnexpected, "internal error", fmt.Errorf("panic: %v", p))
		}
		res.Duration = s.now().Sub(start)
		s.finish(context.WithoutCancel(ctx), log, req, start, started, res, err)
	}()

	if err := ValidateRepoURL(req.RepoURL, s.BlockPrivateHosts); err != nil {
		return res, err
	}
	cloneURL, err := BuildCloneURL(req.RepoURL, req.Credential)
	if err != nil {
		return res, err
	}
	// only accepted requests count as scans
	s.recorder().ScanStarted()
	started = true

	ws, err := s.Workspaces.Acquire(s.OutputToFile)
	if err != nil {
		return res, domain.NewError(domain.KindUnexpected, "failed to allocate workspace", err)
	}
	defer func() {
		if rerr := ws.Release(); rerr != nil {
			log.Warn("workspace cleanup failed", zap.Error(rerr))
		}
	}()
	log.Debug("workspace acquired", zap.String("dir", ws.Dir()), zap.String("output_file", ws.OutputFile()))

	// 1. clone sekali, tanpa retry
	log.Info("cloning repository")
	cloned, err := s.Cloner.Clone(ctx, cloneURL, ws.Dir())
	if err != nil {
		return res, domain.NewError(domain.KindUnexpected, "failed to run git",
			errors.New(scrub([]byte(err.Error()), req.Credential)))
	}
	if cloned.ExitCode != 0 {
		return res, processError(domain.KindCloneFailed,
			fmt.Sprintf("git clone exited with status %d", cloned.ExitCode), cloned, req.Credential)
	}
	log.Info("clone finished", zap.Duration("took", cloned.Duration))

	// 2. jalankan horusec
	scanned, err := s.Engine.Run(ctx, domain.EngineRequest{Workspace: ws.Dir(), OutputFile: ws.OutputFile()})
	if err != nil {
		return res, domain.NewError(domain.KindUnexpected, "failed to run scan engine", err)
	}
	if scanned.TimedOut {
		return res, processError(domain.KindScanFailed,
			fmt.Sprintf("scan engine timed out after %s", scanned.Duration.Round(time.Second)), scanned, req.Credential)
	}
	if scanned.ExitCode != 0 {
		return res, processError(domain.KindScanFailed,
			fmt.Sprintf("scan engine exited with status %d", scanned.ExitCode), scanned, req.Credential)
	}

	// 3. parse output
	raw := scanned.Stdout
	if ws.OutputFile() != "" {
		raw, err = os.ReadFile(ws.OutputFile())
		if err != nil {
			e := processError(domain.KindScanOutputFormat, "scan output file is missing", scanned, req.Credential)
			e.Err = err
			return res, e
		}
	}
	report, err := domain.ParseReport(raw)
	if err != nil {
		e := processError(domain.KindScanOutputFormat, "Invalid JSON output from Horusec", scanned, req.Credential)
		e.Err = err
		return res, e
	}
	res.Report = report
	log.Info("scan finished",
		zap.Duration("took", scanned.Duration),
		zap.Int("vulnerabilities", report.Counts.Total),
		zap.Int("critical", report.Counts.Critical),
		zap.Int("high", report.Counts.High),
	)

	res.ArtifactURL = s.archive(ctx, log, res.ScanID, report.Raw)
	if req.Analyze {
		res.Analysis = s.analyze(ctx, log, report)
	}
	return res, nil
}

func processError(kind domain.Kind, msg string, pr domain.ProcessResult, credential string) *domain.Error {
	return &domain.Error{
		Kind:    kind,
		Message: msg,
		Diagnostics: &domain.Diagnostics{
			Stdout:   truncate(scrub(pr.Stdout, credential), maxDiagnosticBytes),
			Stderr:   truncate(scrub(pr.Stderr, credential), maxDiagnosticBytes),
			ExitCode: pr.ExitCode,
			TimedOut: pr.TimedOut,
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}

func (s *Service) archive(ctx context.Context, log *zap.Logger, id domain.ScanID, raw []byte) string {
	if s.Artifacts == nil {
		return ""
	}
	url, err := s.Artifacts.UploadReport(ctx, fmt.Sprintf("reports/%s.json", id), raw)
	if err != nil {
		log.Warn("report upload failed", zap.Error(err))
		return ""
	}
	return url
}

func (s *Service) analyze(ctx context.Context, log *zap.Logger, report domain.Report) string {
	if s.Analyst == nil {
		return ""
	}
	out, err := s.Analyst.Analyze(ctx, report)
	if err != nil {
		log.Warn("report analysis failed", zap.Error(err))
		return ""
	}
	return out
}

// runContext detaches ctx from the caller and ties it to Abort instead.
func (s *Service) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if s.Abort == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(s.Abort, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Wait blocks until every running Scan has returned and cleaned up, or ctx
// is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish records metrics and history for every outcome.
func (s *Service) finish(ctx context.Context, log *zap.Logger, req domain.Request, start time.Time, started bool, res Result, err error) {
	kind := domain.Kind("")
	if err != nil {
		kind = domain.KindOf(err)
	}
	if started {
		s.recorder().ScanFinished(kind)
	}

	switch kind {
	case "":
	case domain.KindBadRequest, domain.KindCredentialURL:
		log.Info("scan request rejected", zap.String("kind", string(kind)), zap.Error(err))
		// rejected requests never reach history
		return
	default:
		log.Error("scan failed", zap.String("kind", string(kind)), zap.Error(err))
	}

	if s.Repo != nil {
		rec := &domain.Scan{
			ID:              res.ScanID,
			RepoURL:         RedactURL(req.RepoURL),
			HasCredential:   req.HasCredential(),
			TriggeredAt:     start,
			Status:          domain.StatusSuccess,
			ErrorKind:       kind,
			Vulnerabilities: res.Report.Counts.Total,
			Counts:          res.Report.Counts,
			ArtifactURL:     res.ArtifactURL,
			DurationMS:      res.Duration.Milliseconds(),
			Analysis:        res.Analysis,
		}
		if err != nil {
			rec.Status = domain.StatusFailed
		}
		if serr := s.Repo.Save(ctx, rec); serr != nil {
			log.Warn("saving scan history failed", zap.Error(serr))
		}
	}

	if err != nil && s.Errors != nil {
		e := &scanerrors.ScanError{
			ScanID:    string(res.ScanID),
			Phase:     phaseOf(kind),
			Kind:      string(kind),
			Message:   err.Error(),
			CreatedAt: s.now(),
		}
		var se *domain.Error
		if errors.As(err, &se) && se.Diagnostics != nil {
			if b, jerr := json.Marshal(se.Diagnostics); jerr == nil {
				e.DetailsJSON = string(b)
			}
		}
		if serr := s.Errors.Save(ctx, e); serr != nil {
			log.Warn("saving scan error failed", zap.Error(serr))
		}
	}
}

func phaseOf(kind domain.Kind) scanerrors.Phase {
	switch kind {
	case domain.KindBadRequest, domain.KindCredentialURL:
		return scanerrors.PhaseValidate
	case domain.KindCloneFailed:
		return scanerrors.PhaseClone
	case domain.KindScanFailed:
		return scanerrors.PhaseScan
	case domain.KindScanOutputFormat:
		return scanerrors.PhaseParse
	default:
		return scanerrors.PhaseOther
	}
}

// HistoryEnabled reports whether scans are recorded.
func (s *Service) HistoryEnabled() bool { return s.Repo != nil }

// Latest ambil N scan terakhir
func (s *Service) Latest(ctx context.Context, limit int) ([]*domain.Scan, error) {
	if s.Repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.Repo.Latest(ctx, limit)
}

// Get ambil 1 scan by id
func (s *Service) Get(ctx context.Context, id domain.ScanID) (*domain.Scan, error) {
	if s.Repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.Repo.Get(ctx, id)
}

// ErrorsFor lists stored diagnostics of a scan.
func (s *Service) ErrorsFor(ctx context.Context, id domain.ScanID, limit int) ([]*scanerrors.ScanError, error) {
	if s.Errors == nil {
		return nil, ErrHistoryDisabled
	}
	return s.Errors.ListByScan(ctx, string(id), limit)
}

// Summary rekap hasil scan N hari terakhir
func (s *Service) Summary(ctx context.Context, sinceDays int) (domain.Summary, error) {
	if s.Repo == nil {
		return domain.Summary{}, ErrHistoryDisabled
	}
	return s.Repo.Summary(ctx, s.now().AddDate(0, 0, -sinceDays))
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) recorder() Recorder {
	if s.Recorder == nil {
		return nopRecorder{}
	}
	return s.Recorder
}
