package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	appscans "github.com/bryanwahyu/horusec-scan/internal/application/scans"
	"github.com/bryanwahyu/horusec-scan/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
	"github.com/bryanwahyu/horusec-scan/internal/middleware"
)

const defaultMaxBodyBytes = 1 << 20

// Options configures the HTTP surface around the scan service.
type Options struct {
	MaxBodyBytes       int64
	APIKeys            []string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	// Checkers back GET /ready.
	Checkers map[string]middleware.HealthChecker
	Metrics  *middleware.Metrics
	Log      *zap.Logger
}

type Router struct {
	scansSvc *appscans.Service
	maxBody  int64
	log      *zap.Logger
}

func NewRouter(scansSvc *appscans.Service, opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = middleware.NewMetrics()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	r := &Router{scansSvc: scansSvc, maxBody: opts.MaxBodyBytes, log: opts.Log}

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(opts.Log))
	mux.Use(opts.Metrics.Middleware)
	if len(opts.CORSAllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	mux.Get("/health", middleware.LivenessHandler)

	mux.Group(func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		rt.Use(middleware.RateLimitMiddleware(opts.RateLimitRPS, opts.RateLimitBurst))

		rt.Get("/ready", middleware.ReadinessHandler(opts.Checkers))
		rt.Get("/metrics", opts.Metrics.Handler)
		rt.Post("/scan", r.handleScan)

		rt.Route("/v1", func(v1 chi.Router) {
			v1.Get("/scans", r.wrap(r.handleLatest))
			v1.Get("/scans/{id}", r.wrap(r.handleGet))
			v1.Get("/scans/{id}/errors", r.wrap(r.handleErrors))
			v1.Get("/summary", r.wrap(r.handleSummary))
		})
	})

	return mux
}

// envelope is the body of every POST /scan response.
type envelope struct {
	Success     bool            `json:"success"`
	Results     json.RawMessage `json:"results,omitempty"`
	Error       any             `json:"error,omitempty"`
	ScanID      string          `json:"scan_id,omitempty"`
	ArtifactURL string          `json:"artifact_url,omitempty"`
	Analysis    any             `json:"analysis,omitempty"`
}

type scanBody struct {
	RepoURL string `json:"repo_url"`
	GitKey  string `json:"gitkey"`
	Analyze bool   `json:"analyze"`
}

// POST /scan
// Body: {"repo_url": "...", "gitkey": "...", "analyze": false}
func (r *Router) handleScan(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxBody)

	var body scanBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeEnvelope(w, req, http.StatusRequestEntityTooLarge, envelope{Error: "request body too large"})
			return
		}
		writeEnvelope(w, req, http.StatusBadRequest, envelope{Error: "Invalid JSON body"})
		return
	}

	res, err := r.scansSvc.Scan(req.Context(), domain.Request{
		RepoURL:    body.RepoURL,
		Credential: body.GitKey,
		Analyze:    body.Analyze,
	})

	env := envelope{}
	if r.scansSvc.HistoryEnabled() {
		env.ScanID = string(res.ScanID)
	}
	if err != nil {
		status, e := errorBody(err)
		env.Error = e
		writeEnvelope(w, req, status, env)
		return
	}

	env.Success = true
	env.Results = res.Report.Raw
	env.ArtifactURL = res.ArtifactURL
	if res.Analysis != "" {
		if json.Valid([]byte(res.Analysis)) {
			env.Analysis = json.RawMessage(res.Analysis)
		} else {
			env.Analysis = res.Analysis
		}
	}
	writeEnvelope(w, req, http.StatusOK, env)
}

// errorBody maps a scan error to its status and the envelope error value.
func errorBody(err error) (int, any) {
	var se *domain.Error
	if !errors.As(err, &se) {
		return http.StatusInternalServerError, domain.NewError(domain.KindUnexpected, "internal error", nil)
	}
	switch se.Kind {
	case domain.KindBadRequest, domain.KindCredentialURL:
		return http.StatusBadRequest, se.Message
	}
	return http.StatusInternalServerError, se
}

func writeEnvelope(w http.ResponseWriter, req *http.Request, status int, env envelope) {
	render.Status(req, status)
	render.JSON(w, req, env)
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type badRequest string

func (e badRequest) Error() string { return string(e) }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status := http.StatusInternalServerError
		msg := "internal error"
		var br badRequest
		switch {
		case errors.As(err, &br):
			status, msg = http.StatusBadRequest, br.Error()
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, appscans.ErrHistoryDisabled):
			status, msg = http.StatusNotFound, err.Error()
		default:
			r.log.Error("history query failed", zap.String("path", req.URL.Path), zap.Error(err))
		}
		render.Status(req, status)
		render.JSON(w, req, map[string]any{"success": false, "error": msg})
	}
}

func scanIDParam(req *http.Request) (domain.ScanID, error) {
	id := middleware.SanitizeString(chi.URLParam(req, "id"))
	if err := middleware.ValidateScanID(id); err != nil {
		return "", badRequest(err.Error())
	}
	return domain.ScanID(id), nil
}

func intQuery(req *http.Request, name string) (int, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("invalid " + name)
	}
	return n, nil
}

// GET /v1/scans?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	limit, err := intQuery(req, "limit")
	if err != nil {
		return err
	}
	list, err := r.scansSvc.Latest(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.Scan{}
	}
	render.JSON(w, req, list)
	return nil
}

// GET /v1/scans/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := scanIDParam(req)
	if err != nil {
		return err
	}
	scan, err := r.scansSvc.Get(req.Context(), id)
	if err != nil {
		return err
	}
	render.JSON(w, req, scan)
	return nil
}

// GET /v1/scans/{id}/errors?limit=20
func (r *Router) handleErrors(w http.ResponseWriter, req *http.Request) error {
	id, err := scanIDParam(req)
	if err != nil {
		return err
	}
	limit, err := intQuery(req, "limit")
	if err != nil {
		return err
	}
	list, err := r.scansSvc.ErrorsFor(req.Context(), id, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*scanerrors.ScanError{}
	}
	render.JSON(w, req, list)
	return nil
}

// GET /v1/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	days, err := intQuery(req, "days")
	if err != nil {
		return err
	}
	summary, err := r.scansSvc.Summary(req.Context(), middleware.ValidateDays(days))
	if err != nil {
		return err
	}
	render.JSON(w, req, summary)
	return nil
}
