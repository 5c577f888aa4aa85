package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/neurogov/internal/governance"
	"github.com/polisai/neurogov/pkg/domain"
	"github.com/polisai/neurogov/pkg/dreamnet"
	"github.com/polisai/neurogov/pkg/policy"
)

const (
	maxBodyBytes = 1 << 20

	codeBadRequest = "BAD_REQUEST"
	codeInternal   = "INTERNAL"
)

// Options wires the governance components into the admin surface.
type Options struct {
	Engine   *policy.ConsensusEngine
	Kernel   *governance.SafetyKernel
	Dreamnet *dreamnet.Index
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Server serves the admin HTTP API.
type Server struct {
	engine   *policy.ConsensusEngine
	kernel   *governance.SafetyKernel
	dreamnet *dreamnet.Index
	metrics  *Metrics
	logger   *slog.Logger

	mux *http.ServeMux
}

// NewServer builds the admin server and registers every route. Missing
// components are created with their defaults.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:   opts.Engine,
		kernel:   opts.Kernel,
		dreamnet: opts.Dreamnet,
		metrics:  opts.Metrics,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	if s.engine == nil {
		s.engine = policy.NewConsensusEngine(policy.WithLogger(logger))
	}
	if s.kernel == nil {
		s.kernel = governance.NewSafetyKernel(governance.WithKernelLogger(logger))
	}
	if s.dreamnet == nil {
		s.dreamnet = dreamnet.NewIndex(dreamnet.DefaultCarbonLimit)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
		if err := s.metrics.RegisterKernel(s.kernel); err != nil {
			logger.Error("Failed to register kernel metrics", "error", err)
		}
	}

	s.routes()
	return s
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "neurogov.admin")
}

// Metrics returns the Prometheus metrics backing /metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.handle("POST /v1/decisions", s.handlePropose)
	s.handle("GET /v1/decisions", s.handleListDecisions)
	s.handle("GET /v1/decisions/{id}", s.handleGetDecision)
	s.handle("POST /v1/decisions/{id}/votes", s.handleVote)
	s.handle("POST /v1/decisions/{id}/finalize", s.handleFinalize)
	s.handle("GET /v1/compliance", s.handleCompliance)

	s.handle("GET /v1/kernel", s.handleKernel)
	s.handle("GET /v1/kernel/report", s.handleKernelReport)
	s.handle("POST /v1/kernel/viability", s.handleViability)
	s.handle("PUT /v1/kernel/axes/{axis}", s.handleUpdateAxis)
	s.handle("PUT /v1/kernel/axes/{axis}/bounds", s.handleSetBounds)

	s.handle("POST /v1/dreamnet/sessions", s.handleRecordSession)
	s.handle("GET /v1/dreamnet/stats", s.handleDreamnetStats)
	s.handle("GET /v1/dreamnet/windows", s.handleComputeWindows)
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.metrics.MetricsMiddleware(pattern, h))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := domain.ErrorResponse{Code: code, Message: message}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		resp.TraceID = sc.TraceID().String()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Admin request failed", "path", r.URL.Path, "method", r.Method, "error", message)
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error onto its HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	if code == "" {
		code = codeInternal
	}
	s.writeError(w, r, statusFor(err), code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTag),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidBounds),
		errors.Is(err, domain.ErrInvalidThreshold),
		errors.Is(err, domain.ErrUnknownAxis):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownDecision):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateVote):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDecisionNotApproved):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}
