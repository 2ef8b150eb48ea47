// Package server implements the HTTP API.
//
// Routes:
//
//	POST /match                  ranked jobs for a candidate
//	POST /match-by-company       ranked companies for a candidate
//	POST|GET /enrich/lazy        lazy AI enrichment of the top companies
//	GET  /enrich/lazy-top50      alias of GET /enrich/lazy
//	POST|GET /enrich/structured  per-job structured AI enrichment
//	GET  /health                 liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/enrichment"
	"github.com/spigell/jobmatch/internal/matching"
	"github.com/spigell/jobmatch/internal/service"
)

const maxBodyBytes = 1 << 20

// Service is the use case layer behind the handlers.
type Service interface {
	Match(ctx context.Context, req service.MatchRequest) (*service.MatchResponse, error)
	MatchByCompany(ctx context.Context, req service.MatchRequest) (*service.CompanyResponse, error)
	EnrichLazy(ctx context.Context, req service.EnrichRequest) (*enrichment.Report, error)
	EnrichStructured(ctx context.Context, req service.StructuredRequest) (*enrichment.JobReport, error)
}

// Handler holds shared dependencies.
type Handler struct {
	svc     Service
	logger  *zap.Logger
	version string
}

func NewHandler(svc Service, logger *zap.Logger, version string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger, version: version}
}

// RegisterRoutes mounts all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /match", h.match)
	mux.HandleFunc("POST /match-by-company", h.matchByCompany)
	mux.HandleFunc("POST /enrich/lazy", h.enrichLazy)
	mux.HandleFunc("GET /enrich/lazy", h.enrichLazy)
	mux.HandleFunc("GET /enrich/lazy-top50", h.enrichLazy)
	mux.HandleFunc("POST /enrich/structured", h.enrichStructured)
	mux.HandleFunc("GET /enrich/structured", h.enrichStructured)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "jobmatch",
		"version": h.version,
	})
}

func (h *Handler) match(w http.ResponseWriter, r *http.Request) {
	var req service.MatchRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	resp, err := h.svc.Match(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) matchByCompany(w http.ResponseWriter, r *http.Request) {
	var req service.MatchRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	resp, err := h.svc.MatchByCompany(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) enrichLazy(w http.ResponseWriter, r *http.Request) {
	req, err := enrichRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	report, err := h.svc.EnrichLazy(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) enrichStructured(w http.ResponseWriter, r *http.Request) {
	req, err := structuredRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	report, err := h.svc.EnrichStructured(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func structuredRequest(r *http.Request) (service.StructuredRequest, error) {
	q := r.URL.Query()

	var (
		req service.StructuredRequest
		err error
	)
	if req.Limit, err = intParam("limit", q.Get("limit")); err != nil {
		return req, err
	}
	if req.Version, err = intParam("version", q.Get("version")); err != nil {
		return req, err
	}
	if req.Force, err = boolParam("force", q.Get("force")); err != nil {
		return req, err
	}
	if req.DryRun, err = boolParam("dry_run", q.Get("dry_run")); err != nil {
		return req, err
	}
	return req, nil
}

func enrichRequest(r *http.Request) (service.EnrichRequest, error) {
	q := r.URL.Query()
	req := service.EnrichRequest{UserID: strings.TrimSpace(q.Get("user_id"))}

	var err error
	if req.TopK, err = intParam("limit", q.Get("limit")); err != nil {
		return req, err
	}
	if req.Force, err = boolParam("force", q.Get("force")); err != nil {
		return req, err
	}
	if req.DryRun, err = boolParam("dry_run", q.Get("dry_run")); err != nil {
		return req, err
	}

	if r.Method == http.MethodPost {
		var body struct {
			Profile matching.Profile `json:"user_profile"`
		}
		if err := decodeBody(r, &body); err != nil {
			return req, err
		}
		req.Profile = body.Profile
		if req.UserID == "" {
			req.UserID = body.Profile.UserID
		}
	}
	return req, nil
}

func intParam(name, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", service.ErrInvalidRequest, name)
	}
	return n, nil
}

func boolParam(name, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", service.ErrInvalidRequest, name)
	}
	return v, nil
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed body: %v", service.ErrInvalidRequest, err)
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrInvalidRequest) {
		status = http.StatusBadRequest
	}
	h.logger.Warn("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs the API on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h *Handler) error {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	h.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
