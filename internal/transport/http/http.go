// Package http implements the HTTP transport for voiceover.
//
// This transport exposes a small REST API to submit narration jobs, render
// voice samples, and watch the running job. Documents and voices are referred
// to by path on the daemon's filesystem.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/voiceover/docs" // registers the OpenAPI spec
	"github.com/nadzzz/voiceover/internal/job"
	"github.com/nadzzz/voiceover/internal/jobs"
	"github.com/nadzzz/voiceover/internal/layout"
	"github.com/nadzzz/voiceover/internal/transport"
	"github.com/nadzzz/voiceover/internal/voices"
)

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port       int
	outputRoot string
	server     *http.Server
}

// New creates a new HTTP transport on the given port. Output locations named
// in requests must lie under outputRoot.
func New(port int, outputRoot string) *Transport {
	return &Transport{port: port, outputRoot: outputRoot}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Listen starts the HTTP server. Jobs started with ?async=true run until ctx
// is cancelled.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           NewHandler(ctx, svc, t.outputRoot),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

type handler struct {
	base       context.Context // lifetime of background jobs
	svc        transport.Service
	outputRoot string
}

// NewHandler returns the API routes. Background jobs inherit base, and
// requested output locations are confined to outputRoot.
func NewHandler(base context.Context, svc transport.Service, outputRoot string) http.Handler {
	h := &handler{base: base, svc: svc, outputRoot: outputRoot}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /narrations", h.handleNarrate)
	mux.HandleFunc("POST /samples", h.handleSample)
	mux.HandleFunc("GET /voices", h.handleVoices)
	mux.HandleFunc("GET /lock", h.handleLock)
	mux.HandleFunc("GET /jobs/current", h.handleCurrent)
	mux.HandleFunc("GET /events", h.handleEvents)

	// Swagger UI for the registered OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

// StartedResponse is returned for jobs accepted in the background.
type StartedResponse struct {
	JobID string `json:"job_id"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// handleNarrate processes a POST /narrations request.
//
// @Summary     Narrate a document
// @Description Splits the document into paragraphs and writes one WAV clip per paragraph into
// @Description <output_base>/<language>_<name>. Only one narration runs at a time; a busy lock
// @Description yields 409. With async=true the job runs in the background and 202 is returned.
// @Description output_base, when given, must lie under the configured output folder.
// @Tags        narration
// @Accept      json
// @Produce     json
// @Param       request  body      job.Request  true   "Narration request"
// @Param       async    query     bool         false  "Run in the background"
// @Success     200  {object}  job.Summary      "Finished job"
// @Success     202  {object}  StartedResponse  "Job accepted"
// @Failure     400  {object}  ErrorResponse    "Invalid request"
// @Failure     409  {object}  ErrorResponse    "Another narration is running"
// @Failure     500  {object}  ErrorResponse    "Setup failure"
// @Router      /narrations [post]
func (h *handler) handleNarrate(w http.ResponseWriter, r *http.Request) {
	var req job.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json: " + err.Error()})
		return
	}
	if req.OutputBase != "" {
		base, err := layout.Confine(h.outputRoot, req.OutputBase)
		if err != nil {
			writeError(w, &jobs.Error{Stage: jobs.StageRequest, Message: "output_base", Err: err})
			return
		}
		req.OutputBase = base
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		id, done, err := h.svc.Start(h.base, req)
		if err != nil {
			writeError(w, err)
			return
		}
		go func() {
			res := <-done
			if res.Err != nil {
				slog.Error("background narration failed", "job_id", id, "error", res.Err)
			}
		}()
		writeJSON(w, http.StatusAccepted, StartedResponse{JobID: id})
		return
	}

	summary, err := h.svc.Narrate(r.Context(), req)
	if err != nil && summary == nil {
		writeError(w, err)
		return
	}
	if err != nil {
		slog.Warn("narration ended early", "job_id", summary.JobID, "error", err)
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleSample processes a POST /samples request.
//
// @Summary     Render a voice sample
// @Description Speaks a short text with the selected voice at the sample speed. A relative
// @Description output_path is resolved under the configured output folder; paths outside it yield 400.
// @Tags        narration
// @Accept      json
// @Produce     json
// @Param       request  body      jobs.SampleRequest  true  "Sample request"
// @Success     200  {object}  jobs.SampleResult
// @Failure     400  {object}  ErrorResponse
// @Failure     409  {object}  ErrorResponse
// @Failure     500  {object}  ErrorResponse
// @Router      /samples [post]
func (h *handler) handleSample(w http.ResponseWriter, r *http.Request) {
	var req jobs.SampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json: " + err.Error()})
		return
	}
	if req.OutputPath != "" {
		out, err := layout.Confine(h.outputRoot, req.OutputPath)
		if err != nil {
			writeError(w, &jobs.Error{Stage: jobs.StageRequest, Message: "output_path", Err: err})
			return
		}
		req.OutputPath = out
	}
	res, err := h.svc.Sample(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleVoices processes a GET /voices request.
//
// @Summary  List voice samples
// @Tags     voices
// @Produce  json
// @Success  200  {array}   voices.Voice
// @Failure  500  {object}  ErrorResponse
// @Router   /voices [get]
func (h *handler) handleVoices(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListVoices()
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []voices.Voice{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleLock processes a GET /lock request.
//
// @Summary  Describe the narration lock
// @Tags     narration
// @Produce  json
// @Success  200  {object}  lock.Status
// @Failure  500  {object}  ErrorResponse
// @Router   /lock [get]
func (h *handler) handleLock(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.LockStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleCurrent processes a GET /jobs/current request.
//
// @Summary  Progress of the running job
// @Tags     narration
// @Produce  json
// @Success  200  {object}  job.Progress
// @Router   /jobs/current [get]
func (h *handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Current())
}

// handleEvents processes a GET /events request.
//
// @Summary  Job events newer than a sequence number
// @Tags     narration
// @Produce  json
// @Param    since  query     int  false  "Last sequence number seen"
// @Success  200    {array}   jobs.Event
// @Failure  400    {object}  ErrorResponse
// @Router   /events [get]
func (h *handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid since: " + err.Error()})
			return
		}
		since = n
	}
	writeJSON(w, http.StatusOK, h.svc.EventsSince(since))
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := ErrorResponse{Error: err.Error()}

	var jobErr *jobs.Error
	switch {
	case errors.Is(err, jobs.ErrLockBusy):
		status = http.StatusConflict
	case errors.As(err, &jobErr):
		body.Stage = string(jobErr.Stage)
		if jobErr.Stage == jobs.StageRequest {
			status = http.StatusBadRequest
		}
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
