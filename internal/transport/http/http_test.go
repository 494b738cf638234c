package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voiceover/internal/job"
	"github.com/nadzzz/voiceover/internal/jobs"
	"github.com/nadzzz/voiceover/internal/lock"
	"github.com/nadzzz/voiceover/internal/voices"
)

// fakeService returns canned answers and records requests.
type fakeService struct {
	narrateErr error
	summary    *job.Summary
	startErr   error
	gotReq     job.Request
	gotSample  *jobs.SampleRequest
	events     []jobs.Event
}

func (f *fakeService) Narrate(ctx context.Context, req job.Request) (*job.Summary, error) {
	f.gotReq = req
	return f.summary, f.narrateErr
}

func (f *fakeService) Start(ctx context.Context, req job.Request) (string, <-chan jobs.Result, error) {
	if f.startErr != nil {
		return "", nil, f.startErr
	}
	done := make(chan jobs.Result, 1)
	done <- jobs.Result{Summary: &job.Summary{JobID: "job-42"}}
	close(done)
	return "job-42", done, nil
}

func (f *fakeService) Sample(ctx context.Context, req jobs.SampleRequest) (*jobs.SampleResult, error) {
	f.gotSample = &req
	if req.OutputPath == "" {
		return nil, &jobs.Error{Stage: jobs.StageRequest, Message: "output path is required"}
	}
	return &jobs.SampleResult{OutputPath: req.OutputPath}, nil
}

func (f *fakeService) Current() job.Progress {
	return job.Progress{JobID: "job-42", Phase: job.PhaseNarrating, Index: 2, Total: 5}
}

func (f *fakeService) LockStatus(ctx context.Context) (lock.Status, error) {
	return lock.Status{Held: true, Holder: "host:1"}, nil
}

func (f *fakeService) ListVoices() ([]voices.Voice, error) { return nil, nil }

func (f *fakeService) EventsSince(seq int64) []jobs.Event {
	var out []jobs.Event
	for _, e := range f.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

const outputRoot = "/srv/narrations"

func do(t *testing.T, svc *fakeService, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	NewHandler(context.Background(), svc, outputRoot).ServeHTTP(rec, req)
	return rec
}

func TestNarrateReturnsSummary(t *testing.T) {
	svc := &fakeService{summary: &job.Summary{JobID: "job-1", Total: 3, OK: 3}}

	rec := do(t, svc, http.MethodPost, "/narrations", `{"document_path":"/docs/a.docx","language":"es","voice_path":"ana"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got job.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, 3, got.OK)
	assert.Equal(t, "/docs/a.docx", svc.gotReq.DocumentPath)
	assert.Equal(t, "es", svc.gotReq.Language)
}

func TestNarrateBusyIsConflict(t *testing.T) {
	svc := &fakeService{narrateErr: jobs.ErrLockBusy}

	rec := do(t, svc, http.MethodPost, "/narrations", `{"document_path":"a.docx"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "another narration is running")
}

func TestNarrateErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		stage  string
	}{
		{"request", &jobs.Error{Stage: jobs.StageRequest, Message: "document path is required"}, http.StatusBadRequest, "request"},
		{"setup", &jobs.Error{Stage: jobs.StageExtract, Message: "reading paragraphs"}, http.StatusInternalServerError, "extract"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, &fakeService{narrateErr: tt.err}, http.MethodPost, "/narrations", `{}`)
			assert.Equal(t, tt.status, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.stage, body.Stage)
		})
	}
}

func TestNarrateCancelledStillReturnsSummary(t *testing.T) {
	svc := &fakeService{summary: &job.Summary{JobID: "job-1", Total: 2, Failed: 2}, narrateErr: context.Canceled}

	rec := do(t, svc, http.MethodPost, "/narrations", `{"document_path":"a.docx"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNarrateInvalidJSON(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodPost, "/narrations", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNarrateAsync(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodPost, "/narrations?async=true", `{"document_path":"a.docx"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var got StartedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "job-42", got.JobID)

	rec = do(t, &fakeService{startErr: jobs.ErrLockBusy}, http.MethodPost, "/narrations?async=true", `{"document_path":"a.docx"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSample(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, svc, http.MethodPost, "/samples", `{"voice_path":"ana","output_path":"samples/s.wav"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.gotSample)
	assert.Equal(t, "/srv/narrations/samples/s.wav", svc.gotSample.OutputPath)

	rec = do(t, &fakeService{}, http.MethodPost, "/samples", `{"voice_path":"ana"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOutputLocationsAreConfined(t *testing.T) {
	for _, body := range []string{
		`{"voice_path":"ana","output_path":"/etc/cron.d/evil.wav"}`,
		`{"voice_path":"ana","output_path":"../escape.wav"}`,
	} {
		svc := &fakeService{}
		rec := do(t, svc, http.MethodPost, "/samples", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Nil(t, svc.gotSample, "service not called for %s", body)

		var got ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "request", got.Stage)
	}

	svc := &fakeService{summary: &job.Summary{}}
	rec := do(t, svc, http.MethodPost, "/narrations", `{"document_path":"a.docx","output_base":"/var/www"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.gotReq.DocumentPath, "service not called")

	rec = do(t, svc, http.MethodPost, "/narrations", `{"document_path":"a.docx","output_base":"/srv/narrations/book"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/srv/narrations/book", svc.gotReq.OutputBase)
}

func TestReadEndpoints(t *testing.T) {
	svc := &fakeService{events: []jobs.Event{{Seq: 1, Type: jobs.EventTypeStatus}, {Seq: 2, Type: jobs.EventTypeProgress, Index: 1}}}

	rec := do(t, svc, http.MethodGet, "/voices", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, svc, http.MethodGet, "/lock", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"held":true`)

	rec = do(t, svc, http.MethodGet, "/jobs/current", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"narrating"`)

	rec = do(t, svc, http.MethodGet, "/events?since=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []jobs.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.EqualValues(t, 2, events[0].Seq)

	rec = do(t, svc, http.MethodGet, "/events?since=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwaggerDocServed(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/narrations")
}
