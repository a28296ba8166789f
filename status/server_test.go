package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/zeros"
)

type fakeSource struct {
	report *zeros.BootReport
	states map[string]zeros.ModuleLoadState
}

func (f *fakeSource) LastReport() *zeros.BootReport { return f.report }
func (f *fakeSource) Progress() zeros.Progress {
	return zeros.Progress{Phase: zeros.PhaseLoading, Percent: 30, Message: "Loaded layer"}
}
func (f *fakeSource) LoadStates() map[string]zeros.ModuleLoadState { return f.states }

type checkingSource struct {
	fakeSource
	runs int
}

func (c *checkingSource) RunSelfCheck(context.Context) zeros.SelfCheckReport {
	c.runs++
	return zeros.SelfCheckReport{Passed: 3, TotalChecks: 3}
}

func get(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthz(t *testing.T) {
	src := &fakeSource{}
	h := NewServer(src, nil).Handler()

	rec, body := get(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body["status"])
	assert.NotNil(t, body["progress"])

	src.report = &zeros.BootReport{Status: zeros.BootStatusFailed, Error: "cycle"}
	rec, body = get(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "cycle", body["error"])

	src.report = &zeros.BootReport{Status: zeros.BootStatusDegraded, SelfCheck: zeros.SelfCheckReport{Passed: 4, Warnings: 1}}
	rec, body = get(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "boot completed (degraded): 4 checks passed, 1 warnings", body["summary"])
}

func TestReport(t *testing.T) {
	src := &fakeSource{}
	h := NewServer(src, nil).Handler()

	rec, _ := get(t, h, http.MethodGet, "/boot/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	src.report = &zeros.BootReport{SessionID: "s1", Status: zeros.BootStatusReady, Order: []string{"a", "b"}}
	rec, body := get(t, h, http.MethodGet, "/boot/report")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", body["sessionId"])
	assert.Equal(t, []any{"a", "b"}, body["order"])
}

func TestProgress(t *testing.T) {
	rec, body := get(t, NewServer(&fakeSource{}, nil).Handler(), http.MethodGet, "/boot/progress")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, zeros.PhaseLoading, body["phase"])
	assert.EqualValues(t, 30, body["percent"])
}

func TestModules(t *testing.T) {
	src := &fakeSource{states: map[string]zeros.ModuleLoadState{
		"kernel/core": zeros.StateReady,
		"kernel/fs":   zeros.StateFailed,
	}}
	h := NewServer(src, nil).Handler()

	rec, body := get(t, h, http.MethodGet, "/boot/modules")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"kernel/core": "ready", "kernel/fs": "failed"}, body)

	rec, body = get(t, h, http.MethodGet, "/boot/modules/kernel/fs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "kernel/fs", body["module"])
	assert.Equal(t, "failed", body["state"])

	rec, body = get(t, h, http.MethodGet, "/boot/modules/apps/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "apps/missing", body["module"])
}

func TestSelfCheck(t *testing.T) {
	rec, _ := get(t, NewServer(&fakeSource{}, nil).Handler(), http.MethodPost, "/boot/selfcheck")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	src := &checkingSource{}
	rec, body := get(t, NewServer(src, nil).Handler(), http.MethodPost, "/boot/selfcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["passed"])
	assert.Equal(t, 1, src.runs)
}

func TestBootloaderIsSource(t *testing.T) {
	var _ Source = (*zeros.Bootloader)(nil)
	var _ SelfChecker = (*zeros.Bootloader)(nil)
}
