package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Coordinator/internal/config"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/repo"
	"github.com/shaiso/Coordinator/internal/service"
	"github.com/shaiso/Coordinator/internal/sysmode"
)

// newTestServer — API поверх сервиса без запущенного диспетчера:
// синхронные операции выполняются, очередь только накапливается.
func newTestServer(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()

	cfg := config.Default()
	cfg.Coordinator.WatchLocal = false
	svc, err := service.New(service.Options{Config: cfg, Store: repo.NewMemoryStore()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	mux := http.NewServeMux()
	NewHandler(Config{Engine: svc, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, srv.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decodeData[T any](t *testing.T, data []byte) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return resp.Data
}

func decodeError(t *testing.T, data []byte) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode error %s: %v", data, err)
	}
	return resp.Error
}

func workflowRequest(start bool) SubmitJobRequest {
	return SubmitJobRequest{
		Definition: service.Definition{
			Workflow: &domain.WorkflowApp{
				Name:    "api-test",
				Actions: []domain.ActionDef{{Name: "a", Type: "noop"}},
			},
		},
		Start: start,
	}
}

func TestSubmitJob_CreatesAndStarts(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, data := do(t, srv, http.MethodPost, "/api/v1/jobs", workflowRequest(true))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}
	created := decodeData[SubmitJobResponse](t, data)
	if created.Type != domain.JobTypeWorkflow || !created.Started {
		t.Errorf("unexpected response %+v", created)
	}

	resp, data = do(t, srv, http.MethodGet, "/api/v1/jobs/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, data)
	}
	info := decodeData[service.JobInfo](t, data)
	if info.Workflow == nil || info.Workflow.Status != domain.JobRunning {
		t.Errorf("expected RUNNING workflow, got %+v", info.Workflow)
	}
}

func TestSubmitJob_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body any
		code ErrorCode
	}{
		{"empty definition", SubmitJobRequest{}, ErrCodeBadRequest},
		{"unknown action type", SubmitJobRequest{Definition: service.Definition{
			Workflow: &domain.WorkflowApp{Name: "x", Actions: []domain.ActionDef{{Name: "a", Type: "mapreduce"}}},
		}}, ErrCodeValidation},
		{"bad frequency", SubmitJobRequest{Definition: service.Definition{
			Coordinator: &domain.CoordinatorApp{Name: "c", Frequency: "often"},
		}}, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, srv, http.MethodPost, "/api/v1/jobs", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.StatusCode, data)
			}
			if got := decodeError(t, data).Code; got != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, got)
			}
		})
	}
}

func TestGetJob_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, data := do(t, srv, http.MethodGet, "/api/v1/jobs/"+domain.NewJobID(domain.JobTypeWorkflow), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.StatusCode, data)
	}
}

func TestJobAction_PreconditionConflict(t *testing.T) {
	srv, _ := newTestServer(t)

	_, data := do(t, srv, http.MethodPost, "/api/v1/jobs", workflowRequest(false))
	id := decodeData[SubmitJobResponse](t, data).ID

	resp, data := do(t, srv, http.MethodPost, "/api/v1/jobs/"+id+"/resume", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", resp.StatusCode, data)
	}
	if got := decodeError(t, data).Code; got != "PRECONDITION_FAILED" {
		t.Errorf("unexpected code %s", got)
	}

	resp, data = do(t, srv, http.MethodPost, "/api/v1/jobs/"+id+"/kill", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on kill, got %d: %s", resp.StatusCode, data)
	}
}

func TestListJobs(t *testing.T) {
	srv, _ := newTestServer(t)

	do(t, srv, http.MethodPost, "/api/v1/jobs", workflowRequest(false))
	do(t, srv, http.MethodPost, "/api/v1/jobs", workflowRequest(false))

	resp, data := do(t, srv, http.MethodGet, "/api/v1/jobs?type=workflow&status=PREP", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, data)
	}
	list := decodeData[service.JobList](t, data)
	if len(list.Workflows) != 2 {
		t.Errorf("expected 2 workflows, got %d", len(list.Workflows))
	}

	resp, _ = do(t, srv, http.MethodGet, "/api/v1/jobs?type=pipeline", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", resp.StatusCode)
	}
}

func TestNoWebServiceRejectsMutations(t *testing.T) {
	srv, svc := newTestServer(t)

	resp, data := do(t, srv, http.MethodPut, "/api/v1/admin/mode", ModeRequest{Mode: "NOWEBSERVICE"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, data)
	}
	if got := decodeData[ModeResponse](t, data); got.Previous != "NORMAL" {
		t.Errorf("expected previous NORMAL, got %+v", got)
	}

	resp, data = do(t, srv, http.MethodPost, "/api/v1/jobs", workflowRequest(false))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", resp.StatusCode, data)
	}
	if got := decodeError(t, data).Code; got != ErrCodeUnavailable {
		t.Errorf("unexpected code %s", got)
	}

	// Чтение и смена режима остаются доступны
	resp, _ = do(t, srv, http.MethodGet, "/api/v1/jobs", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected reads to pass, got %d", resp.StatusCode)
	}
	resp, _ = do(t, srv, http.MethodPut, "/api/v1/admin/mode", ModeRequest{Mode: "normal"})
	if resp.StatusCode != http.StatusOK || svc.Mode().Get() != sysmode.Normal {
		t.Errorf("expected mode switch back to NORMAL, got %d %s", resp.StatusCode, svc.Mode().Get())
	}
}

func TestSetMode_Unknown(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := do(t, srv, http.MethodPut, "/api/v1/admin/mode", ModeRequest{Mode: "MAINTENANCE"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetQueue(t *testing.T) {
	srv, _ := newTestServer(t)

	do(t, srv, http.MethodPost, "/api/v1/jobs", workflowRequest(true))

	resp, data := do(t, srv, http.MethodGet, "/api/v1/admin/queue", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, data)
	}
	q := decodeData[service.QueueInfo](t, data)
	if q.Size == 0 || len(q.Items) != q.Size {
		t.Errorf("unexpected queue dump %+v", q)
	}
}

func TestListExecutors(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, data := do(t, srv, http.MethodGet, "/api/v1/admin/executors", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	types := decodeData[[]string](t, data)
	if len(types) != 4 {
		t.Errorf("expected 4 executor types, got %v", types)
	}
}
