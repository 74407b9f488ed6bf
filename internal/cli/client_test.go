package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestClient_Submit(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"0000001-W","type":"workflow","started":true}}`))
	})

	def := map[string]any{"workflow": map[string]any{"name": "wf"}}
	resp, err := client.Submit(def, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ID != "0000001-W" || !resp.Started {
		t.Errorf("unexpected response %+v", resp)
	}
	if got["start"] != true {
		t.Errorf("expected start=true in body, got %v", got["start"])
	}
	if _, ok := def["start"]; ok {
		t.Error("Submit must not modify the definition")
	}
}

func TestClient_ListJobs_Query(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "coordinator" || q.Get("status") != "RUNNING" || q.Get("limit") != "5" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Has("offset") {
			t.Error("zero offset must not be sent")
		}
		w.Write([]byte(`{"data":{"coordinators":[{"id":"c1","app_name":"hourly","status":"RUNNING","created_at":"now"}]},"total":1}`))
	})

	list, err := client.ListJobs(ListJobsOpts{Type: "coordinator", Status: "RUNNING", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all := list.All()
	if len(all) != 1 || all[0].DisplayName() != "hourly" {
		t.Errorf("unexpected jobs %+v", all)
	}
}

func TestClient_GetJob(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/jobs/j1-W" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"type":"workflow","workflow":{"id":"j1-W","name":"wf","status":"RUNNING"},
			"workflow_actions":[{"id":"j1-W@a","name":"a","type":"noop","status":"OK"}]}}`))
	})

	info, err := client.GetJob("j1-W")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Job().ID != "j1-W" {
		t.Errorf("expected workflow job, got %+v", info.Job())
	}
	if len(info.WorkflowActions) != 1 || info.WorkflowActions[0].Status != "OK" {
		t.Errorf("unexpected actions %+v", info.WorkflowActions)
	}
}

func TestClient_ErrorResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"PRECONDITION_FAILED","message":"job is not suspended"}}`))
	})

	err := client.JobAction("j1-W", "resume")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "PRECONDITION_FAILED") {
		t.Errorf("expected error code in message, got %v", err)
	}
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GetMode()
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected HTTP 503 error, got %v", err)
	}
}

func TestClient_SetMode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"data":{"mode":"` + body["mode"] + `","previous":"NORMAL"}}`))
	})

	mode, err := client.SetMode("SAFEMODE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode.Mode != "SAFEMODE" || mode.Previous != "NORMAL" {
		t.Errorf("unexpected mode %+v", mode)
	}
}

func TestReadDefinition(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "wf.yaml")
	os.WriteFile(yamlPath, []byte("workflow:\n  name: wf\n  actions:\n    - name: a\n      type: noop\n"), 0o644)

	jsonPath := filepath.Join(dir, "wf.json")
	os.WriteFile(jsonPath, []byte(`{"workflow":{"name":"wf"}}`), 0o644)

	for _, path := range []string{yamlPath, jsonPath} {
		def, err := ReadDefinition(path)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", path, err)
		}
		wf, ok := def["workflow"].(map[string]any)
		if !ok || wf["name"] != "wf" {
			t.Errorf("%s: unexpected definition %v", path, def)
		}
	}

	if _, err := ReadDefinition(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	emptyPath := filepath.Join(dir, "empty.yaml")
	os.WriteFile(emptyPath, nil, 0o644)
	if _, err := ReadDefinition(emptyPath); err == nil {
		t.Error("expected error for empty definition")
	}
}

func TestMergeConf(t *testing.T) {
	def := map[string]any{"conf": map[string]any{"a": "1"}}

	if err := mergeConf(def, []string{"b=2", "a=3", "url=http://x?y=z"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conf := def["conf"].(map[string]any)
	if conf["a"] != "3" || conf["b"] != "2" || conf["url"] != "http://x?y=z" {
		t.Errorf("unexpected conf %v", conf)
	}

	if err := mergeConf(map[string]any{}, []string{"novalue"}); err == nil {
		t.Error("expected error for pair without '='")
	}
}
