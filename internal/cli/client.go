package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api и domain, CLI не импортирует internal/) ---

// JobResponse — общие поля workflow, координатора и bundle.
type JobResponse struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	AppName      string            `json:"app_name,omitempty"`
	Status       string            `json:"status"`
	Conf         map[string]string `json:"conf,omitempty"`
	ParentID     string            `json:"parent_id,omitempty"`
	BundleID     string            `json:"bundle_id,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedAt    string            `json:"created_at"`
	StartedAt    string            `json:"started_at,omitempty"`
	EndedAt      string            `json:"ended_at,omitempty"`

	// Actions — координаторы bundle.
	Actions []BundleActionResponse `json:"actions,omitempty"`
}

// DisplayName — имя job для таблиц.
func (j JobResponse) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.AppName
}

// WorkflowActionResponse — действие workflow из API.
type WorkflowActionResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	Pending        bool   `json:"pending"`
	Retries        int    `json:"retries"`
	ExternalID     string `json:"external_id,omitempty"`
	ExternalStatus string `json:"external_status,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// CoordActionResponse — действие координатора из API.
type CoordActionResponse struct {
	ID                  string `json:"id"`
	Number              int    `json:"number"`
	Status              string `json:"status"`
	NominalTime         string `json:"nominal_time"`
	MissingDependencies string `json:"missing_dependencies,omitempty"`
	ExternalID          string `json:"external_id,omitempty"`
	Pending             int    `json:"pending"`
}

// BundleActionResponse — координатор bundle из API.
type BundleActionResponse struct {
	CoordName  string `json:"coord_name"`
	CoordJobID string `json:"coord_job_id,omitempty"`
	Status     string `json:"status"`
	Pending    int    `json:"pending"`
}

// JobInfoResponse — job с действиями.
type JobInfoResponse struct {
	Type            string                   `json:"type"`
	Workflow        *JobResponse             `json:"workflow,omitempty"`
	WorkflowActions []WorkflowActionResponse `json:"workflow_actions,omitempty"`
	Coordinator     *JobResponse             `json:"coordinator,omitempty"`
	CoordActions    []CoordActionResponse    `json:"coord_actions,omitempty"`
	Bundle          *JobResponse             `json:"bundle,omitempty"`
}

// Job возвращает сам job независимо от типа.
func (i *JobInfoResponse) Job() *JobResponse {
	switch {
	case i.Workflow != nil:
		return i.Workflow
	case i.Coordinator != nil:
		return i.Coordinator
	default:
		return i.Bundle
	}
}

// JobListResponse — страница job.
type JobListResponse struct {
	Workflows    []JobResponse `json:"workflows,omitempty"`
	Coordinators []JobResponse `json:"coordinators,omitempty"`
	Bundles      []JobResponse `json:"bundles,omitempty"`
}

// All возвращает job страницы одним списком.
func (l JobListResponse) All() []JobResponse {
	all := append([]JobResponse{}, l.Workflows...)
	all = append(all, l.Coordinators...)
	return append(all, l.Bundles...)
}

// SubmitResponse — результат отправки job.
type SubmitResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Started bool   `json:"started"`
}

// ModeResponse — режим системы.
type ModeResponse struct {
	Mode     string `json:"mode"`
	Previous string `json:"previous,omitempty"`
}

// QueueResponse — дамп очереди.
type QueueResponse struct {
	Size   int            `json:"size"`
	Items  []string       `json:"items"`
	Active map[string]int `json:"active"`
}

// ListJobsOpts — параметры фильтрации job.
type ListJobsOpts struct {
	Type   string
	Status string
	Limit  int
	Offset int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API координатора.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Jobs ---

// Submit отправляет определение job. def — JSON-совместимый документ
// с ключом workflow, coordinator или bundle.
func (c *Client) Submit(def map[string]any, start bool) (*SubmitResponse, error) {
	body := make(map[string]any, len(def)+1)
	for k, v := range def {
		body[k] = v
	}
	body["start"] = start

	var resp SubmitResponse
	err := c.post("/api/v1/jobs", body, &resp)
	return &resp, err
}

// ListJobs возвращает job по фильтру.
func (c *Client) ListJobs(opts ListJobsOpts) (*JobListResponse, error) {
	params := url.Values{}
	if opts.Type != "" {
		params.Set("type", opts.Type)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var list JobListResponse
	err := c.list("/api/v1/jobs", params, &list)
	return &list, err
}

// GetJob возвращает job с действиями.
func (c *Client) GetJob(id string) (*JobInfoResponse, error) {
	var info JobInfoResponse
	err := c.get("/api/v1/jobs/"+url.PathEscape(id), &info)
	return &info, err
}

// JobAction выполняет start, suspend, resume или kill.
func (c *Client) JobAction(id, action string) error {
	return c.post("/api/v1/jobs/"+url.PathEscape(id)+"/"+action, nil, nil)
}

// --- Admin ---

// GetMode возвращает режим системы.
func (c *Client) GetMode() (*ModeResponse, error) {
	var mode ModeResponse
	err := c.get("/api/v1/admin/mode", &mode)
	return &mode, err
}

// SetMode меняет режим системы.
func (c *Client) SetMode(mode string) (*ModeResponse, error) {
	var resp ModeResponse
	err := c.put("/api/v1/admin/mode", map[string]string{"mode": mode}, &resp)
	return &resp, err
}

// GetQueue возвращает дамп очереди.
func (c *Client) GetQueue() (*QueueResponse, error) {
	var q QueueResponse
	err := c.get("/api/v1/admin/queue", &q)
	return &q, err
}

// ListExecutors возвращает типы действий workflow.
func (c *Client) ListExecutors() ([]string, error) {
	var types []string
	err := c.list("/api/v1/admin/executors", nil, &types)
	return types, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
