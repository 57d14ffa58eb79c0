package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// WorkflowSummary — краткое описание workflow из API.
type WorkflowSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartMethod string `json:"start_method"`
	Steps       int    `json:"steps"`
	Triggers    int    `json:"triggers"`
}

// WorkflowDetail — полное definition с номером поколения.
type WorkflowDetail struct {
	Generation int            `json:"generation"`
	Definition map[string]any `json:"definition"`
}

// InstanceResponse — инстанс из API.
type InstanceResponse struct {
	ID            string `json:"id"`
	Workflow      string `json:"workflow"`
	Generation    int    `json:"generation"`
	State         string `json:"state"`
	CurrentStepID string `json:"current_step_id,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	ElapsedMs     int64  `json:"elapsed_ms"`
	CreatedAt     string `json:"created_at"`
}

// HistoryEntryResponse — запись журнала из API.
type HistoryEntryResponse struct {
	StepID     string `json:"step_id"`
	State      string `json:"state"`
	Timestamp  string `json:"timestamp"`
	ElapsedMs  int64  `json:"elapsed_ms,omitempty"`
	Error      string `json:"error,omitempty"`
	OutputText string `json:"output_text,omitempty"`
	Payload    any    `json:"payload,omitempty"`
}

// HistoryResponse — инстанс вместе с журналом.
type HistoryResponse struct {
	Instance InstanceResponse       `json:"instance"`
	Entries  []HistoryEntryResponse `json:"entries"`
}

// StatsResponse — live-статистика workflow из API.
type StatsResponse struct {
	InstanceID    string                 `json:"instance_id"`
	Workflow      string                 `json:"workflow"`
	State         string                 `json:"state"`
	CurrentStepID string                 `json:"current_step_id,omitempty"`
	ElapsedMs     int64                  `json:"elapsed_ms"`
	LastError     string                 `json:"last_error,omitempty"`
	Log           []HistoryEntryResponse `json:"log"`
}

// ResumeResponse — результат resume.
type ResumeResponse struct {
	InstanceID string `json:"instance_id"`
}

// ReloadResponse — результат reload манифеста.
type ReloadResponse struct {
	Generation int      `json:"generation"`
	Workflows  []string `json:"workflows"`
}

// --- Request types ---

// StartRequest — запуск/срабатывание/resume с payload.
type StartRequest struct {
	Payload any `json:"payload,omitempty"`
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

// Client — HTTP-клиент для Flowline API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
//
// Таймаут щедрый: fire для persistent_blocking workflow держит
// соединение до завершения инстанса.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// ListWorkflows возвращает workflow активного манифеста.
func (c *Client) ListWorkflows() ([]WorkflowSummary, error) {
	var workflows []WorkflowSummary
	err := c.list("/api/v1/workflows", &workflows)
	return workflows, err
}

// GetWorkflow возвращает полное definition workflow.
func (c *Client) GetWorkflow(name string) (*WorkflowDetail, error) {
	var detail WorkflowDetail
	err := c.get("/api/v1/workflows/"+name, &detail)
	return &detail, err
}

// StartWorkflow запускает workflow с первой точки входа.
func (c *Client) StartWorkflow(name string, payload any) (*InstanceResponse, error) {
	var inst InstanceResponse
	err := c.post("/api/v1/workflows/"+name+"/start", StartRequest{Payload: payload}, &inst)
	return &inst, err
}

// FireTrigger обрабатывает срабатывание конкретного триггера.
func (c *Client) FireTrigger(name, step string, payload any) (*InstanceResponse, error) {
	var inst InstanceResponse
	err := c.post("/api/v1/workflows/"+name+"/triggers/"+step+"/fire", StartRequest{Payload: payload}, &inst)
	return &inst, err
}

// ResumeStep будит приостановленный wait-for-event шаг.
func (c *Client) ResumeStep(name, step string, payload any) (*ResumeResponse, error) {
	var res ResumeResponse
	err := c.post("/api/v1/workflows/"+name+"/steps/"+step+"/resume", StartRequest{Payload: payload}, &res)
	return &res, err
}

// GetStats возвращает live-статистику workflow.
func (c *Client) GetStats(name string) (*StatsResponse, error) {
	var stats StatsResponse
	err := c.get("/api/v1/workflows/"+name+"/stats", &stats)
	return &stats, err
}

// GetHistory возвращает журнал инстанса.
func (c *Client) GetHistory(instanceID string, filtered bool) (*HistoryResponse, error) {
	path := "/api/v1/instances/" + instanceID + "/history"
	if filtered {
		path += "?filtered=1"
	}

	var hist HistoryResponse
	err := c.get(path, &hist)
	return &hist, err
}

// Reload перечитывает манифест на сервере.
func (c *Client) Reload() (*ReloadResponse, error) {
	var res ReloadResponse
	err := c.post("/api/v1/reload", nil, &res)
	return &res, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, result any) error {
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
