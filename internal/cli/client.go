package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TemplateResponse: шаблон из API.
type TemplateResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	Version   int              `json:"version"`
	Steps     []map[string]any `json:"steps"`
	UpdatedAt string           `json:"updated_at"`
}

// InvokeResponse: принятый запуск run.
type InvokeResponse struct {
	RunID string `json:"run_id"`
}

// StepResponse: шаг run из API.
type StepResponse struct {
	StepID    string `json:"step_id"`
	Position  int    `json:"position"`
	Ref       string `json:"ref,omitempty"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	Updated   string `json:"updated"`
}

// RunResponse: run из API.
type RunResponse struct {
	ID               string         `json:"id"`
	TemplateID       string         `json:"template_id,omitempty"`
	Status           string         `json:"status"`
	Source           []string       `json:"source,omitempty"`
	CancelationToken string         `json:"cancelation_token,omitempty"`
	Context          map[string]any `json:"context,omitempty"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        string         `json:"created_at"`
	FinishedAt       string         `json:"finished_at,omitempty"`
	Steps            []StepResponse `json:"steps"`
}

// ScheduleResponse: schedule из API.
type ScheduleResponse struct {
	ID         string         `json:"id"`
	Scope      string         `json:"scope,omitempty"`
	Rule       string         `json:"rule"`
	TemplateID string         `json:"template_id"`
	Enabled    bool           `json:"enabled"`
	NextRunAt  string         `json:"next_run_at,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// --- Request types ---

// InvokeRequest: запуск run по шаблону.
type InvokeRequest struct {
	RunID            string         `json:"run_id,omitempty"`
	Scope            string         `json:"scope,omitempty"`
	CancelationToken string         `json:"cancelation_token,omitempty"`
	Context          map[string]any `json:"context,omitempty"`
}

// EventRequest: внешнее событие для ref.
type EventRequest struct {
	EventID string         `json:"event_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// CreateScheduleRequest: создание schedule.
type CreateScheduleRequest struct {
	ID         string         `json:"id"`
	Scope      string         `json:"scope,omitempty"`
	Rule       string         `json:"rule"`
	TemplateID string         `json:"template_id"`
	Data       map[string]any `json:"data,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client: HTTP-клиент для Relay API.
type Client struct {
	http *resty.Client
}

// NewClient создаёт клиент для API. tenant передаётся в X-Tenant-ID.
func NewClient(baseURL, tenant string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	if tenant != "" {
		c.SetHeader("X-Tenant-ID", tenant)
	}
	return &Client{http: c}
}

// --- Templates ---

// ApplyTemplate публикует шаблон из YAML.
func (c *Client) ApplyTemplate(yamlBody []byte) (*TemplateResponse, error) {
	var tmpl TemplateResponse
	req := c.http.R().
		SetHeader("Content-Type", "application/yaml").
		SetBody(yamlBody)
	err := c.doData(req, "POST", "/api/v1/templates", &tmpl)
	return &tmpl, err
}

// GetTemplate возвращает шаблон по ID.
func (c *Client) GetTemplate(id string) (*TemplateResponse, error) {
	var tmpl TemplateResponse
	err := c.doData(c.http.R(), "GET", "/api/v1/templates/"+id, &tmpl)
	return &tmpl, err
}

// InvokeTemplate запускает run по шаблону.
func (c *Client) InvokeTemplate(id string, req InvokeRequest) (*InvokeResponse, error) {
	var resp InvokeResponse
	err := c.doData(c.http.R().SetBody(req), "POST", "/api/v1/templates/"+id+"/runs", &resp)
	return &resp, err
}

// --- Runs ---

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.doData(c.http.R(), "GET", "/api/v1/runs/"+id, &run)
	return &run, err
}

// CancelRuns отменяет runs по токену.
func (c *Client) CancelRuns(token string) error {
	body := map[string]string{"token": token}
	return c.doData(c.http.R().SetBody(body), "POST", "/api/v1/runs/cancel", nil)
}

// SendEvent передаёт событие шагу с ref.
func (c *Client) SendEvent(ref string, req EventRequest) error {
	return c.doData(c.http.R().SetBody(req), "POST", "/api/v1/events/"+ref, nil)
}

// --- Schedules ---

// CreateSchedule создаёт schedule.
func (c *Client) CreateSchedule(req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.doData(c.http.R().SetBody(req), "POST", "/api/v1/schedules", &schedule)
	return &schedule, err
}

// SetScheduleEnabled включает или выключает schedule.
func (c *Client) SetScheduleEnabled(id string, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.doData(c.http.R().SetBody(body), "PUT", "/api/v1/schedules/"+id+"/enabled", nil)
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.doData(c.http.R(), "DELETE", "/api/v1/schedules/"+id, nil)
}

// --- HTTP helpers ---

func (c *Client) doData(req *resty.Request, method, path string, result any) error {
	resp, err := req.SetError(&errorResponse{}).Execute(method, path)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}

	if resp.IsError() {
		if er, ok := resp.Error().(*errorResponse); ok && er.Error.Code != "" {
			return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
		}
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode())
	}

	// 204 No Content
	if result == nil || len(resp.Body()) == 0 {
		return nil
	}

	var dr dataResponse
	if err := json.Unmarshal(resp.Body(), &dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}
