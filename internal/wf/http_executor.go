package wf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shaiso/Coordinator/internal/domain"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxBodyInData      = 1024
)

// Внешние статусы синхронных executor'ов.
const (
	ExternalOK      = "OK"
	ExternalError   = "ERROR"
	ExternalRunning = "RUNNING"
	ExternalKilled  = "KILLED"
)

// HTTPExecutor — действие типа "http": синхронный HTTP-запрос в Start.
//
// Config:
//   - method (string): GET по умолчанию
//   - url (string): обязательно
//   - headers (map): заголовки запроса
//   - body (any): тело, сериализуется в JSON
//   - timeout_sec (number): таймаут запроса, 30 по умолчанию
//
// Ошибка соединения — Transient. Код ответа < 400 — OK, иначе ERROR.
// Data: status_code, body (обрезается до 1 КБ).
type HTTPExecutor struct {
	client *http.Client
}

// NewHTTPExecutor создаёт HTTPExecutor (nil — http.DefaultClient).
func NewHTTPExecutor(client *http.Client) *HTTPExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExecutor{client: client}
}

func (e *HTTPExecutor) Type() string { return "http" }

func (e *HTTPExecutor) Start(ctx context.Context, ac *ActionContext) error {
	method := getString(ac.Config, "method", http.MethodGet)
	url := getString(ac.Config, "url", "")
	if url == "" {
		return NewExecutorError(Error, "HTTP_NO_URL", ErrInvalidConfig, "url is required")
	}

	ctx, cancel := context.WithTimeout(ctx, getTimeout(ac.Config))
	defer cancel()

	var bodyReader io.Reader
	if body, ok := ac.Config["body"]; ok && body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return NewExecutorError(Error, "HTTP_BODY", err, "marshal body")
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return NewExecutorError(Error, "HTTP_REQUEST", err, "create request")
	}
	setHeaders(req, ac.Config)
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	ac.Action.ExternalID = method + " " + url

	resp, err := e.client.Do(req)
	if err != nil {
		return NewExecutorError(Transient, "HTTP_CONNECT", err, "request %s", url)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyInData+1))
	if err != nil {
		return NewExecutorError(Transient, "HTTP_READ", err, "read response")
	}

	if ac.Action.Data == nil {
		ac.Action.Data = make(map[string]string)
	}
	ac.Action.Data["status_code"] = strconv.Itoa(resp.StatusCode)
	ac.Action.Data["body"] = truncate(string(respBody), maxBodyInData)

	if resp.StatusCode >= 400 {
		ac.Action.ExternalStatus = ExternalError
	} else {
		ac.Action.ExternalStatus = ExternalOK
	}
	return nil
}

func (e *HTTPExecutor) Check(ctx context.Context, ac *ActionContext) error { return nil }

func (e *HTTPExecutor) End(ctx context.Context, ac *ActionContext) (domain.ActionStatus, error) {
	if ac.Action.ExternalStatus == ExternalOK {
		return domain.ActionOK, nil
	}
	if ac.Action.ErrorCode == "" {
		ac.Action.SetError("HTTP_"+ac.Action.Data["status_code"], truncate(ac.Action.Data["body"], 200))
	}
	return domain.ActionError, nil
}

func (e *HTTPExecutor) Kill(ctx context.Context, ac *ActionContext) error {
	ac.Action.ExternalStatus = ExternalKilled
	return nil
}

func (e *HTTPExecutor) IsCompleted(externalStatus string) bool {
	return externalStatus == ExternalOK || externalStatus == ExternalError
}

func (e *HTTPExecutor) MaxRetries() int              { return 3 }
func (e *HTTPExecutor) RetryInterval() time.Duration { return 10 * time.Second }

// getString извлекает строку из конфигурации.
func getString(m map[string]any, key, defaultVal string) string {
	if val, ok := m[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return defaultVal
}

// getSeconds извлекает длительность в секундах.
func getSeconds(m map[string]any, key string) (time.Duration, bool) {
	switch v := m[key].(type) {
	case float64:
		return time.Duration(v * float64(time.Second)), true
	case int:
		return time.Duration(v) * time.Second, true
	case int64:
		return time.Duration(v) * time.Second, true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second)), true
		}
	}
	return 0, false
}

func getTimeout(config map[string]any) time.Duration {
	if d, ok := getSeconds(config, "timeout_sec"); ok && d > 0 {
		return d
	}
	return defaultHTTPTimeout
}

func setHeaders(req *http.Request, config map[string]any) {
	switch h := config["headers"].(type) {
	case map[string]any:
		for key, val := range h {
			req.Header.Set(key, fmt.Sprint(val))
		}
	case map[string]string:
		for key, val := range h {
			req.Header.Set(key, val)
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
