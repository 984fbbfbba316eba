package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPSender отправляет сообщения в delivery-сервис по HTTP.
//
// Повторные попытки на 5xx и сетевые ошибки выполняет resty.
// Заголовок Idempotency-Key позволяет сервису отбросить дубликаты.
type HTTPSender struct {
	client *resty.Client
	path   string
	logger *slog.Logger
}

// HTTPSenderConfig: конфигурация HTTPSender.
type HTTPSenderConfig struct {
	BaseURL    string
	Path       string        // default: /v1/send
	Timeout    time.Duration // default: 10s
	MaxRetries int           // default: 0
	RetryWait  time.Duration // default: 200ms
	Logger     *slog.Logger
}

// NewHTTPSender создаёт новый HTTPSender.
func NewHTTPSender(cfg HTTPSenderConfig) *HTTPSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = 200 * time.Millisecond
	}
	path := cfg.Path
	if path == "" {
		path = "/v1/send"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(retryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &HTTPSender{client: client, path: path, logger: logger}
}

// Send отправляет сообщение.
func (s *HTTPSender) Send(ctx context.Context, msg Message) (Result, error) {
	var result Result
	var apiErr struct {
		Error string `json:"error"`
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", msg.IdempotencyKey).
		SetHeader("X-Tenant-ID", msg.TenantID).
		SetBody(msg).
		SetResult(&result).
		SetError(&apiErr).
		Post(s.path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	result.StatusCode = resp.StatusCode()

	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return result, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	case resp.StatusCode() == http.StatusTooManyRequests:
		return result, fmt.Errorf("%w: rate limited", ErrUnavailable)
	case resp.IsError():
		return result, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode(), apiErr.Error)
	}

	s.logger.Debug("message delivered",
		"run_id", msg.RunID,
		"step_id", msg.StepID,
		"delivery_id", result.ID,
		"status", resp.StatusCode(),
	)
	return result, nil
}
