// Package httprequest provides the builtin outbound HTTP hook.
package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/procflow/procflow/pkg/models"
	"github.com/procflow/procflow/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

type HookFactory struct{}

func NewHookFactory() *HookFactory {
	return &HookFactory{}
}

func (*HookFactory) ID() string {
	return "http_request"
}

func (*HookFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Target URL for the request.",
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method to use",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Headers set on the request.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Raw request body.",
			},
		},
		"required": []string{"url"},
	}
}

func (f *HookFactory) Create(config map[string]any) (protocol.Hook, error) {
	if config == nil {
		config = map[string]any{}
	}

	url, _ := config["url"].(string)
	method, _ := config["method"].(string)
	body, _ := config["body"].(string)

	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string)
	if headersConfig, ok := config["headers"].(map[string]any); ok {
		for k, v := range headersConfig {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	return &Hook{
		method:  strings.ToUpper(method),
		url:     url,
		headers: headers,
		body:    body,
		timeout: defaultTimeout,
	}, nil
}

type Hook struct {
	method  string
	url     string
	headers map[string]string
	body    string
	timeout time.Duration
}

func (h *Hook) Execute(ctx context.Context, scope *models.ExecutionScope) (any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var bodyReader io.Reader
	if h.body != "" {
		bodyReader = strings.NewReader(h.body)
	}

	req, err := http.NewRequestWithContext(reqCtx, h.method, h.url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"url":         h.url,
	}

	var parsed any
	if json.Unmarshal(raw, &parsed) == nil {
		result["body"] = parsed
	} else {
		result["body"] = string(raw)
	}

	if scope.Logger != nil {
		scope.Logger.InfoContext(ctx, "HTTP hook completed", "url", h.url, "status", resp.StatusCode)
	}

	return result, nil
}
