// Package action implements the action executor: it turns a declarative
// Action+Integration pair and caller inputs into a validated, templated,
// retried HTTP call.
//
// Execute never panics or returns a Go error — every failure mode is
// captured inside the ExecutionResult so the chat orchestrator can fold
// it back into the conversation.
package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/internal/secrets"
	"github.com/agentbridge/agentbridge/internal/store"
	"github.com/agentbridge/agentbridge/internal/template"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// requestTimeout bounds every upstream HTTP call.
const requestTimeout = 30 * time.Second

// maxAttempts is the total request budget: the original call plus exactly
// one retry for 5xx responses.
const maxAttempts = 2

// Executor resolves and runs actions against their integrations.
type Executor struct {
	store    store.Store
	resolver *template.Resolver
	client   *http.Client

	// sleep is swapped out in tests to skip the real backoff delay.
	sleep func(time.Duration)
}

// NewExecutor creates an action executor.
func NewExecutor(s store.Store, resolver *template.Resolver) *Executor {
	return &Executor{
		store:    s,
		resolver: resolver,
		client:   &http.Client{Timeout: requestTimeout},
		sleep:    time.Sleep,
	}
}

// Execute runs the action identified by actionID with the given inputs.
func (e *Executor) Execute(ctx context.Context, actionID string, inputs map[string]any) *models.ExecutionResult {
	act, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return &models.ExecutionResult{Success: false, Error: "Action not found"}
	}
	integration, err := e.store.GetIntegration(ctx, act.IntegrationID)
	if err != nil {
		return &models.ExecutionResult{Success: false, Error: "Action not found"}
	}

	if msg := validateInputs(act.Variables, inputs); msg != "" {
		return &models.ExecutionResult{Success: false, Error: msg}
	}

	req, err := e.buildRequest(ctx, act, integration, inputs)
	if err != nil {
		return &models.ExecutionResult{Success: false, Error: err.Error()}
	}

	result := e.executeWithRetry(ctx, req)
	if result.Success {
		result.Request = echoRequest(req)
	}

	log.Info().
		Str("action", act.Name).
		Bool("success", result.Success).
		Int("status", result.Status).
		Msg("Action executed")
	return result
}

// ── Input validation ────────────────────────────────────────

// validateInputs checks every declared variable against the input map.
// Returns a descriptive message on the first violation, "" when valid.
func validateInputs(vars []models.ActionVariable, inputs map[string]any) string {
	for _, v := range vars {
		val, ok := inputs[v.Name]
		if !ok || val == nil {
			return fmt.Sprintf("Missing required input: %s", v.Name)
		}
		if !matchesType(val, v.Type) {
			return fmt.Sprintf("Input %q must be of type %s", v.Name, v.Type)
		}
	}
	return ""
}

// matchesType checks a runtime value against a declared variable type.
// Objects exclude array values; arrays require a literal list.
func matchesType(val any, t models.VariableType) bool {
	switch t {
	case models.VarString:
		_, ok := val.(string)
		return ok
	case models.VarNumber:
		switch val.(type) {
		case float64, float32, int, int64, json.Number:
			return true
		}
		return false
	case models.VarBoolean:
		_, ok := val.(bool)
		return ok
	case models.VarObject:
		_, ok := val.(map[string]any)
		return ok
	case models.VarArray:
		_, ok := val.([]any)
		return ok
	}
	return true
}

// ── Request building ────────────────────────────────────────

// outboundRequest is the fully-resolved HTTP call before execution.
type outboundRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    []byte
}

func (e *Executor) buildRequest(ctx context.Context, act *models.Action, integration *models.Integration, inputs map[string]any) (*outboundRequest, error) {
	urlTmpl := integration.URL
	if act.URLTemplate != "" {
		urlTmpl = act.URLTemplate
	}
	rawURL, err := e.resolver.Render(urlTmpl, inputs)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(integration.DefaultHeaders))
	for k, v := range integration.DefaultHeaders {
		headers[k] = v
	}
	query := make(map[string]string, len(integration.DefaultParams))
	for k, v := range integration.DefaultParams {
		query[k] = v
	}

	for k, tmpl := range act.QueryTemplate {
		rendered, err := e.resolver.Render(tmpl, inputs)
		if err != nil {
			return nil, err
		}
		query[k] = rendered
	}

	if integration.AuthEnabled {
		for _, p := range integration.AuthParams {
			resolved, err := e.resolver.ResolveValue(ctx, p.Value, inputs)
			if err != nil {
				return nil, err
			}
			switch p.Type {
			case models.AuthParamHeader:
				headers[p.Key] = resolved
			case models.AuthParamQuery:
				query[p.Key] = resolved
			}
		}
	}

	method := strings.ToUpper(integration.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body []byte
	if act.BodyTemplate != "" && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch) {
		rendered, err := e.resolver.Render(act.BodyTemplate, inputs)
		if err != nil {
			return nil, err
		}
		body = []byte(rendered)
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	return &outboundRequest{
		Method:  method,
		URL:     rawURL,
		Headers: headers,
		Query:   query,
		Body:    body,
	}, nil
}

// ── Execution with bounded retry ────────────────────────────

// executeWithRetry performs the HTTP call. A response status ≥500 is
// retried exactly once after a 2^attempt-second delay; 4xx responses and
// transport failures fail immediately.
func (e *Executor) executeWithRetry(ctx context.Context, req *outboundRequest) *models.ExecutionResult {
	fullURL := req.URL
	if len(req.Query) > 0 {
		vals := url.Values{}
		for k, v := range req.Query {
			vals.Set(k, v)
		}
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + vals.Encode()
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bytes.NewReader(req.Body))
		if err != nil {
			return &models.ExecutionResult{Success: false, Error: fmt.Sprintf("Invalid request: %v", err)}
		}
		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := e.client.Do(httpReq)
		if err != nil {
			return &models.ExecutionResult{Success: false, Error: fmt.Sprintf("Request failed: %v", err)}
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return &models.ExecutionResult{Success: false, Status: resp.StatusCode, Error: fmt.Sprintf("Read response: %v", err)}
		}

		if resp.StatusCode >= 500 && attempt < maxAttempts {
			delay := time.Duration(1<<attempt) * time.Second
			log.Warn().
				Int("status", resp.StatusCode).
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("url", req.URL).
				Msg("Upstream 5xx, retrying")
			e.sleep(delay)
			continue
		}

		if resp.StatusCode >= 400 {
			return &models.ExecutionResult{
				Success: false,
				Status:  resp.StatusCode,
				Error:   fmt.Sprintf("Request failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 512)),
			}
		}

		return &models.ExecutionResult{
			Success: true,
			Status:  resp.StatusCode,
			Data:    parseBody(respBody),
		}
	}

	// Unreachable: the loop always returns.
	return &models.ExecutionResult{Success: false, Error: "Request failed"}
}

// parseBody decodes the response as JSON when possible, raw text otherwise.
func parseBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var data any
	if err := json.Unmarshal(body, &data); err == nil {
		return data
	}
	return string(body)
}

// echoRequest builds the request echo for a successful result, masking
// any header whose name looks credential-bearing.
func echoRequest(req *outboundRequest) *models.RequestEcho {
	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		if sensitiveHeader(k) {
			headers[k] = secrets.Mask(v)
		} else {
			headers[k] = v
		}
	}

	echo := &models.RequestEcho{
		Method:  req.Method,
		URL:     req.URL,
		Headers: headers,
		Query:   req.Query,
	}
	if len(req.Body) > 0 {
		echo.Body = parseBody(req.Body)
	}
	return echo
}

func sensitiveHeader(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "authorization") ||
		strings.Contains(n, "api-key") ||
		strings.Contains(n, "token")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
