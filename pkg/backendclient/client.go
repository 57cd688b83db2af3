package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hydrochat/hydrochat/pkg/masking"
)

// Metrics is the subset of the Metrics & Stats component (C9) the tool
// client reports into. Defined here, not imported from pkg/metrics, to
// keep the dependency direction pointing away from the domain graph.
type Metrics interface {
	ToolRequest(method string)
	ToolRetry(method string)
	ToolSuccess(method string)
	Tool4xx(method string)
	Tool5xx(method string)
	ToolTransportFailure(method string)
	ToolDuration(method string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ToolRequest(string)             {}
func (noopMetrics) ToolRetry(string)               {}
func (noopMetrics) ToolSuccess(string)             {}
func (noopMetrics) Tool4xx(string)                 {}
func (noopMetrics) Tool5xx(string)                 {}
func (noopMetrics) ToolTransportFailure(string)    {}
func (noopMetrics) ToolDuration(string, time.Duration) {}

// Client is the typed backend HTTP tool layer (spec 4.2). It is safe for
// concurrent use; it carries no per-conversation state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	metrics    Metrics
}

// New creates a Client. baseURL is joined to each request path, which starts
// with a slash, by plain concatenation; a trailing slash on baseURL is not
// stripped. metrics may be nil,
// in which case calls are counted nowhere.
func New(baseURL, token string, metrics Metrics) *Client {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		token:      token,
		metrics:    metrics,
	}
}

// CreatePatient issues POST /patients/. fields are the raw slot values
// collected by the conversation graph.
func (c *Client) CreatePatient(ctx context.Context, fields map[string]string) Result {
	body, _ := json.Marshal(fields)
	r := c.do(ctx, http.MethodPost, "/patients/", body)
	if r.Outcome != Ok {
		return r
	}
	var p Patient
	if err := decodeInto(r.Payload, &p); err != nil {
		return serverErrorResult(fmt.Errorf("decode patient: %w", err))
	}
	return okResult(&p)
}

// ListPatients issues GET /patients/.
func (c *Client) ListPatients(ctx context.Context) Result {
	r := c.do(ctx, http.MethodGet, "/patients/", nil)
	if r.Outcome != Ok {
		return r
	}
	var patients []Patient
	if err := decodeInto(r.Payload, &patients); err != nil {
		return serverErrorResult(fmt.Errorf("decode patient list: %w", err))
	}
	return okResult(patients)
}

// GetPatient issues GET /patients/{id}/.
func (c *Client) GetPatient(ctx context.Context, id int64) Result {
	r := c.do(ctx, http.MethodGet, fmt.Sprintf("/patients/%d/", id), nil)
	if r.Outcome != Ok {
		return r
	}
	var p Patient
	if err := decodeInto(r.Payload, &p); err != nil {
		return serverErrorResult(fmt.Errorf("decode patient: %w", err))
	}
	return okResult(&p)
}

// UpdatePatient performs the GET-merge-PUT sequence described in spec 4.2:
// fetch the current record, overlay caller-supplied fields, PUT the merged
// body. On a 4xx validation failure of the PUT, the merged fields are
// returned in Result.Fields-adjacent form via the payload so the graph can
// reflect them back to the user.
func (c *Client) UpdatePatient(ctx context.Context, id int64, fields map[string]string) Result {
	current := c.GetPatient(ctx, id)
	if current.Outcome != Ok {
		return current
	}
	patient := current.Payload.(*Patient)
	merged := mergeFields(patient, fields)

	body, _ := json.Marshal(merged)
	r := c.do(ctx, http.MethodPut, fmt.Sprintf("/patients/%d/", id), body)
	if r.Outcome == ValidationFailed {
		return Result{Outcome: ValidationFailed, Fields: r.Fields, Payload: merged}
	}
	if r.Outcome != Ok {
		return r
	}
	var p Patient
	if err := decodeInto(r.Payload, &p); err != nil {
		return serverErrorResult(fmt.Errorf("decode patient: %w", err))
	}
	return okResult(&p)
}

// DeletePatient issues DELETE /patients/{id}/.
func (c *Client) DeletePatient(ctx context.Context, id int64) Result {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/patients/%d/", id), nil)
}

// ListScans issues GET /scans/?patient={id}&limit={n}. Either filter may be
// nil to omit it from the query string.
func (c *Client) ListScans(ctx context.Context, patientID *int64, limit *int) Result {
	q := url.Values{}
	if patientID != nil {
		q.Set("patient", strconv.FormatInt(*patientID, 10))
	}
	if limit != nil {
		q.Set("limit", strconv.Itoa(*limit))
	}
	path := "/scans/"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	r := c.do(ctx, http.MethodGet, path, nil)
	if r.Outcome != Ok {
		return r
	}
	var scans []ScanRecord
	if err := decodeInto(r.Payload, &scans); err != nil {
		return serverErrorResult(fmt.Errorf("decode scan list: %w", err))
	}
	return okResult(scans)
}

// mergeFields overlays caller-supplied fields onto the current patient's
// JSON-shaped representation, returning a map ready to marshal as the PUT
// body.
func mergeFields(current *Patient, fields map[string]string) map[string]string {
	merged := map[string]string{
		"first_name":    current.FirstName,
		"last_name":     current.LastName,
		"national_id":   current.NationalID,
		"contact":       current.Contact,
		"date_of_birth": current.DateOfBirth,
		"details":       current.Details,
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

func decodeInto(payload any, target any) error {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = b
	}
	return json.Unmarshal(raw, target)
}

// do executes one logical operation against the backend, retrying per the
// policy in spec 4.2, and classifies the terminal outcome into a Result.
// The bearer token is attached to every attempt and never logged.
func (c *Client) do(ctx context.Context, method, path string, body []byte) Result {
	c.metrics.ToolRequest(method)
	start := time.Now()
	defer func() { c.metrics.ToolDuration(method, time.Since(start)) }()

	totalCtx, cancel := context.WithTimeout(ctx, totalDeadline)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffFor(attempt)):
			case <-totalCtx.Done():
				return transportResult(false, totalCtx.Err())
			}
			c.metrics.ToolRetry(method)
			masking.LogTool("", "backendclient", "retrying backend call", "method", method, "path", path, "attempt", attempt)
		}

		attemptCtx, attemptCancel := context.WithTimeout(totalCtx, perAttemptDeadline)
		result, responseStarted, err := c.attempt(attemptCtx, method, path, body)
		attemptCancel()

		if err == nil {
			c.metrics.ToolSuccess(method)
			return result
		}
		lastErr = err

		var statusErr *retryableStatusError
		isStatusErr := errors.As(err, &statusErr)
		retryable := (isStatusErr || isTransportError(err)) && (idempotent(method) || (method == http.MethodPost && !responseStarted))
		if !retryable || attempt == maxRetries {
			r := c.terminalErrorResult(method, err)
			if r.Outcome == TransportError {
				r.Retryable = retryable
			}
			return r
		}
	}
	return c.terminalErrorResult(method, lastErr)
}

// terminalErrorResult classifies an error that survived the retry loop (or
// was never retryable) into its terminal Result: a retryable-status error
// that exhausted its attempts is a ServerError (spec 4.2's "retried 5xx
// survived all attempts" case, types.go), never a TransportError.
func (c *Client) terminalErrorResult(method string, err error) Result {
	var statusErr *retryableStatusError
	if errors.As(err, &statusErr) {
		c.metrics.Tool5xx(method)
		return serverErrorResult(err)
	}
	c.metrics.ToolTransportFailure(method)
	return transportResult(false, err)
}

// attempt performs exactly one HTTP round trip. responseStarted is true once
// any response bytes (even a non-2xx status line) have been received, which
// governs whether a POST may be retried.
func (c *Client) attempt(ctx context.Context, method, path string, body []byte) (Result, bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Result{}, false, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, false, err
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return Result{}, true, readErr
	}

	if retryableStatus(resp.StatusCode) {
		return Result{}, true, &retryableStatusError{status: resp.StatusCode}
	}

	return c.classify(resp.StatusCode, method, respBody), true, nil
}

// classify turns a completed HTTP response into a terminal Result.
func (c *Client) classify(status int, method string, body []byte) Result {
	switch {
	case status >= 200 && status < 300:
		if len(body) == 0 {
			return okResult(nil)
		}
		return okResult(json.RawMessage(body))
	case status == http.StatusBadRequest:
		var fields map[string][]string
		if err := json.Unmarshal(body, &fields); err != nil {
			c.metrics.Tool4xx(method)
			return serverErrorResult(fmt.Errorf("decode validation error: %w", err))
		}
		c.metrics.Tool4xx(method)
		return validationResult(fields)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		c.metrics.Tool4xx(method)
		return serverErrorResult(fmt.Errorf("backend auth failure: status %d", status))
	case status == http.StatusNotFound:
		c.metrics.Tool4xx(method)
		return notFoundResult()
	case status == http.StatusConflict:
		c.metrics.Tool4xx(method)
		return conflictResult()
	case status >= 400 && status < 500:
		c.metrics.Tool4xx(method)
		return serverErrorResult(fmt.Errorf("backend returned status %d", status))
	default:
		c.metrics.Tool5xx(method)
		return serverErrorResult(fmt.Errorf("backend returned status %d", status))
	}
}
