package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/condmatlab/gateman/internal/model"
)

// HTTPClient implements GatemanClient using the daemon's HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:7667"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Gates ---

func (c *HTTPClient) ListGates(ctx context.Context) ([]*model.Gate, error) {
	var resp struct {
		Gates []*model.Gate `json:"gates"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/gates", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Gates, nil
}

func (c *HTTPClient) GetGate(ctx context.Context, id string) (*model.Gate, error) {
	var gate model.Gate
	if err := c.doJSON(ctx, http.MethodGet, "/v1/gates/"+url.PathEscape(id), nil, &gate); err != nil {
		return nil, err
	}
	return &gate, nil
}

func (c *HTTPClient) GetVoltage(ctx context.Context, id string) (float64, error) {
	var resp struct {
		Volts float64 `json:"volts"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/gates/"+url.PathEscape(id)+"/voltage", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Volts, nil
}

// SetVoltage sets a gate voltage and returns the applied value in base volts.
func (c *HTTPClient) SetVoltage(ctx context.Context, id string, req *SetVoltageRequest) (float64, error) {
	var resp struct {
		Volts float64 `json:"volts"`
	}
	if err := c.doJSON(ctx, http.MethodPut, "/v1/gates/"+url.PathEscape(id)+"/voltage", req, &resp); err != nil {
		return 0, err
	}
	return resp.Volts, nil
}

// ReadCurrent reads the measured current in microamps. amplification zero
// uses the daemon's configured gain.
func (c *HTTPClient) ReadCurrent(ctx context.Context, id string, amplification float64) (float64, error) {
	path := "/v1/gates/" + url.PathEscape(id) + "/current"
	if amplification != 0 {
		path += "?amplification=" + url.QueryEscape(strconv.FormatFloat(amplification, 'g', -1, 64))
	}
	var resp struct {
		Current float64 `json:"current"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Current, nil
}

func (c *HTTPClient) TurnOffGate(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/gates/"+url.PathEscape(id)+"/off", nil, nil)
}

func (c *HTTPClient) TurnOffAll(ctx context.Context) ([]string, error) {
	var resp struct {
		Gates []string `json:"gates"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/gates/off", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Gates, nil
}

// --- Sweeps ---

func (c *HTTPClient) Sweep1D(ctx context.Context, req *Sweep1DRequest) (*model.Run, error) {
	var run model.Run
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sweeps/1d", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *HTTPClient) Sweep2D(ctx context.Context, req *Sweep2DRequest) (*model.Run, error) {
	var run model.Run
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sweeps/2d", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *HTTPClient) SweepTime(ctx context.Context, req *SweepTimeRequest) (*model.Run, error) {
	var run model.Run
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sweeps/time", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// --- Runs ---

func (c *HTTPClient) ListRuns(ctx context.Context, req *ListRunsRequest) (*ListRunsResponse, error) {
	q := url.Values{}
	if len(req.Kind) > 0 {
		q.Set("kind", strings.Join(req.Kind, ","))
	}
	if len(req.State) > 0 {
		q.Set("state", strings.Join(req.State, ","))
	}
	if req.Device != "" {
		q.Set("device", req.Device)
	}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", req.Offset))
	}

	path := "/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListRunsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run
	if err := c.doJSON(ctx, http.MethodGet, "/v1/runs/"+url.PathEscape(id), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *HTTPClient) GetPoints(ctx context.Context, id string) ([]model.Point, error) {
	var resp struct {
		Points []model.Point `json:"points"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/runs/"+url.PathEscape(id)+"/points", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Points, nil
}

func (c *HTTPClient) GetEvents(ctx context.Context, id string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/runs/"+url.PathEscape(id)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Events ---

// StreamEvents opens the daemon's SSE stream and delivers events until the
// context ends or the connection drops, after which the channel is closed.
func (c *HTTPClient) StreamEvents(ctx context.Context, topics []string) (<-chan StreamEvent, error) {
	path := "/v1/events/stream"
	if len(topics) > 0 {
		path += "?topics=" + url.QueryEscape(strings.Join(topics, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	ch := make(chan StreamEvent, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		var evt StreamEvent
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				// Blank line ends one event. Keepalive comments produce
				// empty events; skip those.
				if evt.Topic != "" || len(evt.Data) > 0 {
					select {
					case ch <- evt:
					case <-ctx.Done():
						return
					}
				}
				evt = StreamEvent{}
			case strings.HasPrefix(line, "id:"):
				evt.ID = strings.TrimPrefix(line, "id:")
			case strings.HasPrefix(line, "event:"):
				evt.Topic = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:"):
				evt.Data = []byte(strings.TrimPrefix(line, "data:"))
			}
		}
	}()
	return ch, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for 204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content — success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
