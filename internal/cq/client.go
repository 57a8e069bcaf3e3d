package cq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is the production ConductorQuantum API endpoint.
const DefaultBaseURL = "https://api.conductorquantum.com"

// Client submits measurement data to platform models.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the platform API. token is the platform
// API key; baseURL empty means DefaultBaseURL.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// ExecuteRequest carries one completed sweep to a model. For 1D and time
// sweeps Y is nil and Data holds one row; for 2D sweeps Data holds one row
// per Y value.
type ExecuteRequest struct {
	X    []float64   `json:"x"`
	Y    []float64   `json:"y,omitempty"`
	Data [][]float64 `json:"data"`
}

// Result is the model's inference output. Fields beyond the classification
// vary per model and are left raw for the caller.
type Result struct {
	Model      string          `json:"model"`
	Prediction string          `json:"prediction,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
}

// APIError is a non-2xx answer from the platform.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("conductorquantum: HTTP %d: %s", e.StatusCode, e.Message)
}

// Execute runs the named model over the supplied data.
func (c *Client) Execute(ctx context.Context, modelName string, req *ExecuteRequest) (*Result, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/models/"+url.PathEscape(modelName)+"/execute", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	return &result, nil
}
