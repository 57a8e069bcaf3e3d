package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/condmatlab/gateman/internal/model"
)

func TestHTTPClient_ImplementsGatemanClient(t *testing.T) {
	var _ GatemanClient = (*HTTPClient)(nil)
}

func TestListGates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/gates" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"gates": []*model.Gate{
				{ID: "t_P1", Role: model.RoleOutput},
				{ID: "drain", Role: model.RoleInput},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	gates, err := c.ListGates(context.Background())
	if err != nil {
		t.Fatalf("ListGates: %v", err)
	}
	if len(gates) != 2 || gates[0].ID != "t_P1" {
		t.Fatalf("unexpected gates: %+v", gates)
	}
}

func TestSetVoltage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/v1/gates/t_P1/voltage" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req SetVoltageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if req.Value != 500 || req.Unit != "mV" {
			t.Errorf("unexpected body: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{"gate": "t_P1", "volts": 0.5})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	volts, err := c.SetVoltage(context.Background(), "t_P1", &SetVoltageRequest{Value: 500, Unit: "mV"})
	if err != nil {
		t.Fatalf("SetVoltage: %v", err)
	}
	if volts != 0.5 {
		t.Fatalf("expected 0.5 V, got %g", volts)
	}
}

func TestReadCurrentAmplification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("amplification"); got != "-1e+06" {
			t.Errorf("expected amplification=-1e+06, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"gate": "drain", "current": 1.25, "unit": "uA"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	cur, err := c.ReadCurrent(context.Background(), "drain", -1e6)
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if cur != 1.25 {
		t.Fatalf("expected 1.25 uA, got %g", cur)
	}
}

func TestSweep1D(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sweeps/1d" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req Sweep1DRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if len(req.Gates) != 1 || req.Gates[0] != "t_P1" || req.Stop != 0.8 {
			t.Errorf("unexpected body: %+v", req)
		}
		if len(req.Initial) != 1 || req.Initial[0].Gate != "t_B1" {
			t.Errorf("unexpected initial state: %+v", req.Initial)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(&model.Run{ID: "run-abc", Kind: model.Kind1D, State: model.RunRunning})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	run, err := c.Sweep1D(context.Background(), &Sweep1DRequest{
		Gates: []string{"t_P1"},
		Start: 0, Stop: 0.8, Step: 0.01,
		SweepCommon: SweepCommon{
			Initial: []InitialVoltage{{Gate: "t_B1", Value: 900, Unit: "mV"}},
		},
	})
	if err != nil {
		t.Fatalf("Sweep1D: %v", err)
	}
	if run.ID != "run-abc" || run.State != model.RunRunning {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestListRunsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("kind") != "1d,2d" || q.Get("state") != "completed" || q.Get("limit") != "10" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(&ListRunsResponse{
			Runs:  []*model.Run{{ID: "run-1"}},
			Total: 1,
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	resp, err := c.ListRuns(context.Background(), &ListRunsRequest{
		Kind: []string{"1d", "2d"}, State: []string{"completed"}, Limit: 10,
	})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if resp.Total != 1 || resp.Runs[0].ID != "run-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("expected bearer token, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "sekrit")
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "step size must be positive"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.Sweep1D(context.Background(), &Sweep1DRequest{Gates: []string{"t_P1"}})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "step size must be positive" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestGetRunNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "run not found"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.GetRun(context.Background(), "run-missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
}

func TestStreamEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("topics"); got != "gateman.run.*" {
			t.Errorf("expected topics filter, got %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "id:1\nevent:gateman.run.started\ndata:{\"id\":\"run-1\"}\n\n")
		fmt.Fprint(w, ":keepalive\n\n")
		fmt.Fprint(w, "id:2\nevent:gateman.run.completed\ndata:{\"id\":\"run-1\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewHTTPClient(srv.URL, "")
	ch, err := c.StreamEvents(ctx, []string{"gateman.run.*"})
	if err != nil {
		t.Fatalf("StreamEvents: %v", err)
	}

	want := []string{"gateman.run.started", "gateman.run.completed"}
	for i, topic := range want {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed before event %d", i)
			}
			if evt.Topic != topic {
				t.Fatalf("event %d: topic=%q, want %q", i, evt.Topic, topic)
			}
			if !json.Valid(evt.Data) {
				t.Fatalf("event %d: invalid JSON data %q", i, evt.Data)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	// Cancelling the context ends the stream.
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// A buffered event may still arrive; drain until closed.
			for range ch {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestStreamEventsAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "missing authorization header"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.StreamEvents(context.Background(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}
