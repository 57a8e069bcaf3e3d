// Package server exposes the gateman daemon's HTTP/JSON API: gate control,
// sweep launching, run queries and a live SSE event stream.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/condmatlab/gateman/internal/events"
	"github.com/condmatlab/gateman/internal/gate"
	"github.com/condmatlab/gateman/internal/idgen"
	"github.com/condmatlab/gateman/internal/model"
	"github.com/condmatlab/gateman/internal/store"
	"github.com/condmatlab/gateman/internal/sweep"
)

// GatemanServer serves the daemon API over one instrument session. Sweeps
// are exclusive: the instrument drives one run at a time.
type GatemanServer struct {
	gates     map[string]*gate.Gate
	order     []string // gate IDs in config order
	sweeper   *sweep.Sweeper
	store     store.Store // nil = run without persistence
	publisher events.Publisher
	sseHub    *sseHub

	runMu     sync.Mutex
	activeRun string // "" when idle
}

// NewGatemanServer returns a server over the configured gates. st may be
// nil when no database is configured; p may be a NoopPublisher.
func NewGatemanServer(gates []*gate.Gate, sw *sweep.Sweeper, st store.Store, p events.Publisher) *GatemanServer {
	s := &GatemanServer{
		gates:     make(map[string]*gate.Gate, len(gates)),
		sweeper:   sw,
		store:     st,
		publisher: p,
		sseHub:    newSSEHub(),
	}
	for _, g := range gates {
		s.gates[g.Meta().ID] = g
		s.order = append(s.order, g.Meta().ID)
	}
	return s
}

// recordAndPublish persists an event to the store and publishes it to NATS.
// Both operations are best-effort; failures are logged but do not block the caller.
func (s *GatemanServer) recordAndPublish(ctx context.Context, topic, runID, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "run_id", runID, "error", err)
		return
	}
	if s.store != nil {
		if err := s.store.RecordEvent(ctx, &model.Event{
			Topic:   topic,
			RunID:   runID,
			Actor:   actor,
			Payload: payload,
		}); err != nil {
			slog.Warn("failed to record event", "topic", topic, "run_id", runID, "error", err)
		}
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "run_id", runID, "error", err)
	}
	s.broadcastEvent(topic, event)
}

// inputError indicates invalid user input.
// The HTTP layer maps this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// lookupGate resolves a gate by ID.
func (s *GatemanServer) lookupGate(id string) (*gate.Gate, error) {
	g, ok := s.gates[id]
	if !ok {
		return nil, inputError("unknown gate " + id)
	}
	return g, nil
}

// resolveGroup resolves a list of gate IDs into a group, requiring every
// gate to be writable.
func (s *GatemanServer) resolveGroup(ids []string) (*gate.Group, error) {
	if len(ids) == 0 {
		return nil, inputError("at least one gate is required")
	}
	gs := make([]*gate.Gate, 0, len(ids))
	for _, id := range ids {
		g, err := s.lookupGate(id)
		if err != nil {
			return nil, err
		}
		if !g.Meta().Writable() {
			return nil, inputError("gate " + id + " is read-only")
		}
		gs = append(gs, g)
	}
	return gate.NewGroup(gs...), nil
}

// acquireRun marks a run as the active sweep, failing when one is already
// in flight.
func (s *GatemanServer) acquireRun(id string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.activeRun != "" {
		return inputError("a sweep is already running: " + s.activeRun)
	}
	s.activeRun = id
	return nil
}

func (s *GatemanServer) releaseRun() {
	s.runMu.Lock()
	s.activeRun = ""
	s.runMu.Unlock()
}

// newRunID generates a run identifier.
func newRunID() string {
	id, err := idgen.Generate()
	if err != nil {
		// nanoid only fails when the system RNG does; nothing sane to do.
		panic(err)
	}
	return id
}
