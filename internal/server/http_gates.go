package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/condmatlab/gateman/internal/events"
	"github.com/condmatlab/gateman/internal/gate"
	"github.com/condmatlab/gateman/internal/model"
)

// handleListGates handles GET /v1/gates.
func (s *GatemanServer) handleListGates(w http.ResponseWriter, _ *http.Request) {
	gates := make([]*model.Gate, 0, len(s.order))
	for _, id := range s.order {
		gates = append(gates, s.gates[id].Meta())
	}
	writeJSON(w, http.StatusOK, map[string]any{"gates": gates})
}

// handleGetGate handles GET /v1/gates/{id}.
func (s *GatemanServer) handleGetGate(w http.ResponseWriter, r *http.Request) {
	g, err := s.lookupGate(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g.Meta())
}

// handleGetVoltage handles GET /v1/gates/{id}/voltage.
func (s *GatemanServer) handleGetVoltage(w http.ResponseWriter, r *http.Request) {
	g, err := s.lookupGate(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	v, err := g.Voltage(r.Context())
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gate": g.Meta().ID, "volts": v})
}

// setVoltageRequest is the body of PUT /v1/gates/{id}/voltage.
type setVoltageRequest struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`  // defaults to "V"
	Wait  *bool   `json:"wait,omitempty"`  // defaults to true: block until settled
	Actor string  `json:"actor,omitempty"` // recorded on the gate.set event
}

// handleSetVoltage handles PUT /v1/gates/{id}/voltage.
func (s *GatemanServer) handleSetVoltage(w http.ResponseWriter, r *http.Request) {
	g, err := s.lookupGate(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req setVoltageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	unit := req.Unit
	if unit == "" {
		unit = "V"
	}
	volts, err := model.ToVolts(req.Value, unit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if req.Wait == nil || *req.Wait {
		err = g.Set(ctx, volts)
	} else {
		err = g.SetNoWait(ctx, volts)
	}
	if err != nil {
		writeOpError(w, err)
		return
	}

	s.recordAndPublish(ctx, events.TopicGateSet, "", req.Actor, events.GateSet{
		Gate:  g.Meta().ID,
		Volts: volts,
		Actor: req.Actor,
	})
	writeJSON(w, http.StatusOK, map[string]any{"gate": g.Meta().ID, "volts": volts})
}

// handleReadCurrent handles GET /v1/gates/{id}/current. The optional
// amplification query parameter overrides the sweeper's transimpedance gain.
func (s *GatemanServer) handleReadCurrent(w http.ResponseWriter, r *http.Request) {
	g, err := s.lookupGate(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	amplification := s.sweeper.Amplification
	if q := r.URL.Query().Get("amplification"); q != "" {
		amplification, err = strconv.ParseFloat(q, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid amplification: "+err.Error())
			return
		}
	}

	current, err := g.ReadCurrent(r.Context(), amplification)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gate":    g.Meta().ID,
		"current": current,
		"unit":    "uA",
	})
}

// handleTurnOffGate handles POST /v1/gates/{id}/off.
func (s *GatemanServer) handleTurnOffGate(w http.ResponseWriter, r *http.Request) {
	g, err := s.lookupGate(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	ctx := r.Context()
	if err := g.TurnOff(ctx); err != nil {
		writeOpError(w, err)
		return
	}
	s.recordAndPublish(ctx, events.TopicGateSet, "", "", events.GateSet{
		Gate: g.Meta().ID, Volts: 0,
	})
	writeJSON(w, http.StatusOK, map[string]any{"gate": g.Meta().ID, "volts": 0.0})
}

// handleTurnOffAll handles POST /v1/gates/off: ramp every writable gate to
// zero volts.
func (s *GatemanServer) handleTurnOffAll(w http.ResponseWriter, r *http.Request) {
	var outputs []*gate.Gate
	var ids []string
	for _, id := range s.order {
		g := s.gates[id]
		if g.Meta().Writable() {
			outputs = append(outputs, g)
			ids = append(ids, id)
		}
	}
	if len(outputs) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"gates": []string{}})
		return
	}

	ctx := r.Context()
	if err := gate.NewGroup(outputs...).TurnOff(ctx); err != nil {
		writeOpError(w, err)
		return
	}
	for _, id := range ids {
		s.recordAndPublish(ctx, events.TopicGateSet, "", "", events.GateSet{Gate: id, Volts: 0})
	}
	writeJSON(w, http.StatusOK, map[string]any{"gates": ids})
}
