package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-venstar/internal/bridges/venstar"
	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

// commandTimeout bounds one write plus its confirming poll.
const commandTimeout = 30 * time.Second

// characteristicValue is the wire form of one characteristic.
type characteristicValue struct {
	Name     thermostat.Characteristic `json:"name"`
	Value    any                       `json:"value"`
	Writable bool                      `json:"writable"`
}

// setCharacteristicRequest is the body of PUT .../characteristics/{name}.
type setCharacteristicRequest struct {
	Value any `json:"value"`
}

// commandRequest is the body of POST .../commands.
type commandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
}

// commandResponse is returned once a write has been confirmed.
type commandResponse struct {
	DeviceID string           `json:"device_id"`
	Command  string           `json:"command"`
	Status   string           `json:"status"`
	State    thermostat.State `json:"state"`
}

func (s *Server) handleListThermostats(w http.ResponseWriter, _ *http.Request) {
	devices := s.bridge.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"thermostats": devices,
		"count":       len(devices),
	})
}

func (s *Server) handleGetThermostat(w http.ResponseWriter, r *http.Request) {
	info, err := s.bridge.Device(chi.URLParam(r, "id"))
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleListCharacteristics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.bridge.Device(id); err != nil {
		writeBridgeError(w, err)
		return
	}

	chars := thermostat.Characteristics()
	out := make([]characteristicValue, 0, len(chars))
	for _, c := range chars {
		v, err := s.bridge.Get(id, c)
		if err != nil {
			writeBridgeError(w, err)
			return
		}
		out = append(out, characteristicValue{Name: c, Value: v, Writable: c.Writable()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":       id,
		"characteristics": out,
	})
}

func (s *Server) handleGetCharacteristic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := thermostat.Characteristic(chi.URLParam(r, "name"))

	v, err := s.bridge.Get(id, name)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, characteristicValue{Name: name, Value: v, Writable: name.Writable()})
}

func (s *Server) handleSetCharacteristic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := thermostat.Characteristic(chi.URLParam(r, "name"))

	var req setCharacteristicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	state, err := s.bridge.Set(ctx, id, name, req.Value, venstar.SourceAPI)
	if err != nil {
		writeBridgeError(w, err)
		return
	}

	v, err := state.Value(name)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     name,
		"value":    v,
		"writable": name.Writable(),
		"state":    state,
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.bridge.Device(id); err != nil {
		writeBridgeError(w, err)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cmd, err := thermostat.ParseCommand(req.Command, req.Parameters)
	if err != nil {
		writeBridgeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	state, err := s.bridge.Execute(ctx, id, cmd, venstar.SourceAPI)
	if err != nil {
		writeBridgeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commandResponse{
		DeviceID: id,
		Command:  cmd.Name(),
		Status:   string(venstar.AckCompleted),
		State:    state,
	})
}
