package venstar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

// MQTT message types exchanged between Gray Logic Core and the Venstar bridge.

// Protocol is the protocol identifier carried in every message.
const Protocol = "venstar"

// CommandMessage is sent from Core to the bridge to change a thermostat.
// Topic: graylogic/command/venstar/{device_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the thermostat identifier.
	DeviceID string `json:"device_id"`

	// Command is the command name (e.g., "set_mode", "set_target_temperature").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"mode": "heat"} for set_mode
	//   {"temperature": 21.5} for set_target_temperature
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("api", "automation", "homekit").
	Source string `json:"source"`

	// UserID is the user who triggered the command (if applicable).
	UserID string `json:"user_id,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was received and queued on the controller.
	AckAccepted AckStatus = "accepted"

	// AckCompleted indicates the command ran and the device state was confirmed.
	AckCompleted AckStatus = "completed"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the device did not respond within the timeout.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from the bridge to Core to acknowledge a command.
// Topic: graylogic/ack/venstar/{device_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`

	// Address is the controller base URL.
	Address string `json:"address"`

	// State is the confirmed state after a completed command.
	State *thermostat.State `json:"state,omitempty"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeUnsupportedInMode = "UNSUPPORTED_IN_MODE"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// ErrorCode maps a command error to its ack error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownDevice):
		return ErrCodeNotConfigured
	case errors.Is(err, thermostat.ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, thermostat.ErrUnsupportedInMode):
		return ErrCodeUnsupportedInMode
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, thermostat.ErrNetwork):
		return ErrCodeDeviceUnreachable
	case errors.Is(err, thermostat.ErrMalformedSnapshot), errors.Is(err, ErrWriteRejected):
		return ErrCodeProtocolError
	default:
		return ErrCodeBridgeError
	}
}

// StateMessage is sent from the bridge to Core when a thermostat's state changes.
// Topic: graylogic/state/venstar/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string           `json:"device_id"`
	Timestamp time.Time        `json:"timestamp"`
	State     thermostat.State `json:"state"`
	Protocol  string           `json:"protocol"`
	Address   string           `json:"address"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: graylogic/health/venstar
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge         string         `json:"bridge"`
	Timestamp      time.Time      `json:"timestamp"`
	Status         HealthStatus   `json:"status"`
	Version        string         `json:"version"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	DevicesManaged int            `json:"devices_managed"`
	Devices        []DeviceHealth `json:"devices,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

// DeviceHealth is the per-thermostat part of a health message.
type DeviceHealth struct {
	DeviceID            string     `json:"device_id"`
	Reachable           bool       `json:"reachable"`
	LastPoll            *time.Time `json:"last_poll,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
}

// MarshalJSON marshals a CommandMessage to JSON.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON unmarshals a CommandMessage from JSON.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus, address string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, address, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, status, address)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage creates a state message for a thermostat.
func NewStateMessage(deviceID, address string, state thermostat.State) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, devices []DeviceHealth, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		DevicesManaged: len(devices),
		Devices:        devices,
	}
}
