package mqtt

import (
	"fmt"
	"strings"
)

// Topic roots shared with the rest of the Gray Logic bus.
//
// Bridge topics use the flat scheme graylogic/{category}/{protocol}/{device_id}.
const (
	// TopicPrefix is the root of every bridge topic.
	TopicPrefix = "graylogic"

	// Protocol is the protocol segment used by this bridge.
	Protocol = "venstar"
)

// Topic categories.
const (
	CategoryState   = "state"
	CategoryCommand = "command"
	CategoryAck     = "ack"
	CategoryHealth  = "health"
)

// Topics builds the topics the Venstar bridge publishes and subscribes to.
//
//	topics := mqtt.Topics{}
//	topics.State("hallway")  // graylogic/state/venstar/hallway
//	topics.AllCommands()     // graylogic/command/venstar/+
type Topics struct{}

// State returns the retained thermostat state topic.
func (Topics) State(deviceID string) string {
	return deviceTopic(CategoryState, deviceID)
}

// Command returns the topic commands for a thermostat arrive on.
func (Topics) Command(deviceID string) string {
	return deviceTopic(CategoryCommand, deviceID)
}

// Ack returns the topic command acknowledgements are published to.
func (Topics) Ack(deviceID string) string {
	return deviceTopic(CategoryAck, deviceID)
}

// Health returns the retained bridge health topic.
//
// Example: graylogic/health/venstar
func (Topics) Health() string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, CategoryHealth, Protocol)
}

// AllCommands matches commands for every thermostat handled by the bridge.
//
// Pattern: graylogic/command/venstar/+
func (Topics) AllCommands() string {
	return deviceTopic(CategoryCommand, "+")
}

// AllStates matches state updates for every thermostat.
//
// Pattern: graylogic/state/venstar/+
func (Topics) AllStates() string {
	return deviceTopic(CategoryState, "+")
}

// ParseDeviceTopic splits a bridge topic into its category and device ID.
// It reports false for topics outside the venstar protocol namespace.
func ParseDeviceTopic(topic string) (category, deviceID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[2] != Protocol || parts[3] == "" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

func deviceTopic(category, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefix, category, Protocol, deviceID)
}
