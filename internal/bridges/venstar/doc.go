// Package venstar connects Venstar Explorer Mini thermostats to the Gray
// Logic bus.
//
// Each configured thermostat gets a Controller that owns its normalized
// state. The controller polls GET /query/info on a fixed interval and runs
// commands through a fetch, translate, write and confirm cycle. Poll cycles
// and command cycles on one device never overlap.
//
// The Bridge wires the controllers to the rest of the system:
//
//	graylogic/command/venstar/{id}  commands from Core
//	graylogic/ack/venstar/{id}      accepted, then completed or failed
//	graylogic/state/venstar/{id}    retained state, published on change
//	graylogic/health/venstar        retained bridge health
//
// State changes also reach history, telemetry, metrics and any listeners
// registered with AddListener (the API WebSocket hub and HomeKit).
package venstar
