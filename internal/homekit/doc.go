// Package homekit exposes each Venstar thermostat as a HomeKit accessory.
//
// Every thermostat becomes a Thermostat service (with heating and cooling
// thresholds) plus a Fan service behind one HAP bridge accessory. Writes from
// HomeKit go through the bridge's characteristic set path and share the
// controller's write confirmation with MQTT and REST. A rejected write is
// returned to the HomeKit client. Published states are
// mirrored back into the characteristic values.
package homekit
