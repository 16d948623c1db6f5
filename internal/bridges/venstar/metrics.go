package venstar

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics collects poll, command and thermostat state metrics.
// It implements prometheus.Collector and Observer.
type Metrics struct {
	polls        *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	commands     *prometheus.CounterVec

	currentTemp      *prometheus.GaugeVec
	targetTemp       *prometheus.GaugeVec
	heatingThreshold *prometheus.GaugeVec
	coolingThreshold *prometheus.GaugeVec
	mode             *prometheus.GaugeVec
	activity         *prometheus.GaugeVec
	fanOn            *prometheus.GaugeVec
}

// NewMetrics creates an unregistered collector.
func NewMetrics() *Metrics {
	labels := []string{"device_id"}
	return &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graylogic_venstar_polls_total",
			Help: "Poll cycles by result",
		}, []string{"device_id", "result"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graylogic_venstar_poll_duration_seconds",
			Help:    "Duration of poll cycles",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, labels),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graylogic_venstar_commands_total",
			Help: "Command cycles by command and result",
		}, []string{"device_id", "command", "result"}),
		currentTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "graylogic_venstar_current_temperature_celsius",
			Help: "Measured room temperature (celsius)",
		}, labels),
		targetTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "graylogic_venstar_target_temperature_celsius",
			Help: "Target temperature (celsius)",
		}, labels),
		heatingThreshold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "graylogic_venstar_heating_threshold_celsius",
			Help: "AUTO heating threshold (celsius)",
		}, labels),
		coolingThreshold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "graylogic_venstar_cooling_threshold_celsius",
			Help: "AUTO cooling threshold (celsius)",
		}, labels),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "graylogic_venstar_mode",
			Help: "Operating mode (1=active)",
		}, []string{"device_id", "mode"}),
		activity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "graylogic_venstar_activity",
			Help: "Current equipment activity (1=active)",
		}, []string{"device_id", "activity"}),
		fanOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "graylogic_venstar_fan_on",
			Help: "Whether the fan is forced on (1=on, 0=auto)",
		}, labels),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.polls, m.pollDuration, m.commands,
		m.currentTemp, m.targetTemp, m.heatingThreshold, m.coolingThreshold,
		m.mode, m.activity, m.fanOn,
	}
}

// ObservePoll implements Observer.
func (m *Metrics) ObservePoll(deviceID string, duration time.Duration, err error) {
	m.polls.WithLabelValues(deviceID, result(err)).Inc()
	m.pollDuration.WithLabelValues(deviceID).Observe(duration.Seconds())
}

// ObserveCommand implements Observer.
func (m *Metrics) ObserveCommand(deviceID, command string, _ time.Duration, err error) {
	m.commands.WithLabelValues(deviceID, command, result(err)).Inc()
}

// ObserveState updates the state gauges for one thermostat.
func (m *Metrics) ObserveState(deviceID string, s thermostat.State) {
	m.currentTemp.WithLabelValues(deviceID).Set(s.CurrentTemp)
	m.targetTemp.WithLabelValues(deviceID).Set(s.TargetTemp)
	m.heatingThreshold.WithLabelValues(deviceID).Set(s.HeatingThreshold)
	m.coolingThreshold.WithLabelValues(deviceID).Set(s.CoolingThreshold)

	for _, mode := range []thermostat.Mode{thermostat.ModeOff, thermostat.ModeHeat, thermostat.ModeCool, thermostat.ModeAuto} {
		m.mode.WithLabelValues(deviceID, string(mode)).Set(boolGauge(s.Mode == mode))
	}
	for _, a := range []thermostat.Activity{thermostat.ActivityIdle, thermostat.ActivityHeating, thermostat.ActivityCooling} {
		m.activity.WithLabelValues(deviceID, string(a)).Set(boolGauge(s.CurrentActivity == a))
	}
	m.fanOn.WithLabelValues(deviceID).Set(boolGauge(s.FanOn))
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
