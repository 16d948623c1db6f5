package venstar

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics()

	m.ObservePoll("hallway", 120*time.Millisecond, nil)
	m.ObservePoll("hallway", time.Second, errors.New("boom"))
	m.ObservePoll("hallway", time.Second, nil)
	m.ObserveCommand("hallway", thermostat.CommandSetFan, time.Second, nil)
	m.ObserveCommand("hallway", thermostat.CommandSetFan, time.Second, thermostat.ErrNetwork)

	if got := testutil.ToFloat64(m.polls.WithLabelValues("hallway", "ok")); got != 2 {
		t.Errorf("polls ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.polls.WithLabelValues("hallway", "error")); got != 1 {
		t.Errorf("polls error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.commands.WithLabelValues("hallway", "set_fan", "error")); got != 1 {
		t.Errorf("commands error = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.pollDuration); got != 1 {
		t.Errorf("poll duration series = %d, want 1", got)
	}
}

func TestMetrics_ObserveState(t *testing.T) {
	m := NewMetrics()
	m.ObserveState("hallway", thermostat.State{
		CurrentTemp:      20.5,
		TargetTemp:       21,
		HeatingThreshold: 20,
		CoolingThreshold: 24,
		Mode:             thermostat.ModeHeat,
		CurrentActivity:  thermostat.ActivityHeating,
		FanOn:            true,
	})

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"current", testutil.ToFloat64(m.currentTemp.WithLabelValues("hallway")), 20.5},
		{"target", testutil.ToFloat64(m.targetTemp.WithLabelValues("hallway")), 21},
		{"mode heat", testutil.ToFloat64(m.mode.WithLabelValues("hallway", "heat")), 1},
		{"mode auto", testutil.ToFloat64(m.mode.WithLabelValues("hallway", "auto")), 0},
		{"activity heating", testutil.ToFloat64(m.activity.WithLabelValues("hallway", "heating")), 1},
		{"fan", testutil.ToFloat64(m.fanOn.WithLabelValues("hallway")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := reg.Register(m); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	m.ObservePoll("hallway", time.Millisecond, nil)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "graylogic_venstar_polls_total" {
			found = true
		}
	}
	if !found {
		t.Error("graylogic_venstar_polls_total not gathered")
	}
}
