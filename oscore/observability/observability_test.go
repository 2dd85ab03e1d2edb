package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)
	RegisterMetrics(reg)

	before := counterValue(t, reg, "oscore_messages_unprotected_total", ResultReplay)
	RecordUnprotect(ResultReplay)
	RecordProtect(ResultOK)
	if got := counterValue(t, reg, "oscore_messages_unprotected_total", ResultReplay); got != before+1 {
		t.Fatalf("replay counter %v, want %v", got, before+1)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	if !names["oscore_messages_protected_total"] || !names["oscore_messages_unprotected_total"] {
		t.Fatalf("collectors not registered: %v", names)
	}
}

func TestRegisterMetricsPerRegisterer(t *testing.T) {
	first := prometheus.NewRegistry()
	second := prometheus.NewRegistry()
	RegisterMetrics(first)
	RegisterMetrics(second)

	before := counterValue(t, second, "oscore_messages_protected_total", ResultExhausted)
	RecordProtect(ResultExhausted)
	if got := counterValue(t, second, "oscore_messages_protected_total", ResultExhausted); got != before+1 {
		t.Fatalf("second registry counter %v, want %v", got, before+1)
	}
	if got := counterValue(t, first, "oscore_messages_protected_total", ResultExhausted); got != before+1 {
		t.Fatalf("first registry counter %v, want %v", got, before+1)
	}
}

func TestJSONLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := InitJSONLogger(&buf, "oscore-test", "warn")
	logger.Info().Msg("hidden")
	logger.Warn().Str("op", "unprotect").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info event written at warn level: %s", out)
	}
	if !strings.Contains(out, `"app":"oscore-test"`) || !strings.Contains(out, `"op":"unprotect"`) {
		t.Fatalf("missing fields: %s", out)
	}
}

func TestLoggerDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := InitJSONLogger(&buf, "oscore-test", "bogus")
	logger.Debug().Msg("debug")
	logger.Info().Msg("info")
	if strings.Contains(buf.String(), `"debug"`) || !strings.Contains(buf.String(), `"info"`) {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}
