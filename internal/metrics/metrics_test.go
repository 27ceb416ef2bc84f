package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveStage(StageComplete, time.Second, nil)
	m.CountOutcome("ok")
}

func TestObserveStage(t *testing.T) {
	m := New()
	m.ObserveStage(StageTranscribe, 120*time.Millisecond, nil)
	m.ObserveStage(StageSynthesize, time.Second, errors.New("quota"))
	m.ObserveStage(StageSynthesize, time.Second, errors.New("quota"))

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	counts := map[string]uint64{}
	for _, f := range families {
		if f.GetName() != "autoconnect_stage_duration_seconds" {
			continue
		}
		for _, metric := range f.GetMetric() {
			key := ""
			for _, l := range metric.GetLabel() {
				key += l.GetName() + "=" + l.GetValue() + ","
			}
			counts[key] = metric.GetHistogram().GetSampleCount()
		}
	}

	if counts["stage=transcribe,status=ok,"] != 1 {
		t.Errorf("transcribe ok samples = %d, want 1", counts["stage=transcribe,status=ok,"])
	}
	if counts["stage=synthesis,status=error,"] != 2 {
		t.Errorf("synthesis error samples = %d, want 2", counts["stage=synthesis,status=error,"])
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.CountOutcome("ok")
	m.CountOutcome("ok")
	m.CountOutcome("invalid_audio")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`autoconnect_requests_total{outcome="ok"} 2`,
		`autoconnect_requests_total{outcome="invalid_audio"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}
