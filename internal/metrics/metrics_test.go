package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/loykin/krishid/internal/status"
)

// freshRegistry registers the collectors on a new registry.
func freshRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	regOK.Store(false)
	t.Cleanup(func() { regOK.Store(false) })
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

// sample finds the metric family name and returns the series whose labels
// contain every given pair.
func sample(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue next
				}
			}
			return m
		}
	}
	return nil
}

func TestRegisterTwiceIsNoop(t *testing.T) {
	reg := freshRegistry(t)
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestStartAttemptsByStrategyAndResult(t *testing.T) {
	reg := freshRegistry(t)
	before := 0.0
	if m := sample(t, reg, "krishid_start_attempts_total", map[string]string{"strategy": "trigger", "result": "success"}); m != nil {
		before = m.GetCounter().GetValue()
	}

	IncStartAttempt("management", false)
	IncStartAttempt("trigger", true)
	IncStartAttempt("trigger", true)

	m := sample(t, reg, "krishid_start_attempts_total", map[string]string{"strategy": "trigger", "result": "success"})
	if m == nil {
		t.Fatalf("trigger success series missing")
	}
	if got := m.GetCounter().GetValue() - before; got != 2 {
		t.Fatalf("trigger successes = %v, want 2", got)
	}
	if sample(t, reg, "krishid_start_attempts_total", map[string]string{"strategy": "management", "result": "failure"}) == nil {
		t.Fatalf("management failure series missing")
	}
}

func TestEndpointStatusIsOneHot(t *testing.T) {
	reg := freshRegistry(t)
	SetEndpointStatus(status.Running)
	SetEndpointStatus(status.Stopped)

	for _, st := range status.All() {
		m := sample(t, reg, "krishid_endpoint_status", map[string]string{"status": st.String()})
		if m == nil {
			t.Fatalf("status %s not exported", st)
		}
		want := 0.0
		if st == status.Stopped {
			want = 1
		}
		if v := m.GetGauge().GetValue(); v != want {
			t.Fatalf("status %s = %v, want %v", st, v, want)
		}
	}
}

func TestChecksAndReadyWait(t *testing.T) {
	reg := freshRegistry(t)
	ObserveCheck(status.Error, 3)
	ObserveReadyWait(6)
	IncGuidance("notice")
	SetServiceUsage(12.5, 4096)

	if sample(t, reg, "krishid_probe_checks_total", map[string]string{"result": "error"}) == nil {
		t.Fatalf("error check not counted")
	}
	if m := sample(t, reg, "krishid_start_ready_wait_seconds", nil); m == nil || m.GetHistogram().GetSampleCount() == 0 {
		t.Fatalf("ready wait not observed")
	}
	if sample(t, reg, "krishid_guidance_rendered_total", map[string]string{"kind": "notice"}) == nil {
		t.Fatalf("guidance not counted")
	}
	if m := sample(t, reg, "krishid_service_memory_rss_bytes", nil); m == nil || m.GetGauge().GetValue() != 4096 {
		t.Fatalf("rss gauge not set")
	}
}

func TestHelpersNoopBeforeRegister(t *testing.T) {
	regOK.Store(false)
	ObserveCheck(status.Running, 1)
	IncStartAttempt("handler", true)
	ObserveReadyWait(1)
	SetEndpointStatus(status.Unknown)
	IncGuidance("notice")
	SetServiceUsage(1, 1)
}

func TestConcurrentUpdates(t *testing.T) {
	reg := freshRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ObserveCheck(status.Running, 0.01)
			SetEndpointStatus(status.Running)
		}()
	}
	wg.Wait()
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("gather: %v", err)
	}
}

func TestHandlerExposesDefaultRegistry(t *testing.T) {
	regOK.Store(false)
	t.Cleanup(func() { regOK.Store(false) })
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatal(err)
	}
	IncStartAttempt("handler", false)

	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), `krishid_start_attempts_total{result="failure",strategy="handler"}`) {
		t.Fatalf("attempts series missing from exposition")
	}
}

type failingRegisterer struct{ prometheus.Registerer }

func (failingRegisterer) Register(prometheus.Collector) error { return errors.New("boom") }

func TestRegisterPropagatesError(t *testing.T) {
	regOK.Store(false)
	t.Cleanup(func() { regOK.Store(false) })
	if err := Register(failingRegisterer{}); err == nil || err.Error() != "boom" {
		t.Fatalf("expected registerer error, got %v", err)
	}
	if regOK.Load() {
		t.Fatalf("failed register must leave metrics disabled")
	}
}
