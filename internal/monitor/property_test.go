package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestAttemptCapProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("attempts never exceed max and every extra call guides", prop.ForAll(
		func(maxAttempts, calls int) bool {
			cfg := fastConfig()
			cfg.MaxAttempts = maxAttempts
			runner := &fakeRunner{}
			rec := &recordingRenderer{}
			m := New(cfg, WithProber(staticProber(false)), WithChain(runner),
				WithRenderer(rec), WithGuard(NewGuard()))
			for i := 0; i < calls; i++ {
				if m.AttemptStart(context.Background()) {
					return false
				}
			}
			want := calls
			if want > maxAttempts {
				want = maxAttempts
			}
			st := m.Attempts()
			return st.AttemptsMade == want &&
				int(runner.calls.Load()) == want &&
				!st.InProgress &&
				rec.count("guidance") == calls
		},
		gen.IntRange(1, 5),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

func TestWaitUntilReadyProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ready iff the endpoint comes up before the deadline", prop.ForAll(
		func(upAfterSec, timeoutSec int) bool {
			clock := newFakeClock()
			start := clock.Now()
			upAfter := time.Duration(upAfterSec) * time.Second
			timeout := time.Duration(timeoutSec) * time.Second
			prober := &fakeProber{up: func() bool { return clock.Now().Sub(start) >= upAfter }}
			m := New(DefaultConfig(), WithProber(prober), WithClock(clock), WithGuard(NewGuard()))

			ok := m.WaitUntilReady(context.Background(), timeout)
			elapsed := clock.Now().Sub(start)

			// checks land on multiples of the poll interval below the timeout
			firstUp := (upAfter + DefaultPollInterval - 1) / DefaultPollInterval * DefaultPollInterval
			if ok != (firstUp < timeout) {
				return false
			}
			if ok {
				return elapsed == firstUp
			}
			return elapsed >= timeout && elapsed < timeout+DefaultPollInterval
		},
		gen.IntRange(0, 40),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}
