package core

import (
	"context"
	"testing"
	"time"

	"sbomcore/internal/infra/persistence/memory"
)

const (
	docA = "https://example.com/spdx/doc-a"
	docB = "https://example.com/spdx/doc-b"
)

// useDefaultStore installs a fresh memory store as the default store for the
// duration of the test.
func useDefaultStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	if err := InitDefaultStore(store, docA, nil); err != nil {
		t.Fatalf("init default store: %v", err)
	}
	t.Cleanup(ResetDefaultStore)
	return store
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}
