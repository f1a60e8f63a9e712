package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register()
}

func TestTaskTransitions(t *testing.T) {
	TaskTransitions.Reset()
	TaskTransitions.WithLabelValues("Completed").Inc()
	TaskTransitions.WithLabelValues("Completed").Inc()
	TaskTransitions.WithLabelValues("Failed").Inc()

	if got := testutil.ToFloat64(TaskTransitions.WithLabelValues("Completed")); got != 2 {
		t.Errorf("Completed transitions = %v, want 2", got)
	}

	expected := `
# HELP manhua_task_transitions_total Count of task state transitions by target state.
# TYPE manhua_task_transitions_total counter
manhua_task_transitions_total{state="Completed"} 2
manhua_task_transitions_total{state="Failed"} 1
`
	if err := testutil.CollectAndCompare(TaskTransitions, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected collection: %v", err)
	}
}

func TestPoolInUse(t *testing.T) {
	PoolInUse.WithLabelValues("image").Set(4)
	if got := testutil.ToFloat64(PoolInUse.WithLabelValues("image")); got != 4 {
		t.Errorf("image pool gauge = %v, want 4", got)
	}
}
