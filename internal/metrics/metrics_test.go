package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should ignore duplicates: %v", err)
	}
}

func TestObserveQueryNormalisesOutcome(t *testing.T) {
	before := testutil.ToFloat64(queriesTotal.WithLabelValues("rules", OutcomeError))
	ObserveQuery(5*time.Millisecond, "rules", "exploded")
	after := testutil.ToFloat64(queriesTotal.WithLabelValues("rules", OutcomeError))
	if after != before+1 {
		t.Fatalf("expected unknown outcome to count as error, got delta %v", after-before)
	}
}

func TestObserveReloadAndDatasetSize(t *testing.T) {
	before := testutil.ToFloat64(reloadsTotal.WithLabelValues(OutcomeError))
	ObserveReload(errors.New("source down"))
	if got := testutil.ToFloat64(reloadsTotal.WithLabelValues(OutcomeError)); got != before+1 {
		t.Fatalf("expected reload error counter to increase")
	}

	SetDatasetSize(4, 10, 2, 1)
	if got := testutil.ToFloat64(datasetRecords.WithLabelValues("orphans")); got != 2 {
		t.Fatalf("expected orphans gauge 2, got %v", got)
	}
}
