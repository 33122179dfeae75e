package stats

import (
	"math"
	"testing"

	"github.com/pmd-tools/pmdlog-go/pmd"
)

func sample(v, i float64) pmd.Sample {
	return pmd.Sample{Values: map[pmd.Channel]float64{
		pmd.PCIE1Voltage: v,
		pmd.PCIE1Current: i,
	}}
}

func TestWindowSnapshot(t *testing.T) {
	w := NewWindow()
	for _, v := range []float64{11.9, 12.0, 12.1} {
		w.Add(sample(v, 2.0))
	}
	if w.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", w.Count())
	}
	snap := w.Snapshot()
	st := snap[pmd.PCIE1Voltage]
	if st.N != 3 {
		t.Errorf("N = %d, want 3", st.N)
	}
	if math.Abs(st.Min-11.9) > 1e-9 || math.Abs(st.Max-12.1) > 1e-9 {
		t.Errorf("min/max = %v/%v", st.Min, st.Max)
	}
	if math.Abs(st.Mean-12.0) > 1e-9 {
		t.Errorf("Mean = %v, want 12.0", st.Mean)
	}
	if st.Std <= 0 {
		t.Errorf("Std = %v, want > 0", st.Std)
	}
}

func TestWindowPower(t *testing.T) {
	w := NewWindow()
	w.Add(sample(12.0, 1.0))
	w.Add(sample(12.0, 3.0))
	p := w.Power()
	if p.N != 2 {
		t.Fatalf("power N = %d, want 2", p.N)
	}
	if math.Abs(p.Mean-24.0) > 1e-9 {
		t.Errorf("power mean = %v, want 24", p.Mean)
	}
	if math.Abs(p.Min-12.0) > 1e-9 || math.Abs(p.Max-36.0) > 1e-9 {
		t.Errorf("power min/max = %v/%v", p.Min, p.Max)
	}
}

func TestWindowReset(t *testing.T) {
	w := NewWindow()
	w.Add(sample(1, 1))
	w.Reset()
	if w.Count() != 0 {
		t.Errorf("Count() after Reset = %d, want 0", w.Count())
	}
	if len(w.Snapshot()) != 0 {
		t.Error("Snapshot() after Reset not empty")
	}
}

func TestEmptyWindow(t *testing.T) {
	w := NewWindow()
	if got := w.Power(); got.N != 0 {
		t.Errorf("empty Power() = %+v", got)
	}
	if len(w.Snapshot()) != 0 {
		t.Error("empty Snapshot() not empty")
	}
}
