// Package stats accumulates per-channel statistics over a window of
// decoded samples for the live readout.
package stats

import (
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pmd-tools/pmdlog-go/pmd"
)

// ChannelStat summarizes one channel over the current window.
type ChannelStat struct {
	N    int
	Min  float64
	Max  float64
	Mean float64
	Std  float64
}

// Window accumulates samples until it is reset. Safe for one writer and
// concurrent readers; the streaming sink adds while the readout snapshots.
type Window struct {
	mu     sync.Mutex
	values map[pmd.Channel][]float64
	power  []float64
	count  int
}

// NewWindow returns an empty window.
func NewWindow() *Window {
	return &Window{values: make(map[pmd.Channel][]float64)}
}

// Add records one sample's channel values and its total power.
func (w *Window) Add(s pmd.Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for c, v := range s.Values {
		w.values[c] = append(w.values[c], v)
	}
	w.power = append(w.power, pmd.TotalPower(s))
	w.count++
}

// Count returns the number of samples in the window.
func (w *Window) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Snapshot computes per-channel statistics over the window.
func (w *Window) Snapshot() map[pmd.Channel]ChannelStat {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[pmd.Channel]ChannelStat, len(w.values))
	for c, vals := range w.values {
		out[c] = summarize(vals)
	}
	return out
}

// Power summarizes the total power over the window.
func (w *Window) Power() ChannelStat {
	w.mu.Lock()
	defer w.mu.Unlock()
	return summarize(w.power)
}

// Reset empties the window.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.values = make(map[pmd.Channel][]float64)
	w.power = nil
	w.count = 0
}

func summarize(vals []float64) ChannelStat {
	if len(vals) == 0 {
		return ChannelStat{}
	}
	st := ChannelStat{
		N:    len(vals),
		Min:  floats.Min(vals),
		Max:  floats.Max(vals),
		Mean: stat.Mean(vals, nil),
	}
	if len(vals) > 1 {
		st.Std = stat.StdDev(vals, nil)
	}
	return st
}
