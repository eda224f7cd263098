package util

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/montanaflynn/stats"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// MethodStats holds the figures of one compiled method.
type MethodStats struct {
	Name         string // Method name.
	Frame        int    // Spill slots reserved by the method entry.
	Spills       int    // Values evicted from registers.
	Instructions int    // Instructions emitted by the real pass.
	CachedRegs   int    // Registers holding cached locals in at least one block.
}

// Statistics collects MethodStats from parallel workers.
type Statistics struct {
	methods []MethodStats
	mx      sync.Mutex
}

// Summary condenses one figure over all methods.
type Summary struct {
	Sum    float64
	Mean   float64
	Median float64
	Max    float64
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewStatistics returns an empty collector.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Add records the figures of one method. Safe for concurrent use.
func (s *Statistics) Add(ms MethodStats) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.methods = append(s.methods, ms)
}

// Len returns the number of recorded methods.
func (s *Statistics) Len() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.methods)
}

// Methods returns the recorded methods sorted by name.
func (s *Statistics) Methods() []MethodStats {
	s.mx.Lock()
	res := make([]MethodStats, len(s.methods))
	copy(res, s.methods)
	s.mx.Unlock()
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Summarise returns the summary of the figure selected by f. An empty collector summarises to zero.
func (s *Statistics) Summarise(f func(MethodStats) int) (Summary, error) {
	ms := s.Methods()
	if len(ms) == 0 {
		return Summary{}, nil
	}
	data := make(stats.Float64Data, len(ms))
	for i1, e1 := range ms {
		data[i1] = float64(f(e1))
	}

	var sum Summary
	var err error
	if sum.Sum, err = stats.Sum(data); err != nil {
		return sum, err
	}
	if sum.Mean, err = stats.Mean(data); err != nil {
		return sum, err
	}
	if sum.Median, err = stats.Median(data); err != nil {
		return sum, err
	}
	if sum.Max, err = stats.Max(data); err != nil {
		return sum, err
	}
	return sum, nil
}

// Print writes a per-method table followed by the summaries to w.
func (s *Statistics) Print(w io.Writer) error {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%-32s %6s %6s %8s %6s\n", "method", "frame", "spills", "instrs", "cached"))
	for _, e1 := range s.Methods() {
		sb.WriteString(fmt.Sprintf("%-32s %6d %6d %8d %6d\n", e1.Name, e1.Frame, e1.Spills, e1.Instructions, e1.CachedRegs))
	}

	figures := []struct {
		name string
		f    func(MethodStats) int
	}{
		{"frame", func(m MethodStats) int { return m.Frame }},
		{"spills", func(m MethodStats) int { return m.Spills }},
		{"instrs", func(m MethodStats) int { return m.Instructions }},
		{"cached", func(m MethodStats) int { return m.CachedRegs }},
	}
	sb.WriteString(fmt.Sprintf("\n%-8s %10s %10s %10s %10s\n", "", "sum", "mean", "median", "max"))
	for _, e1 := range figures {
		sum, err := s.Summarise(e1.f)
		if err != nil {
			return err
		}
		sb.WriteString(fmt.Sprintf("%-8s %10.0f %10.2f %10.2f %10.0f\n", e1.name, sum.Sum, sum.Mean, sum.Median, sum.Max))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
