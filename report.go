package dvhop

import (
	"bufio"
	"fmt"
	"io"
)

// ErrorAggregator accumulates the distance between estimated and true
// positions over successfully localised nodes.
type ErrorAggregator struct {
	total float64
	count int
}

// Add accounts for the given estimate, and reports whether it was counted.
// Only estimates with StatusOK are counted; underdetermined and degenerate ones
// are skipped rather than treated as failures.
func (a *ErrorAggregator) Add(est EstimatedPosition, truth Point) bool {
	if est.Status != StatusOK {
		return false
	}
	a.total += est.Position.Distance(truth)
	a.count++
	return true
}

// Total returns the sum of errors over counted estimates.
func (a *ErrorAggregator) Total() float64 { return a.total }

// Count returns the number of counted estimates.
func (a *ErrorAggregator) Count() int { return a.count }

// Mean returns the mean error, or false if nothing was counted.
func (a *ErrorAggregator) Mean() (float64, bool) {
	if a.count == 0 {
		return 0, false
	}
	return a.total / float64(a.count), true
}

// Result pairs the estimate of a node with its true position.
type Result struct {
	EstimatedPosition
	Truth Point
	// Anchors is the number of anchors the estimate was computed from.
	Anchors int
}

// Deviation returns the distance between the estimated and true position.
func (r Result) Deviation() float64 {
	return r.Position.Distance(r.Truth)
}

// Report is the outcome of an analysis pass.
type Report struct {
	// Results holds one entry per localised node in ascending order of node ID,
	// including nodes that could not be localised.
	Results []Result
	// HopSizes holds the hop size calibrated at each beacon.
	HopSizes HopSizeTable

	TotalError      float64
	Count           int
	Underdetermined int
	Degenerate      int
}

// MeanError returns the mean localisation error, or false if no node was
// localised.
func (r *Report) MeanError() (float64, bool) {
	if r.Count == 0 {
		return 0, false
	}
	return r.TotalError / float64(r.Count), true
}

// WriteTo writes one "<est> | <truth>" line per localised node, followed by a
// "<total error> | <count>" trailer.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for _, result := range r.Results {
		if result.Status != StatusOK {
			continue
		}
		n, err := fmt.Fprintf(bw, "%s | %s\n", result.Position, result.Truth)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	n, err := fmt.Fprintf(bw, "%g | %d\n", r.TotalError, r.Count)
	written += int64(n)
	if err != nil {
		return written, err
	}
	return written, bw.Flush()
}
