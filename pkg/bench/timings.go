package bench

import (
	"time"
)

// timings holds the complete timing information of a single stream run.
type timings struct {
	Start, End time.Time
	// Tokens holds the arrival time of every chunk that carried content.
	Tokens []time.Time
}

// timingsArray is the collection of timings from multiple parallel stream runs.
type timingsArray []timings

// TTFTs returns the Time To First Token of every run that produced content.
func (a timingsArray) TTFTs() []time.Duration {
	out := make([]time.Duration, 0, len(a))
	for _, t := range a {
		if len(t.Tokens) > 0 {
			out = append(out, t.Tokens[0].Sub(t.Start))
		}
	}
	return out
}

// TBTs returns the Time Between Tokens of all runs, flattened.
func (a timingsArray) TBTs() []time.Duration {
	var total int
	for _, t := range a {
		total += max(len(t.Tokens)-1, 0)
	}
	if total == 0 {
		return nil
	}

	out := make([]time.Duration, 0, total)
	for _, t := range a {
		for i := 1; i < len(t.Tokens); i++ {
			out = append(out, t.Tokens[i].Sub(t.Tokens[i-1]))
		}
	}
	return out
}

// TTs returns the Total Time of every run.
func (a timingsArray) TTs() []time.Duration {
	out := make([]time.Duration, len(a))
	for i, t := range a {
		out[i] = t.End.Sub(t.Start)
	}
	return out
}
