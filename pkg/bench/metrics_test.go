package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurations_Metrics(t *testing.T) {
	ms := time.Millisecond

	testCases := []struct {
		name     string
		input    durations
		expected Metrics
	}{
		{name: "Empty", input: nil, expected: Metrics{}},
		{
			name:     "Single Value",
			input:    durations{5 * ms},
			expected: Metrics{Avg: 5 * ms, Min: 5 * ms, Median: 5 * ms, P90: 5 * ms, P99: 5 * ms, Max: 5 * ms},
		},
		{
			name:     "Even Count Unsorted",
			input:    durations{40 * ms, 10 * ms, 30 * ms, 20 * ms},
			expected: Metrics{Avg: 25 * ms, Min: 10 * ms, Median: 25 * ms, P90: 30 * ms, P99: 30 * ms, Max: 40 * ms},
		},
		{
			name:     "Odd Count",
			input:    durations{1 * ms, 2 * ms, 3 * ms, 4 * ms, 5 * ms, 6 * ms, 7 * ms, 8 * ms, 9 * ms, 10 * ms, 11 * ms},
			expected: Metrics{Avg: 6 * ms, Min: 1 * ms, Median: 6 * ms, P90: 10 * ms, P99: 10 * ms, Max: 11 * ms},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			original := append(durations(nil), tc.input...)
			assert.Equal(t, tc.expected, tc.input.Metrics())
			assert.Equal(t, original, tc.input, "input must not be reordered")
		})
	}
}

func TestTimingsArray(t *testing.T) {
	base := time.Unix(1704805200, 0)
	at := func(ms int) time.Time { return base.Add(time.Duration(ms) * time.Millisecond) }

	arr := timingsArray{
		{Start: at(0), End: at(100), Tokens: []time.Time{at(20), at(30), at(45)}},
		{Start: at(0), End: at(50)},
		{Start: at(10), End: at(40), Tokens: []time.Time{at(15)}},
	}

	assert.Equal(t, []time.Duration{20 * time.Millisecond, 5 * time.Millisecond}, arr.TTFTs())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, arr.TBTs())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 50 * time.Millisecond, 30 * time.Millisecond}, arr.TTs())
	assert.Nil(t, timingsArray{{Start: at(0), End: at(1)}}.TBTs())
}
