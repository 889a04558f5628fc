package cli

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/shivanshkc/llmstream/pkg/api"
	"github.com/shivanshkc/llmstream/pkg/bench"
	"github.com/shivanshkc/llmstream/pkg/chatstream"
)

// renderLogprobs writes a table of the token log probabilities of a choice.
func renderLogprobs(w io.Writer, title string, entries []api.LogProbEntry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"#", "Token", "Logprob", "Probability", "Alternatives"})

	for i, entry := range entries {
		alternatives := make([]string, 0, len(entry.TopLogprobs))
		for _, top := range entry.TopLogprobs {
			alternatives = append(alternatives, fmt.Sprintf("%q (%.2f%%)", top.Token, 100*math.Exp(top.Logprob)))
		}
		tw.AppendRow(table.Row{
			i,
			fmt.Sprintf("%q", entry.Token),
			fmt.Sprintf("%.4f", entry.Logprob),
			fmt.Sprintf("%.2f%%", 100*math.Exp(entry.Logprob)),
			strings.Join(alternatives, ", "),
		})
	}
	tw.Render()
}

// renderChoiceLogprobs writes the logprob tables of every choice that has logprobs.
func renderChoiceLogprobs(w io.Writer, completion *chatstream.FinalCompletion) {
	for _, choice := range completion.Choices {
		if choice.Logprobs == nil {
			continue
		}
		if len(choice.Logprobs.Content) > 0 {
			renderLogprobs(w, fmt.Sprintf("Choice %d content", choice.Index), choice.Logprobs.Content)
		}
		if len(choice.Logprobs.Refusal) > 0 {
			renderLogprobs(w, fmt.Sprintf("Choice %d refusal", choice.Index), choice.Logprobs.Refusal)
		}
	}
}

// renderBenchResults writes the benchmark metrics as a table.
func renderBenchResults(w io.Writer, results bench.StreamBenchmarkResults) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Metric", "Avg", "Min", "Median", "P90", "P99", "Max"})

	rows := []struct {
		name    string
		metrics bench.Metrics
	}{
		{"Time To First Token", results.TTFT},
		{"Time Between Tokens", results.TBT},
		{"Total Time", results.TT},
	}
	for _, row := range rows {
		m := row.metrics
		cells := table.Row{text.Bold.Sprint(row.name)}
		for _, d := range []time.Duration{m.Avg, m.Min, m.Median, m.P90, m.P99, m.Max} {
			cells = append(cells, formatDuration(d))
		}
		tw.AppendRow(cells)
	}
	tw.Render()
}

// formatDuration prints d with two decimals in the largest unit below it.
func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0s"
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// assistantText returns the text of a message to keep in the chat history.
func assistantText(message chatstream.Message) string {
	switch {
	case message.Content != nil:
		return *message.Content
	case message.Refusal != nil:
		return *message.Refusal
	case message.Audio != nil:
		return message.Audio.Transcript
	}
	return ""
}
