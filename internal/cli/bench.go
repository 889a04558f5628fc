package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shivanshkc/llmstream/pkg/api"
	"github.com/shivanshkc/llmstream/pkg/bench"
	"github.com/shivanshkc/llmstream/pkg/chatstream"
)

var (
	benchPrompt       string
	benchRequestCount int
	benchConcurrency  int
)

// benchCmd represents the bench command.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark an Open AI compatible REST API.",
	Long: `Sends the same prompt many times, concurrently, and reports the Time To First Token,
the Time Between Tokens and the Total Time of the streamed responses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if message := validateBenchFlags(); message != "" {
			return errors.New(message)
		}

		client := newClient()
		request := api.ChatCompletionRequest{
			Model:    rootModel,
			Messages: []api.ChatMessage{{Role: api.RoleUser, Content: benchPrompt}},
		}

		streamFunc := func(ctx context.Context) (*chatstream.Stream, error) {
			frames, err := client.ChatCompletionStream(ctx, request)
			if err != nil {
				return nil, err
			}
			return chatstream.New(frames), nil
		}

		results, err := bench.BenchmarkStream(cmd.Context(), benchRequestCount, benchConcurrency, streamFunc)
		if err != nil {
			return fmt.Errorf("benchmark failed: %w", err)
		}

		renderBenchResults(cmd.OutOrStdout(), results)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVarP(&benchPrompt, "prompt", "p", "",
		"Prompt to send with every request.")
	benchCmd.Flags().IntVarP(&benchRequestCount, "requests", "n", 10,
		"Total number of requests.")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 1,
		"Number of requests in flight at a time.")
}
