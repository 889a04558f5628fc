package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/spf13/cobra"

	"github.com/shivanshkc/llmstream/pkg/chatstream"
	"github.com/shivanshkc/llmstream/pkg/httpx"
)

var (
	replaySchemaPath string
	replaySchemaName string
	replayLogprobs   bool
)

// replayCmd feeds a recorded SSE response through the accumulator.
var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Accumulate a recorded SSE response into its final completion.",
	Long: `Reads a recorded Server-Sent Events response ("data: {...}" lines, "-" for stdin),
accumulates it and prints the final chat completion as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := openReplaySource(args[0])
		if err != nil {
			return err
		}

		var opts []chatstream.Option
		if replaySchemaPath != "" {
			schema, err := readSchema(replaySchemaPath, replaySchemaName)
			if err != nil {
				return err
			}
			opts = append(opts, chatstream.WithSchema(schema))
		}

		stream := chatstream.New(httpx.ReadServerSentEvents(cmd.Context(), body), opts...)
		return runReplay(cmd.Context(), stream, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVar(&replaySchemaPath, "schema", "",
		"Path of a JSON Schema file used to parse the content.")
	replayCmd.Flags().StringVar(&replaySchemaName, "schema-name", "response",
		"Name of the structured output schema.")
	replayCmd.Flags().BoolVar(&replayLogprobs, "logprobs", false,
		"Print the token log probabilities as tables.")
}

func openReplaySource(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	return file, nil
}

// runReplay drives the stream to its end and writes the final completion.
func runReplay(ctx context.Context, stream *chatstream.Stream, w io.Writer) error {
	completion, err := stream.FinalChatCompletion(ctx)
	if errors.Is(err, chatstream.ErrEmptyStream) {
		return fmt.Errorf("nothing to replay: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to replay stream: %w", err)
	}

	for _, violation := range stream.Violations() {
		ancli.PrintWarn(violation.Error() + "\n")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(completion); err != nil {
		return fmt.Errorf("failed to encode completion: %w", err)
	}

	if replayLogprobs {
		renderChoiceLogprobs(w, completion)
	}
	return nil
}
