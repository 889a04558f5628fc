package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/debug"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/shivanshkc/llmstream/pkg/api"
	"github.com/shivanshkc/llmstream/pkg/chatstream"
)

var (
	chatSchemaPath  string
	chatSchemaName  string
	chatLogprobs    bool
	chatTopLogprobs int
	chatAudioVoice  string
)

// chatCmd represents the `chat` command, providing an interactive, REPL-style
// interface for conversing with a language model.
//
// It maintains a persistent chat history for the session, allowing for
// follow-up questions. It also gracefully handles interruptions (like Ctrl+C)
// at any point, including while waiting for user input.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat with the LLM.",
	Long: `Starts an interactive chat session with the specified language model, maintaining conversation history.

Prefix a line with "system:", "assistant:" or "user:" to choose its role.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if message := validateChatFlags(); message != "" {
			return errors.New(message)
		}

		var streamOpts []chatstream.Option
		var responseFormat *api.ResponseFormat
		if chatSchemaPath != "" {
			schema, err := readSchema(chatSchemaPath, chatSchemaName)
			if err != nil {
				return err
			}
			streamOpts = append(streamOpts, chatstream.WithSchema(schema))
			responseFormat = schema.ResponseFormat()
		}

		// chatMessages holds the full conversation history for the current session.
		var chatMessages []api.ChatMessage
		client := newClient()
		reader := bufio.NewReader(os.Stdin)

		for {
			fmt.Print(text.FgBlue.Sprint("You: "))

			// This call returns early if the command's context is canceled (e.g., by Ctrl+C).
			input, err := readStringContext(cmd.Context(), reader)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					ancli.Errf("failed to read input: %v\n", err)
				}
				return nil
			}

			role, message := parseInput(input)
			if message == "" {
				continue
			}
			chatMessages = append(chatMessages, api.ChatMessage{Role: role, Content: message})

			request := newChatRequest(chatMessages, responseFormat)
			frames, err := client.ChatCompletionStream(cmd.Context(), request)
			if err != nil {
				ancli.Errf("failed to stream response: %v\n", err)
				continue
			}

			fmt.Print(text.FgGreen.Sprint("Assistant: "))
			completion, err := streamAnswer(cmd.Context(), chatstream.New(frames, streamOpts...))
			fmt.Println("")
			if err != nil {
				ancli.Errf("stream failed: %v\n", err)
				continue
			}

			if len(completion.Choices) == 0 {
				continue
			}
			printAnswerDetails(completion)
			chatMessages = append(chatMessages, api.ChatMessage{
				Role:    api.RoleAssistant,
				Content: assistantText(completion.Choices[0].Message),
			})
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatSchemaPath, "schema", "",
		"Path of a JSON Schema file. Enables structured output.")
	chatCmd.Flags().StringVar(&chatSchemaName, "schema-name", "response",
		"Name of the structured output schema.")
	chatCmd.Flags().BoolVar(&chatLogprobs, "logprobs", false,
		"Request token log probabilities and print them after every answer.")
	chatCmd.Flags().IntVar(&chatTopLogprobs, "top-logprobs", 0,
		"Number of alternatives to request for every token, requires --logprobs.")
	chatCmd.Flags().StringVar(&chatAudioVoice, "audio", "",
		"Request audio output with the given voice. The transcript is printed.")
}

// newChatRequest builds the request for the current history from the chat flags.
func newChatRequest(messages []api.ChatMessage, responseFormat *api.ResponseFormat) api.ChatCompletionRequest {
	request := api.ChatCompletionRequest{
		Model:          rootModel,
		Messages:       messages,
		StreamOptions:  &api.StreamOptions{IncludeUsage: true},
		ResponseFormat: responseFormat,
		Logprobs:       chatLogprobs,
	}
	if chatLogprobs && chatTopLogprobs > 0 {
		request.TopLogprobs = &chatTopLogprobs
	}
	if chatAudioVoice != "" {
		request.Modalities = []string{"text", "audio"}
		request.Audio = &api.AudioOptions{Voice: chatAudioVoice, Format: "pcm16"}
	}
	return request
}

// streamAnswer prints the first choice as it arrives and returns the final completion.
func streamAnswer(ctx context.Context, stream *chatstream.Stream) (*chatstream.FinalCompletion, error) {
	if misc.Truthy(os.Getenv("DEBUG")) {
		chatstream.On(stream, func(ev chatstream.ChunkEvent) error {
			ancli.Okf("chunk: %v\n", debug.IndentedJsonFmt(ev.Chunk))
			return nil
		})
	}

	chatstream.On(stream, func(ev chatstream.ContentDeltaEvent) error {
		if ev.Index == 0 {
			fmt.Print(ev.Delta)
		}
		return nil
	})
	chatstream.On(stream, func(ev chatstream.RefusalDeltaEvent) error {
		if ev.Index == 0 {
			fmt.Print(text.FgRed.Sprint(ev.Delta))
		}
		return nil
	})

	return stream.FinalChatCompletion(ctx)
}

// printAnswerDetails prints what could not be streamed: the transcript, the parsed value and logprobs.
func printAnswerDetails(completion *chatstream.FinalCompletion) {
	message := completion.Choices[0].Message
	if message.Audio != nil {
		fmt.Println(text.Faint.Sprint("Transcript: ") + message.Audio.Transcript)
	}
	if message.Parsed != nil {
		fmt.Println(text.Faint.Sprint("Parsed: ") + debug.IndentedJsonFmt(message.Parsed))
	}
	if chatLogprobs {
		renderChoiceLogprobs(os.Stdout, completion)
	}
}

// readSchema loads a JSON Schema document for structured output.
func readSchema(path, name string) (*chatstream.JSONSchema[any], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return chatstream.NewJSONSchema[any](name, data)
}

// readStringContext reads a line of text from a bufio.Reader but aborts early
// if the provided context is canceled.
//
// If the context is canceled, the reading goroutine stays blocked until the
// read completes. That is acceptable for a CLI application.
func readStringContext(ctx context.Context, reader *bufio.Reader) (string, error) {
	type readResult struct {
		input string
		err   error
	}

	// Buffered so the reading goroutine never blocks on the send.
	resultChan := make(chan readResult, 1)

	go func() {
		input, err := reader.ReadString('\n')
		resultChan <- readResult{input: input, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-resultChan:
		return result.input, result.err
	}
}

// parseInput sanitizes raw user input and parses it to determine the message
// content and the intended role (system, user, or assistant).
// If no role prefix (e.g., "system:") is found, it defaults to the "user" role.
func parseInput(input string) (role, message string) {
	message = strings.TrimSpace(input)
	if message == "" {
		return "", ""
	}

	for _, candidate := range []string{api.RoleSystem, api.RoleAssistant, api.RoleUser} {
		prefix := candidate + ":"
		if strings.HasPrefix(strings.ToLower(message), prefix) {
			return candidate, strings.TrimSpace(message[len(prefix):])
		}
	}
	return api.RoleUser, message
}
