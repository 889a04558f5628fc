package cli

import (
	"net/url"
)

// validateRootFlags validates the flags of the root command.
func validateRootFlags() string {
	if rootBaseURL == "" {
		return "Base URL is required."
	}

	parsed, err := url.Parse(rootBaseURL)
	if err != nil {
		return "Invalid Base URL: " + err.Error()
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "Base URL must use http or https."
	}

	if rootModel == "" {
		return "Model is required."
	}

	return ""
}

// validateBenchFlags validates the flags of the bench command.
func validateBenchFlags() string {
	if message := validateRootFlags(); message != "" {
		return message
	}

	if benchPrompt == "" {
		return "A prompt is required."
	}

	if benchRequestCount <= 0 {
		return "Request count must be greater than 0."
	}

	if benchConcurrency <= 0 {
		return "Concurrency must be greater than 0."
	}

	return ""
}

// validateChatFlags validates the flags of the chat command.
func validateChatFlags() string {
	if message := validateRootFlags(); message != "" {
		return message
	}

	if chatTopLogprobs < 0 || chatTopLogprobs > 20 {
		return "Top logprobs must be between 0 and 20."
	}
	if chatTopLogprobs > 0 && !chatLogprobs {
		return "Top logprobs requires --logprobs."
	}

	return ""
}
