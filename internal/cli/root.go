// Package cli contains all the command-line interface logic for the application,
// powered by the cobra library. It defines the root command, subcommands,
// and their respective flags.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shivanshkc/llmstream/pkg/api"
)

var (
	// Persistent flags of the root command, shared by all subcommands.
	rootBaseURL    string
	rootModel      string
	rootConfigPath string

	// rootConfig is loaded before any subcommand runs.
	rootConfig Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "llmstream",
	Short: "Stream, replay and benchmark Open AI compatible chat completions.",
	Long: `Stream, replay and benchmark Open AI compatible chat completions.
Responses are accumulated chunk by chunk into a final completion, including
structured output, log probabilities, refusals and audio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if misc.Truthy(os.Getenv("NO_COLOR")) || !term.IsTerminal(int(os.Stdout.Fd())) {
			text.DisableColors()
		}

		path, explicit := rootConfigPath, cmd.Flags().Changed("config")
		if !explicit {
			path = defaultConfigPath()
		}

		cfg, err := loadConfig(path, explicit)
		if err != nil {
			return err
		}
		rootConfig = cfg

		// Config values only fill flags that were not given.
		if !cmd.Flags().Changed("base-url") && cfg.BaseURL != "" {
			rootBaseURL = cfg.BaseURL
		}
		if !cmd.Flags().Changed("model") && cfg.Model != "" {
			rootModel = cfg.Model
		}
		return nil
	},
}

// Execute is the primary entry point for the CLI application, called by main.go.
//
// The context passed down to all commands is canceled upon Ctrl+C or SIGTERM.
func Execute() error {
	ancli.SetupSlog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		<-signals
		cancel()
	}()

	return rootCmd.ExecuteContext(ctx)
}

// newClient creates an API client from the root flags and config.
func newClient() *api.Client {
	return api.NewClient(rootBaseURL, rootConfig.clientOptions()...)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootBaseURL, "base-url", "u",
		"http://localhost:8080", "Base URL of the API.")

	rootCmd.PersistentFlags().StringVarP(&rootModel, "model", "m",
		"gpt-4.1", "Name of the model to use.")

	rootCmd.PersistentFlags().StringVarP(&rootConfigPath, "config", "c",
		"", "Path of the YAML config file. Defaults to ~/.llmstream/config.yaml")
}
