// Command oraclectl drives the orchestration core from a terminal: connect a
// key, run a report, generate an image or a video.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"oracle/internal/apistatus"
	"oracle/internal/credentials"
	"oracle/internal/infra"
	"oracle/internal/providers/genai"
)

var (
	verbose   bool
	credsPath string
)

var rootCmd = &cobra.Command{
	Use:           "oraclectl",
	Short:         "Market research and media generation from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level to stderr")
	rootCmd.PersistentFlags().StringVar(&credsPath, "credentials", "", "credential store path (default from CREDENTIALS_DB_PATH)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is what every subcommand needs. Close releases the credential store.
type env struct {
	cfg     *infra.Config
	logger  infra.Logger
	creds   *credentials.Store
	client  *genai.Client
	monitor *apistatus.Monitor
}

func loadEnv() (*env, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	if credsPath != "" {
		cfg.CredentialsDBPath = credsPath
	}
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Str("cmd", "oraclectl").Logger()

	creds, err := credentials.Open(cfg.CredentialsDBPath)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger, creds: creds, monitor: apistatus.NewMonitor(&logger)}
	e.client, err = genai.NewClient(genai.Options{
		BaseURL:     cfg.Gemini.BaseURL,
		Model:       cfg.Gemini.TextModel,
		Credentials: creds,
		Logger:      &e.logger,
	})
	if err != nil {
		_ = creds.Close()
		return nil, err
	}
	return e, nil
}

func (e *env) Close() error { return e.creds.Close() }

// requireKey fails early with the actionable message when no key is stored.
func (e *env) requireKey(ctx context.Context) error {
	if _, err := e.client.APIKey(ctx); err != nil {
		return fmt.Errorf("%w (run: oraclectl key set <key>)", err)
	}
	return nil
}
