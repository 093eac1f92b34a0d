package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"oracle/internal/credentials"
	"oracle/internal/extract"
	"oracle/internal/pipeline"
	"oracle/internal/providers/prompt"
	"oracle/internal/reports"
	"oracle/internal/session"
)

var reportCmd = &cobra.Command{
	Use:   "report [kind]",
	Short: "Run one research report and print it as JSON",
	Long: "Run one research report and print it as JSON.\n\nKinds: " +
		strings.Join(reports.Names(), ", "),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var s session.Session
		s.Niche, _ = cmd.Flags().GetString("niche")
		s.Language, _ = cmd.Flags().GetString("language")
		s.Country, _ = cmd.Flags().GetString("country")
		s.Audience, _ = cmd.Flags().GetString("audience")
		s.BrandVoice, _ = cmd.Flags().GetString("brand-voice")
		subject, _ := cmd.Flags().GetString("subject")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireKey(cmd.Context()); err != nil {
			return err
		}

		openAIKey, _ := e.creds.Token(cmd.Context(), credentials.ProviderOpenAI)
		resolver, err := pipeline.New(pipeline.Options{
			Searcher:    e.client,
			SearchModel: e.cfg.Gemini.TextModel,
			Extractor:   extract.NewHTTPExtractor(extract.Options{Timeout: e.cfg.Pipeline.ExtractTimeout, Logger: &e.logger}),
			Primary:     prompt.NewGeminiAnalyzer(prompt.GeminiOptions{Client: e.client, Model: e.cfg.Gemini.TextModel}),
			Secondary: prompt.NewOpenAIAnalyzer(prompt.OpenAIOptions{
				APIKey:  openAIKey,
				Model:   e.cfg.OpenAI.Model,
				BaseURL: e.cfg.OpenAI.BaseURL,
			}),
			Monitor: e.monitor,
			Limits:  e.cfg.Pipeline,
			Logger:  &e.logger,
		})
		if err != nil {
			return err
		}

		report, err := reports.NewService(resolver, nil, &e.logger).Run(cmd.Context(), reports.Request{
			Kind:    args[0],
			Subject: subject,
			Exclude: exclude,
			Session: s,
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("print report: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	f := reportCmd.Flags()
	f.String("niche", "", "business niche the research is about")
	f.String("language", "en", "answer language (tag or English name)")
	f.String("country", "", "target country (ISO code); empty means global")
	f.String("audience", "", "target audience")
	f.String("brand-voice", "", "brand voice for copy reports")
	f.String("subject", "", "subject for reports that analyse one item")
	f.StringSlice("exclude", nil, "items already shown; asks for different ones")
}
