package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"oracle/internal/credentials"
	"oracle/internal/providers/genai"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored provider keys",
}

var keySetCmd = &cobra.Command{
	Use:   "set [api-key]",
	Short: "Validate and store a provider key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")
		skip, _ := cmd.Flags().GetBool("skip-validation")
		provider = strings.ToLower(strings.TrimSpace(provider))
		if provider != credentials.ProviderGemini && provider != credentials.ProviderOpenAI {
			return fmt.Errorf("unsupported provider %q", provider)
		}

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		if provider == credentials.ProviderGemini && !skip {
			if err := genai.ValidateKey(ctx, e.cfg.Gemini.BaseURL, nil, args[0]); err != nil {
				return fmt.Errorf("key rejected: %w", err)
			}
		}
		if err := e.creds.SetToken(ctx, provider, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s key stored: %s\n", provider, credentials.Mask(args[0]))
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored keys, masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		for _, provider := range []string{credentials.ProviderGemini, credentials.ProviderOpenAI} {
			key, err := e.creds.Token(cmd.Context(), provider)
			if err != nil {
				return err
			}
			shown := "(not connected)"
			if key != "" {
				shown = credentials.Mask(key)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-7s %s\n", provider, shown)
		}
		return nil
	},
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Disconnect a provider key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		return e.creds.Delete(cmd.Context(), provider)
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keySetCmd, keyShowCmd, keyDeleteCmd)

	keySetCmd.Flags().String("provider", credentials.ProviderGemini, "provider the key belongs to (gemini or openai)")
	keySetCmd.Flags().Bool("skip-validation", false, "store without probing the provider")
	keyDeleteCmd.Flags().String("provider", credentials.ProviderGemini, "provider to disconnect")
}
