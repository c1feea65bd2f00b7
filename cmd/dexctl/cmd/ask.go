package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/ai"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/tools"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		analyze bool
		model   string
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the assistant, or with --analyze query recorded traffic",
		Long: `Ask a natural language question. By default the assistant answers using the
quote and build tools. With --analyze the question is turned into SQL over
the ClickHouse audit tables. Requires OPENROUTER_API_KEY.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			a, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.Config
			if model == "" {
				model = cfg.AIModel
			}
			llm, err := ai.NewOpenRouterLLM(cfg.OpenRouterAPIKey, model)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if analyze {
				if cfg.ClickHouseAddr == "" {
					return errors.New("--analyze needs CLICKHOUSE_ADDR")
				}
				analyst, err := ai.NewAnalyst(cmd.Context(), ai.AnalystConfig{
					ClickHouseAddr:     cfg.ClickHouseAddr,
					ClickHouseDatabase: cfg.ClickHouseDatabase,
					ClickHouseUsername: cfg.ClickHouseUsername,
					ClickHousePassword: cfg.ClickHousePassword,
					LLM:                llm,
					Logger:             a.Logger,
				})
				if err != nil {
					return err
				}
				defer analyst.Close()

				res, err := analyst.Ask(cmd.Context(), question)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "SQL:\n%s\n\nAnswer:\n%s\n", res.SQL, res.Answer)
				return nil
			}

			assistant, err := ai.NewAssistant(ai.AssistantConfig{
				LLM:    llm,
				Tools:  tools.All(a.Gateway),
				Logger: a.Logger,
			})
			if err != nil {
				return err
			}
			answer, err := assistant.Ask(cmd.Context(), question)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, answer)
			return nil
		},
	}

	cmd.Flags().BoolVar(&analyze, "analyze", false, "answer from the audit tables instead of the tools")
	cmd.Flags().StringVar(&model, "model", "", "OpenRouter model (default AI_MODEL)")
	return cmd
}
