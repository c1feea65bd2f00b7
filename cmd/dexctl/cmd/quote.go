package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/server"
)

func newQuoteCmd(opts *rootOptions) *cobra.Command {
	var (
		req         server.QuoteRequest
		feeBps      int64
		slippageBps int64
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute a constant-product quote from explicit reserves",
		Example: `  dexctl quote --amount-in 1000000 --reserve-in 10000000000 \
    --reserve-out 20000000000 --fee-bps 30 --slippage-bps 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("fee-bps") {
				req.FeeBps = &feeBps
			}
			if cmd.Flags().Changed("slippage-bps") {
				req.SlippageBps = &slippageBps
			}

			a, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.Gateway.Quote(cmd.Context(), models.SourceCLI, req)
			if err != nil {
				return report(cmd.OutOrStdout(), err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.AmountIn, "amount-in", "", "input amount in base units")
	f.StringVar(&req.ReserveIn, "reserve-in", "", "reserve of the input token")
	f.StringVar(&req.ReserveOut, "reserve-out", "", "reserve of the output token")
	f.Int64Var(&feeBps, "fee-bps", 0, "pool fee in basis points (required)")
	f.Int64Var(&slippageBps, "slippage-bps", 0, "slippage tolerance; adds minAmountOut")
	return cmd
}
