package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/gateway"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/server"
)

func newPoolCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Read dex-ai pools",
	}
	cmd.AddCommand(newPoolGetCmd(opts), newPoolQuoteCmd(opts))
	return cmd
}

func newPoolGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [address]",
		Short: "Show a pool's accounts, fee and live reserves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			state, err := a.Gateway.Pool(cmd.Context(), args[0])
			if err != nil {
				return report(cmd.OutOrStdout(), err)
			}
			return printJSON(cmd.OutOrStdout(), gateway.NewPoolResponse(state))
		},
	}
}

func newPoolQuoteCmd(opts *rootOptions) *cobra.Command {
	var (
		req         server.PoolQuoteRequest
		aToB        bool
		slippageBps int64
	)

	cmd := &cobra.Command{
		Use:     "quote [address]",
		Short:   "Quote a swap against a pool's live reserves",
		Example: `  dexctl pool quote <pool> --amount-in 1000000 --input-mint <mint>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("a-to-b") {
				req.AToB = &aToB
			}
			if cmd.Flags().Changed("slippage-bps") {
				req.SlippageBps = &slippageBps
			}

			a, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			q, err := a.Gateway.PoolQuote(cmd.Context(), models.SourceCLI, args[0], req)
			if err != nil {
				return report(cmd.OutOrStdout(), err)
			}
			return printJSON(cmd.OutOrStdout(), gateway.NewPoolQuoteResponse(q))
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.AmountIn, "amount-in", "", "input amount in base units")
	f.StringVar(&req.InputMint, "input-mint", "", "mint being sold; picks the direction")
	f.BoolVar(&aToB, "a-to-b", false, "direction, when --input-mint is not given")
	f.Int64Var(&slippageBps, "slippage-bps", 0, "slippage tolerance (default DEFAULT_SLIPPAGE_BPS)")
	cmd.MarkFlagsMutuallyExclusive("input-mint", "a-to-b")
	return cmd
}
