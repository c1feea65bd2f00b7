package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/server"
)

func newBuildSwapCmd(opts *rootOptions) *cobra.Command {
	var (
		req    server.BuildSwapRequest
		input  string
		verify bool
		mints  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "build-swap",
		Short: "Build an unsigned swap instruction",
		Long: `Build an unsigned dex-ai swap instruction and print it as JSON.

The request comes from flags, or from a JSON file with --input ("-" reads
stdin). Flags override values from the file. Nothing is signed or sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input != "" {
				var fromFile server.BuildSwapRequest
				if err := readJSON(cmd.InOrStdin(), input, &fromFile); err != nil {
					return err
				}
				mergeSwapRequest(&fromFile, &req)
				req = fromFile
			}
			if cmd.Flags().Changed("verify") {
				req.VerifyAccounts = &verify
			}
			if len(mints) > 0 {
				req.ExpectedMints = mints
			}

			a, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ix, err := a.Gateway.BuildSwap(cmd.Context(), models.SourceCLI, req)
			if err != nil {
				return report(cmd.OutOrStdout(), err)
			}
			return printJSON(cmd.OutOrStdout(), ix.Wire())
		},
	}

	f := cmd.Flags()
	f.StringVar(&input, "input", "", `JSON request file, "-" for stdin`)
	f.StringVar(&req.ProgramID, "program-id", "", "dex-ai program id")
	f.StringVar(&req.Pool, "pool", "", "pool account")
	f.StringVar(&req.User, "user", "", "user wallet (signer)")
	f.StringVar(&req.UserSource, "user-source", "", "user token account sold from")
	f.StringVar(&req.UserDestination, "user-destination", "", "user token account bought into")
	f.StringVar(&req.VaultA, "vault-a", "", "pool vault A")
	f.StringVar(&req.VaultB, "vault-b", "", "pool vault B")
	f.StringVar(&req.TokenProgram, "token-program", "", "SPL token program id")
	f.StringVar(&req.AmountIn, "amount-in", "", "input amount in base units")
	f.StringVar(&req.MinAmountOut, "min-amount-out", "", "minimum accepted output")
	f.BoolVar(&verify, "verify", false, "check the token accounts on chain before building")
	f.StringToStringVar(&mints, "expect-mint", nil, "expected mint per account, e.g. vaultA=<mint>")
	return cmd
}

func readJSON(stdin io.Reader, path string, v any) error {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

// mergeSwapRequest copies every non-empty field of src onto dst.
func mergeSwapRequest(dst, src *server.BuildSwapRequest) {
	set := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	set(&dst.ProgramID, src.ProgramID)
	set(&dst.Pool, src.Pool)
	set(&dst.User, src.User)
	set(&dst.UserSource, src.UserSource)
	set(&dst.UserDestination, src.UserDestination)
	set(&dst.VaultA, src.VaultA)
	set(&dst.VaultB, src.VaultB)
	set(&dst.TokenProgram, src.TokenProgram)
	set(&dst.AmountIn, src.AmountIn)
	set(&dst.MinAmountOut, src.MinAmountOut)
}
