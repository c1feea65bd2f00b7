package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/cache"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var quotes, builds bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream quote and build events published by running gateways",
		Long: `Subscribe to the gateway event channels on Redis and print one line per
event until interrupted. Requires REDIS_ADDR or --redis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := opts.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Publisher == nil {
				return errors.New("watch needs a reachable Redis (REDIS_ADDR or --redis)")
			}

			w := cmd.OutOrStdout()
			var h cache.EventHandlers
			if quotes {
				h.Quote = func(ev *models.QuoteEvent) {
					pool := ev.Pool
					if pool == "" {
						pool = "-"
					}
					fmt.Fprintf(w, "%s quote %-4s pool=%s in=%s out=%s fee=%d\n",
						ev.Timestamp.Format("15:04:05.000"), ev.Source, short(pool),
						ev.AmountIn, ev.AmountOut, ev.FeeBps)
				}
			}
			if builds {
				h.Build = func(ev *models.BuildEvent) {
					outcome := ev.Outcome
					if ev.Field != "" {
						outcome += "(" + ev.Field + ")"
					}
					fmt.Fprintf(w, "%s build %-4s pool=%s user=%s in=%s min=%s verified=%t %s %dms\n",
						ev.Timestamp.Format("15:04:05.000"), ev.Source, short(ev.Pool), short(ev.User),
						ev.AmountIn, ev.MinAmountOut, ev.Verified, outcome, ev.DurationMs)
				}
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "watching events, press Ctrl+C to stop")
			return a.Publisher.Subscribe(ctx, h)
		},
	}

	cmd.Flags().BoolVar(&quotes, "quotes", true, "show quote events")
	cmd.Flags().BoolVar(&builds, "builds", true, "show build events")
	return cmd
}

// short abbreviates a base58 address for display.
func short(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}
