package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/apierr"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/app"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/config"
)

// errReported marks an error already printed as a JSON body.
var errReported = errors.New("request failed")

type rootOptions struct {
	cfgFile string
	v       *viper.Viper
}

// NewRootCmd builds the dexctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "dexctl",
		Short: "dexctl - quote and build dex-ai swaps from the command line",
		Long: `dexctl runs the dex-ai gateway operations locally.

It provides commands for:
- Constant-product quotes from explicit reserves
- Building unsigned swap instructions
- Reading live pool state and quoting against it
- Watching gateway events and asking the assistant`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.initConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.dexctl.yaml)")
	flags.String("rpc", "", "Solana RPC endpoint (overrides SOLANA_RPC_URL)")
	flags.String("redis", "", "Redis address (overrides REDIS_ADDR)")
	flags.String("log-level", "warn", "log level")
	for _, name := range []string{"rpc", "redis", "log-level"} {
		cobra.CheckErr(opts.v.BindPFlag(name, flags.Lookup(name)))
	}

	root.AddCommand(
		newQuoteCmd(opts),
		newBuildSwapCmd(opts),
		newPoolCmd(opts),
		newWatchCmd(opts),
		newAskCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return err
}

func (o *rootOptions) initConfig() error {
	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			o.v.AddConfigPath(home)
		}
		o.v.AddConfigPath(".")
		o.v.SetConfigType("yaml")
		o.v.SetConfigName(".dexctl")
	}

	if err := o.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config %s: %w", filepath.Base(o.v.ConfigFileUsed()), err)
		}
	}
	return nil
}

// config loads the environment configuration with flag overrides applied.
func (o *rootOptions) config() (*config.Config, error) {
	logger := app.NewLogger(o.v.GetString("log-level"))
	app.LoadEnv(logger)

	cfg := config.Load()
	if rpcURL := o.v.GetString("rpc"); rpcURL != "" {
		cfg.RPCUrl = rpcURL
	}
	if addr := o.v.GetString("redis"); addr != "" {
		cfg.RedisAddr = addr
	}
	cfg.LogLevel = o.v.GetString("log-level")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app assembles the gateway for one command invocation.
func (o *rootOptions) app(ctx context.Context) (*app.App, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.NewLogger(cfg.LogLevel))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// report prints the API error body for err and returns errReported so the
// process exits non-zero without printing twice.
func report(w io.Writer, err error) error {
	_, body := apierr.Classify(err)
	if pErr := printJSON(w, body); pErr != nil {
		return pErr
	}
	return errReported
}
