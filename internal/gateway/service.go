// Package gateway is the request-level core shared by the HTTP API and the
// tool adapters: it parses wire requests, applies runtime defaults, calls the
// quote engine and instruction builder, and records audit events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/amm"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/apierr"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/dexai"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/flags"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/pools"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/storage"
)

// FlagReader is the read side of the flags store.
type FlagReader interface {
	Enabled(ctx context.Context, key string, fallback bool) bool
}

// PoolFetcher loads live pool state.
type PoolFetcher interface {
	Fetch(ctx context.Context, pool solana.PublicKey) (*pools.PoolState, error)
}

type Config struct {
	Builder            *dexai.Builder
	Pools              PoolFetcher       // optional
	Flags              FlagReader        // optional
	Audit              storage.AuditSink // optional
	VerifyByDefault    bool
	DefaultSlippageBps int64
	AuditTimeout       time.Duration
	Logger             *logrus.Logger
}

type Service struct {
	builder         *dexai.Builder
	pools           PoolFetcher
	flags           FlagReader
	audit           storage.AuditSink
	verifyByDefault bool
	defaultSlippage int64
	auditTimeout    time.Duration
	logger          *logrus.Logger

	pending sync.WaitGroup
}

func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Builder == nil {
		cfg.Builder = dexai.NewBuilder(dexai.BuilderConfig{Logger: cfg.Logger})
	}
	if cfg.AuditTimeout <= 0 {
		cfg.AuditTimeout = 3 * time.Second
	}
	return &Service{
		builder:         cfg.Builder,
		pools:           cfg.Pools,
		flags:           cfg.Flags,
		audit:           cfg.Audit,
		verifyByDefault: cfg.VerifyByDefault,
		defaultSlippage: cfg.DefaultSlippageBps,
		auditTimeout:    cfg.AuditTimeout,
		logger:          cfg.Logger,
	}
}

// Quote runs the quote engine on wire parameters.
func (s *Service) Quote(ctx context.Context, source string, req QuoteRequest) (*QuoteResponse, error) {
	amountIn, err := parseAmount("amountIn", req.AmountIn)
	if err != nil {
		return nil, err
	}
	reserveIn, err := parseAmount("reserveIn", req.ReserveIn)
	if err != nil {
		return nil, err
	}
	reserveOut, err := parseAmount("reserveOut", req.ReserveOut)
	if err != nil {
		return nil, err
	}
	if req.FeeBps == nil {
		return nil, apierr.Field("feeBps", fmt.Errorf("%w: feeBps is required", amm.ErrInvalidParameter))
	}
	if err := checkBps("feeBps", *req.FeeBps); err != nil {
		return nil, err
	}

	out, err := amm.Quote(amountIn, reserveIn, reserveOut, *req.FeeBps)
	if err != nil {
		return nil, err
	}

	resp := &QuoteResponse{AmountOut: out.String()}
	if req.SlippageBps != nil {
		if err := checkBps("slippageBps", *req.SlippageBps); err != nil {
			return nil, err
		}
		minOut, err := amm.ApplySlippage(out, *req.SlippageBps)
		if err != nil {
			return nil, err
		}
		resp.MinAmountOut = minOut.String()
	}

	s.recordQuote(source, "", amountIn, reserveIn, reserveOut, *req.FeeBps, out)
	return resp, nil
}

// BuildSwap validates req and builds the swap instruction. Every attempt is
// audited, including failures.
func (s *Service) BuildSwap(ctx context.Context, source string, req BuildSwapRequest) (*dexai.Instruction, error) {
	start := time.Now()

	opts, err := s.buildOptions(ctx, req)
	var ix *dexai.Instruction
	if err == nil {
		ix, err = s.builder.Build(ctx, req.SwapRequest, opts)
	}

	s.recordBuild(source, req, opts.VerifyAccounts, err, time.Since(start))
	return ix, err
}

func (s *Service) buildOptions(ctx context.Context, req BuildSwapRequest) (dexai.BuildOptions, error) {
	mints, err := dexai.ParseExpectedMints(req.ExpectedMints)
	if err != nil {
		return dexai.BuildOptions{}, err
	}

	verify := s.verifyByDefault
	if s.flags != nil {
		verify = s.flags.Enabled(ctx, flags.VerifyAccounts, verify)
	}
	if len(mints) > 0 {
		verify = true
	}
	if req.VerifyAccounts != nil {
		verify = *req.VerifyAccounts
	}

	return dexai.BuildOptions{VerifyAccounts: verify, ExpectedMints: mints}, nil
}

// Pool returns the live state of the pool at address.
func (s *Service) Pool(ctx context.Context, address string) (*pools.PoolState, error) {
	if s.pools == nil {
		return nil, fmt.Errorf("pool reader %w", apierr.ErrUnavailable)
	}
	pk, err := dexai.ParseIdentity("pool", address)
	if err != nil {
		return nil, err
	}
	return s.pools.Fetch(ctx, pk)
}

// PoolQuote prices req against the pool's live reserves and fee.
func (s *Service) PoolQuote(ctx context.Context, source, address string, req PoolQuoteRequest) (*pools.PoolQuote, error) {
	amountIn, err := parseAmount("amountIn", req.AmountIn)
	if err != nil {
		return nil, err
	}
	if (req.AToB == nil) == (req.InputMint == "") {
		return nil, apierr.Field("aToB", errors.New("set exactly one of aToB or inputMint"))
	}

	slippage := s.defaultSlippage
	if req.SlippageBps != nil {
		slippage = *req.SlippageBps
	}
	if err := checkBps("slippageBps", slippage); err != nil {
		return nil, err
	}

	var inputMint solana.PublicKey
	if req.InputMint != "" {
		if inputMint, err = dexai.ParseIdentity("inputMint", req.InputMint); err != nil {
			return nil, err
		}
	}

	state, err := s.Pool(ctx, address)
	if err != nil {
		return nil, err
	}

	var aToB bool
	if req.AToB != nil {
		aToB = *req.AToB
	} else if aToB, err = state.Account.Direction(inputMint); err != nil {
		return nil, apierr.Field("inputMint", err)
	}

	q, err := pools.QuoteState(state, amountIn, aToB, slippage)
	if err != nil {
		return nil, err
	}

	s.recordQuote(source, state.Address.String(), amountIn, q.ReserveIn, q.ReserveOut, q.FeeBps, q.AmountOut)
	return q, nil
}

// Wait blocks until pending audit writes finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) recordQuote(source, pool string, amountIn, reserveIn, reserveOut *big.Int, feeBps int64, out *big.Int) {
	ev := models.NewQuoteEvent(source)
	ev.Pool = pool
	ev.AmountIn = amountIn.String()
	ev.ReserveIn = reserveIn.String()
	ev.ReserveOut = reserveOut.String()
	ev.FeeBps = feeBps
	ev.AmountOut = out.String()

	s.record("quote", func(ctx context.Context, sink storage.AuditSink) error {
		return sink.RecordQuote(ctx, ev)
	})
}

func (s *Service) recordBuild(source string, req BuildSwapRequest, verified bool, err error, took time.Duration) {
	ev := models.NewBuildEvent(source)
	ev.ProgramID = req.ProgramID
	ev.Pool = req.Pool
	ev.User = req.User
	ev.AmountIn = req.AmountIn
	ev.MinAmountOut = req.MinAmountOut
	ev.Verified = verified
	ev.DurationMs = took.Milliseconds()
	ev.Outcome = models.OutcomeOK
	if err != nil {
		ev.Outcome = dexai.KindName(err)
		switch {
		case ev.Outcome != "":
		case errors.Is(err, context.Canceled):
			ev.Outcome = models.OutcomeCanceled
		default:
			ev.Outcome = "Error"
		}
		ev.Field = dexai.FieldOf(err)
	}

	s.record("build", func(ctx context.Context, sink storage.AuditSink) error {
		return sink.RecordBuild(ctx, ev)
	})
}

// record writes an audit event in the background. Failures are logged and
// never reach the caller.
func (s *Service) record(event string, write func(context.Context, storage.AuditSink) error) {
	if s.audit == nil {
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.auditTimeout)
		defer cancel()

		if s.flags != nil && !s.flags.Enabled(ctx, flags.AuditEnabled, flags.Known[flags.AuditEnabled]) {
			return
		}
		if err := write(ctx, s.audit); err != nil {
			s.logger.WithError(err).WithField("event", event).Warn("audit write failed")
		}
	}()
}

func parseAmount(field, value string) (*big.Int, error) {
	v, err := amm.ParseAmount(field, value)
	if err != nil {
		return nil, apierr.Field(field, err)
	}
	return v, nil
}

func checkBps(field string, v int64) error {
	if v < 0 || v > amm.BpsDenominator {
		return apierr.Field(field, fmt.Errorf("%w: %s must be within [0, %d], got %d",
			amm.ErrInvalidParameter, field, amm.BpsDenominator, v))
	}
	return nil
}

// NewPoolResponse renders a pool state for the wire.
func NewPoolResponse(s *pools.PoolState) PoolResponse {
	return PoolResponse{
		Address:   s.Address.String(),
		Authority: s.Account.Authority.String(),
		MintA:     s.Account.MintA.String(),
		MintB:     s.Account.MintB.String(),
		VaultA:    s.Account.VaultA.String(),
		VaultB:    s.Account.VaultB.String(),
		FeeBps:    s.Account.FeeBps,
		ReserveA:  strconv.FormatUint(s.ReserveA, 10),
		ReserveB:  strconv.FormatUint(s.ReserveB, 10),
		Slot:      s.Slot,
		FetchedAt: s.FetchedAt.Format(time.RFC3339Nano),
		Cached:    s.Cached,
	}
}

// NewPoolQuoteResponse renders a pool quote for the wire.
func NewPoolQuoteResponse(q *pools.PoolQuote) PoolQuoteResponse {
	return PoolQuoteResponse{
		Pool:         q.Pool.String(),
		AToB:         q.AToB,
		InputMint:    q.InputMint.String(),
		OutputMint:   q.OutputMint.String(),
		AmountIn:     q.AmountIn.String(),
		AmountOut:    q.AmountOut.String(),
		MinAmountOut: q.MinAmountOut.String(),
		FeeBps:       q.FeeBps,
		ReserveIn:    q.ReserveIn.String(),
		ReserveOut:   q.ReserveOut.String(),
		PriceImpact:  q.PriceImpact,
		Slot:         q.Slot,
	}
}
