package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/apierr"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/chain"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/chain/chaintest"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/dexai"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/flags"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/pools"
)

func key(n byte) solana.PublicKey {
	var pk solana.PublicKey
	for i := range pk {
		pk[i] = n
	}
	return pk
}

type staticFlags map[string]bool

func (f staticFlags) Enabled(_ context.Context, key string, fallback bool) bool {
	if v, ok := f[key]; ok {
		return v
	}
	return fallback
}

type recordingSink struct {
	mu     sync.Mutex
	quotes []*models.QuoteEvent
	builds []*models.BuildEvent
	err    error
}

func (s *recordingSink) RecordQuote(_ context.Context, ev *models.QuoteEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append(s.quotes, ev)
	return s.err
}

func (s *recordingSink) RecordBuild(_ context.Context, ev *models.BuildEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds = append(s.builds, ev)
	return s.err
}

func (s *recordingSink) Ping(context.Context) error { return nil }
func (s *recordingSink) Close() error               { return nil }

func swapRequest() BuildSwapRequest {
	return BuildSwapRequest{SwapRequest: dexai.SwapRequest{
		ProgramID:       key(1).String(),
		Pool:            key(2).String(),
		User:            key(3).String(),
		UserSource:      key(4).String(),
		UserDestination: key(5).String(),
		VaultA:          key(6).String(),
		VaultB:          key(7).String(),
		TokenProgram:    solana.TokenProgramID.String(),
		AmountIn:        "1000",
		MinAmountOut:    "900",
	}}
}

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T, ledger *chaintest.Ledger, cfg Config) *Service {
	t.Helper()
	if cfg.Builder == nil {
		cfg.Builder = dexai.NewBuilder(dexai.BuilderConfig{
			Verifier: chain.NewTokenAccountVerifier(ledger, nil),
			Timeout:  time.Second,
		})
	}
	return New(cfg)
}

func TestBuildSwap_VerifyPrecedence(t *testing.T) {
	ledger := chaintest.NewLedger()
	// None of the token accounts exist, so any verified build fails and an
	// unverified one succeeds without touching the ledger.

	cases := []struct {
		name     string
		defaults bool
		flags    staticFlags
		mutate   func(*BuildSwapRequest)
		verified bool
	}{
		{name: "off by default", verified: false},
		{name: "config default", defaults: true, verified: true},
		{name: "flag overrides default", defaults: true, flags: staticFlags{flags.VerifyAccounts: false}, verified: false},
		{name: "flag enables", flags: staticFlags{flags.VerifyAccounts: true}, verified: true},
		{
			name:     "expected mints enable",
			mutate:   func(r *BuildSwapRequest) { r.ExpectedMints = map[string]string{"vaultA": key(8).String()} },
			verified: true,
		},
		{
			name:     "explicit request wins over flag",
			flags:    staticFlags{flags.VerifyAccounts: true},
			mutate:   func(r *BuildSwapRequest) { r.VerifyAccounts = ptr(false) },
			verified: false,
		},
		{
			name:     "explicit false wins over expected mints",
			mutate: func(r *BuildSwapRequest) {
				r.VerifyAccounts = ptr(false)
				r.ExpectedMints = map[string]string{"vaultA": key(8).String()}
			},
			verified: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{VerifyByDefault: tc.defaults}
			if tc.flags != nil {
				cfg.Flags = tc.flags
			}
			svc := newService(t, ledger, cfg)

			req := swapRequest()
			if tc.mutate != nil {
				tc.mutate(&req)
			}

			ix, err := svc.BuildSwap(context.Background(), models.SourceTool, req)
			if tc.verified {
				assert.ErrorIs(t, err, dexai.ErrAccountNotFound)
				assert.Equal(t, dexai.FieldUserSource, dexai.FieldOf(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, ix.Keys, 7)
		})
	}
}

func TestBuildSwap_BadExpectedMints(t *testing.T) {
	svc := newService(t, chaintest.NewLedger(), Config{})
	req := swapRequest()
	req.ExpectedMints = map[string]string{"pool": key(8).String()}

	_, err := svc.BuildSwap(context.Background(), models.SourceTool, req)
	require.Error(t, err)
	status, resp := apierr.Classify(err)
	assert.Equal(t, 400, status)
	assert.Equal(t, "expectedMints.pool", resp.Field)
}

func TestBuildSwap_AuditsEveryAttempt(t *testing.T) {
	sink := &recordingSink{}
	svc := newService(t, chaintest.NewLedger(), Config{Audit: sink})

	_, err := svc.BuildSwap(context.Background(), models.SourceHTTP, swapRequest())
	require.NoError(t, err)

	bad := swapRequest()
	bad.AmountIn = "0"
	_, err = svc.BuildSwap(context.Background(), models.SourceTool, bad)
	require.Error(t, err)

	svc.Wait()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.builds, 2)

	byOutcome := map[string]*models.BuildEvent{}
	for _, ev := range sink.builds {
		byOutcome[ev.Outcome] = ev
	}
	ok := byOutcome[models.OutcomeOK]
	require.NotNil(t, ok)
	assert.Equal(t, models.SourceHTTP, ok.Source)
	assert.Equal(t, key(2).String(), ok.Pool)
	assert.Equal(t, "1000", ok.AmountIn)
	assert.False(t, ok.Verified)

	failed := byOutcome["InvalidAmount"]
	require.NotNil(t, failed)
	assert.Equal(t, models.SourceTool, failed.Source)
	assert.Equal(t, dexai.FieldAmountIn, failed.Field)
}

func TestBuildSwap_CancelledCallerAudited(t *testing.T) {
	sink := &recordingSink{}
	svc := newService(t, chaintest.NewLedger(), Config{Audit: sink})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := swapRequest()
	req.VerifyAccounts = ptr(true)
	_, err := svc.BuildSwap(ctx, models.SourceHTTP, req)
	require.ErrorIs(t, err, context.Canceled)

	status, resp := apierr.Classify(err)
	assert.Equal(t, apierr.StatusClientClosedRequest, status)
	assert.Equal(t, apierr.CodeCanceled, resp.Code)

	svc.Wait()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.builds, 1)
	assert.Equal(t, models.OutcomeCanceled, sink.builds[0].Outcome)
}

func TestAudit_FailureDoesNotReachCaller(t *testing.T) {
	sink := &recordingSink{err: errors.New("clickhouse down")}
	svc := newService(t, chaintest.NewLedger(), Config{Audit: sink})

	resp, err := svc.Quote(context.Background(), models.SourceHTTP, QuoteRequest{
		AmountIn: "10", ReserveIn: "100", ReserveOut: "100", FeeBps: ptr(int64(0)),
	})
	require.NoError(t, err)
	assert.Equal(t, "9", resp.AmountOut)

	svc.Wait()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.quotes, 1)
}

func TestAudit_DisabledByFlag(t *testing.T) {
	sink := &recordingSink{}
	svc := newService(t, chaintest.NewLedger(), Config{
		Audit: sink,
		Flags: staticFlags{flags.AuditEnabled: false},
	})

	_, err := svc.BuildSwap(context.Background(), models.SourceHTTP, swapRequest())
	require.NoError(t, err)
	svc.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Empty(t, sink.builds)
}

func TestQuote(t *testing.T) {
	svc := newService(t, chaintest.NewLedger(), Config{})

	resp, err := svc.Quote(context.Background(), models.SourceHTTP, QuoteRequest{
		AmountIn:    "1000000",
		ReserveIn:   "10000000000",
		ReserveOut:  "20000000000",
		FeeBps:      ptr(int64(30)),
		SlippageBps: ptr(int64(100)),
	})
	require.NoError(t, err)
	assert.Equal(t, "1993801", resp.AmountOut)
	assert.Equal(t, "1973862", resp.MinAmountOut)

	// Amounts beyond u64 are fine for quoting.
	resp, err = svc.Quote(context.Background(), models.SourceHTTP, QuoteRequest{
		AmountIn:   "100000000000000000000",
		ReserveIn:  "100000000000000000000",
		ReserveOut: "100000000000000000000",
		FeeBps:     ptr(int64(0)),
	})
	require.NoError(t, err)
	assert.Equal(t, "50000000000000000000", resp.AmountOut)
	assert.Empty(t, resp.MinAmountOut)

	_, err = svc.Quote(context.Background(), models.SourceHTTP, QuoteRequest{
		AmountIn: "1", ReserveIn: "1", ReserveOut: "1", FeeBps: ptr(int64(1)), SlippageBps: ptr(int64(-1)),
	})
	var fe *apierr.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "slippageBps", fe.Field)
}

func poolLedger(t *testing.T) *chaintest.Ledger {
	t.Helper()
	ledger := chaintest.NewLedger()
	data, err := dexai.PoolAccount{
		Authority: key(10),
		MintA:     key(11),
		MintB:     key(12),
		VaultA:    key(13),
		VaultB:    key(14),
		FeeBps:    30,
	}.Encode()
	require.NoError(t, err)
	ledger.Put(key(2), key(1), data)
	ledger.PutTokenAccount(key(13), key(11), key(10), 10_000_000_000)
	ledger.PutTokenAccount(key(14), key(12), key(10), 20_000_000_000)
	return ledger
}

func TestPoolQuote(t *testing.T) {
	ledger := poolLedger(t)
	sink := &recordingSink{}
	svc := newService(t, ledger, Config{
		Pools:              pools.NewReader(pools.ReaderConfig{Accounts: ledger, ProgramID: key(1)}),
		Audit:              sink,
		DefaultSlippageBps: 100,
	})
	ctx := context.Background()

	q, err := svc.PoolQuote(ctx, models.SourceCLI, key(2).String(), PoolQuoteRequest{
		AmountIn:  "1000000",
		InputMint: key(11).String(),
	})
	require.NoError(t, err)
	assert.True(t, q.AToB)
	assert.Equal(t, "1993801", q.AmountOut.String())
	assert.Equal(t, "1973862", q.MinAmountOut.String(), "default slippage applies")

	q, err = svc.PoolQuote(ctx, models.SourceCLI, key(2).String(), PoolQuoteRequest{
		AmountIn:  "1000000",
		InputMint: key(12).String(),
	})
	require.NoError(t, err)
	assert.False(t, q.AToB)
	assert.Equal(t, key(11), q.OutputMint)

	q, err = svc.PoolQuote(ctx, models.SourceCLI, key(2).String(), PoolQuoteRequest{
		AmountIn: "1000000",
		AToB:     ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "20000000000", q.ReserveIn.String())

	_, err = svc.PoolQuote(ctx, models.SourceCLI, key(2).String(), PoolQuoteRequest{
		AmountIn:  "1",
		InputMint: key(9).String(),
	})
	var fe *apierr.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "inputMint", fe.Field)

	_, err = svc.PoolQuote(ctx, models.SourceCLI, key(2).String(), PoolQuoteRequest{
		AmountIn:  "1",
		AToB:      ptr(true),
		InputMint: key(11).String(),
	})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "aToB", fe.Field)

	svc.Wait()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.quotes, 3)
	assert.Equal(t, key(2).String(), sink.quotes[0].Pool)
}

func TestPool_Unavailable(t *testing.T) {
	svc := newService(t, chaintest.NewLedger(), Config{})
	_, err := svc.Pool(context.Background(), key(2).String())
	assert.ErrorIs(t, err, apierr.ErrUnavailable)

	status, resp := apierr.Classify(err)
	assert.Equal(t, 503, status)
	assert.Equal(t, apierr.CodeUnavailable, resp.Code)
}

func TestNewPoolResponse(t *testing.T) {
	ledger := poolLedger(t)
	r := pools.NewReader(pools.ReaderConfig{Accounts: ledger})
	state, err := r.Fetch(context.Background(), key(2))
	require.NoError(t, err)

	resp := NewPoolResponse(state)
	assert.Equal(t, key(2).String(), resp.Address)
	assert.Equal(t, key(11).String(), resp.MintA)
	assert.Equal(t, "20000000000", resp.ReserveB)
	assert.Equal(t, uint16(30), resp.FeeBps)
	assert.False(t, resp.Cached)
}
