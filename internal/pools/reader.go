package pools

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/amm"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/chain"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/dexai"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/storage"
)

var (
	ErrPoolNotFound  = errors.New("pool not found")
	ErrWrongProgram  = errors.New("pool is not owned by the configured program")
	ErrVaultMismatch = errors.New("pool vault does not match pool state")
)

// DefaultCacheTTL keeps reserves fresh enough for display quotes.
const DefaultCacheTTL = 2 * time.Second

// PoolState is a pool account together with its vault balances.
type PoolState struct {
	Address   solana.PublicKey
	Account   dexai.PoolAccount
	ReserveA  uint64
	ReserveB  uint64
	Slot      uint64
	FetchedAt time.Time
	Cached    bool
}

// Reserves returns (reserveIn, reserveOut) for the given direction.
func (s *PoolState) Reserves(aToB bool) (*big.Int, *big.Int) {
	a := new(big.Int).SetUint64(s.ReserveA)
	b := new(big.Int).SetUint64(s.ReserveB)
	if aToB {
		return a, b
	}
	return b, a
}

type ReaderConfig struct {
	Accounts chain.AccountReader
	Cache    storage.PoolCache // optional
	CacheTTL time.Duration
	// ProgramID, when set, must own every pool account read.
	ProgramID solana.PublicKey
	Logger    *logrus.Logger
}

// Reader loads pool state over RPC, optionally through a cache.
type Reader struct {
	accounts  chain.AccountReader
	cache     storage.PoolCache
	ttl       time.Duration
	programID solana.PublicKey
	logger    *logrus.Logger
}

func NewReader(cfg ReaderConfig) *Reader {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &Reader{
		accounts:  cfg.Accounts,
		cache:     cfg.Cache,
		ttl:       cfg.CacheTTL,
		programID: cfg.ProgramID,
		logger:    cfg.Logger,
	}
}

// Fetch returns the pool state, served from cache when a fresh entry exists.
func (r *Reader) Fetch(ctx context.Context, pool solana.PublicKey) (*PoolState, error) {
	if r.cache != nil {
		snap, err := r.cache.GetPool(ctx, pool.String())
		switch {
		case err == nil:
			state, convErr := fromSnapshot(snap)
			if convErr == nil {
				state.Cached = true
				return state, nil
			}
			r.logger.WithError(convErr).WithField("pool", pool.String()).Warn("discarding bad pool cache entry")
		case !errors.Is(err, storage.ErrCacheMiss):
			r.logger.WithError(err).WithField("pool", pool.String()).Warn("pool cache read failed")
		}
	}

	state, err := r.fetchChain(ctx, pool)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetPool(ctx, toSnapshot(state), r.ttl); err != nil {
			r.logger.WithError(err).WithField("pool", pool.String()).Warn("pool cache write failed")
		}
	}
	return state, nil
}

func (r *Reader) fetchChain(ctx context.Context, pool solana.PublicKey) (*PoolState, error) {
	info, err := r.accounts.GetAccountInfo(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("read pool %s: %w", pool, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, pool)
	}
	if !r.programID.IsZero() && !info.Owner.Equals(r.programID) {
		return nil, fmt.Errorf("%w: %s is owned by %s", ErrWrongProgram, pool, info.Owner)
	}

	acc, err := dexai.DecodePoolAccount(info.Data)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", pool, err)
	}

	vaults, err := r.accounts.GetMultipleAccounts(ctx, acc.VaultA, acc.VaultB)
	if err != nil {
		return nil, fmt.Errorf("read vaults of %s: %w", pool, err)
	}

	reserves := [2]uint64{}
	mints := [2]solana.PublicKey{acc.MintA, acc.MintB}
	names := [2]string{"vaultA", "vaultB"}
	for i, v := range vaults {
		if v == nil {
			return nil, fmt.Errorf("%w: %s missing", ErrVaultMismatch, names[i])
		}
		tok, err := chain.DecodeTokenAccount(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", names[i], err)
		}
		if !tok.Mint.Equals(mints[i]) {
			return nil, fmt.Errorf("%w: %s holds mint %s, pool expects %s", ErrVaultMismatch, names[i], tok.Mint, mints[i])
		}
		reserves[i] = tok.Amount
	}

	r.logger.WithFields(logrus.Fields{
		"pool":      pool.String(),
		"reserve_a": reserves[0],
		"reserve_b": reserves[1],
		"fee_bps":   acc.FeeBps,
	}).Debug("fetched pool state")

	return &PoolState{
		Address:   pool,
		Account:   *acc,
		ReserveA:  reserves[0],
		ReserveB:  reserves[1],
		Slot:      info.Slot,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// PoolQuote is a quote computed against live pool reserves.
type PoolQuote struct {
	Pool         solana.PublicKey
	AToB         bool
	InputMint    solana.PublicKey
	OutputMint   solana.PublicKey
	AmountIn     *big.Int
	AmountOut    *big.Int
	MinAmountOut *big.Int
	FeeBps       int64
	ReserveIn    *big.Int
	ReserveOut   *big.Int
	PriceImpact  float64
	Slot         uint64
}

// Quote prices amountIn against the pool's current reserves and fee, and
// derives a minAmountOut from slippageBps.
func (r *Reader) Quote(ctx context.Context, pool solana.PublicKey, amountIn *big.Int, aToB bool, slippageBps int64) (*PoolQuote, error) {
	state, err := r.Fetch(ctx, pool)
	if err != nil {
		return nil, err
	}
	return QuoteState(state, amountIn, aToB, slippageBps)
}

// QuoteState is Quote against an already fetched state.
func QuoteState(state *PoolState, amountIn *big.Int, aToB bool, slippageBps int64) (*PoolQuote, error) {
	reserveIn, reserveOut := state.Reserves(aToB)
	fee := int64(state.Account.FeeBps)

	out, err := amm.Quote(amountIn, reserveIn, reserveOut, fee)
	if err != nil {
		return nil, err
	}
	minOut, err := amm.ApplySlippage(out, slippageBps)
	if err != nil {
		return nil, err
	}

	in, outMint := state.Account.MintA, state.Account.MintB
	if !aToB {
		in, outMint = outMint, in
	}

	return &PoolQuote{
		Pool:         state.Address,
		AToB:         aToB,
		InputMint:    in,
		OutputMint:   outMint,
		AmountIn:     new(big.Int).Set(amountIn),
		AmountOut:    out,
		MinAmountOut: minOut,
		FeeBps:       fee,
		ReserveIn:    reserveIn,
		ReserveOut:   reserveOut,
		PriceImpact:  amm.PriceImpact(amountIn, out, reserveIn, reserveOut),
		Slot:         state.Slot,
	}, nil
}

func toSnapshot(s *PoolState) *models.PoolSnapshot {
	return &models.PoolSnapshot{
		Address:   s.Address.String(),
		Authority: s.Account.Authority.String(),
		MintA:     s.Account.MintA.String(),
		MintB:     s.Account.MintB.String(),
		VaultA:    s.Account.VaultA.String(),
		VaultB:    s.Account.VaultB.String(),
		FeeBps:    s.Account.FeeBps,
		ReserveA:  s.ReserveA,
		ReserveB:  s.ReserveB,
		Slot:      s.Slot,
		FetchedAt: s.FetchedAt,
	}
}

func fromSnapshot(snap *models.PoolSnapshot) (*PoolState, error) {
	keys := []string{snap.Address, snap.Authority, snap.MintA, snap.MintB, snap.VaultA, snap.VaultB}
	parsed := make([]solana.PublicKey, len(keys))
	for i, k := range keys {
		pk, err := solana.PublicKeyFromBase58(k)
		if err != nil {
			return nil, fmt.Errorf("snapshot key %q: %w", k, err)
		}
		parsed[i] = pk
	}

	return &PoolState{
		Address: parsed[0],
		Account: dexai.PoolAccount{
			Authority: parsed[1],
			MintA:     parsed[2],
			MintB:     parsed[3],
			VaultA:    parsed[4],
			VaultB:    parsed[5],
			FeeBps:    snap.FeeBps,
		},
		ReserveA:  snap.ReserveA,
		ReserveB:  snap.ReserveB,
		Slot:      snap.Slot,
		FetchedAt: snap.FetchedAt,
	}, nil
}
