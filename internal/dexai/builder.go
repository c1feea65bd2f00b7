package dexai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultBuildTimeout bounds the network part of a build when the builder is
// not configured with its own timeout.
const DefaultBuildTimeout = 10 * time.Second

// TokenAccount is the subset of an on-chain token account the builder checks.
type TokenAccount struct {
	Address solana.PublicKey
	Program solana.PublicKey // account owner, i.e. the token program
	Mint    solana.PublicKey
	Owner   solana.PublicKey // token authority
	Amount  uint64
}

// AccountVerifier looks up token accounts on chain. A nil account with a nil
// error means the account does not exist.
type AccountVerifier interface {
	LookupTokenAccount(ctx context.Context, address solana.PublicKey) (*TokenAccount, error)
}

// BuildOptions toggles the optional steps of the pipeline.
type BuildOptions struct {
	// VerifyAccounts checks that userSource, userDestination, vaultA and
	// vaultB exist and are owned by tokenProgram.
	VerifyAccounts bool
	// ExpectedMints optionally pins the mint of any of those accounts.
	// Only consulted when VerifyAccounts is set.
	ExpectedMints map[string]solana.PublicKey
}

// BuilderConfig holds the builder's collaborators.
type BuilderConfig struct {
	Encoder  InstructionEncoder // defaults to AnchorEncoder
	Verifier AccountVerifier    // required only for VerifyAccounts
	Timeout  time.Duration
	Logger   *logrus.Logger
}

// Builder validates swap requests and delegates instruction assembly to an
// InstructionEncoder. It holds no per-request state.
type Builder struct {
	encoder  InstructionEncoder
	verifier AccountVerifier
	timeout  time.Duration
	logger   *logrus.Logger
}

func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.Encoder == nil {
		cfg.Encoder = NewAnchorEncoder()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBuildTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Builder{
		encoder:  cfg.Encoder,
		verifier: cfg.Verifier,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
}

// Build validates req and returns the swap instruction. Nothing is retried.
func (b *Builder) Build(ctx context.Context, req SwapRequest, opts BuildOptions) (*Instruction, error) {
	params, err := ParseSwapRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if opts.VerifyAccounts {
		if err := b.verifyAccounts(ctx, params, opts.ExpectedMints); err != nil {
			return nil, err
		}
	}

	raw, err := b.encoder.BuildInstruction(ctx, params.ProgramID, SwapSchema, params.Accounts, params.Args)
	if err != nil {
		return nil, stepError(ctx, fmt.Sprintf("build %s instruction for program %s", SwapSchema.Name, params.ProgramID), err)
	}

	ix, err := fromSolana(raw, SwapSchema)
	if err != nil {
		return nil, &FieldError{Kind: ErrExternalFrameworkFailure, Op: "read built instruction", Err: err}
	}

	b.logger.WithFields(logrus.Fields{
		"program":        params.ProgramID.String(),
		"pool":           params.Account(FieldPool).String(),
		"user":           params.Account(FieldUser).String(),
		"amount_in":      params.Args.AmountIn,
		"min_amount_out": params.Args.MinAmountOut,
		"verified":       opts.VerifyAccounts,
	}).Debug("built swap instruction")

	return ix, nil
}

func (b *Builder) verifyAccounts(ctx context.Context, params *SwapParams, expected map[string]solana.PublicKey) error {
	if b.verifier == nil {
		return ErrVerifierUnavailable
	}

	found := make([]*TokenAccount, len(TokenAccountFields))
	g, gctx := errgroup.WithContext(ctx)
	for i, field := range TokenAccountFields {
		g.Go(func() error {
			acc, err := b.verifier.LookupTokenAccount(gctx, params.Account(field))
			if err != nil {
				return fmt.Errorf("lookup %s: %w", field, err)
			}
			found[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stepError(ctx, "verify token accounts", err)
	}

	tokenProgram := params.Account(FieldTokenProgram)
	for i, field := range TokenAccountFields {
		addr := params.Account(field)
		acc := found[i]
		if acc == nil {
			return &FieldError{Kind: ErrAccountNotFound, Field: field, Value: addr.String()}
		}
		if !acc.Program.Equals(tokenProgram) {
			return &FieldError{
				Kind:  ErrAccountNotFound,
				Field: field,
				Value: addr.String(),
				Err:   fmt.Errorf("owned by %s, not token program %s", acc.Program, tokenProgram),
			}
		}
		if want, ok := expected[field]; ok && !acc.Mint.Equals(want) {
			return &FieldError{
				Kind:     ErrMintMismatch,
				Field:    field,
				Value:    addr.String(),
				Expected: want.String(),
				Actual:   acc.Mint.String(),
			}
		}
	}
	return nil
}

// stepError classifies the failure of a step that may wait on the network.
// A caller that went away gets context.Canceled back, not a framework
// failure.
func stepError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &FieldError{Kind: ErrNetworkTimeout, Op: op, Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%s: %w", op, context.Canceled)
	}
	return &FieldError{Kind: ErrExternalFrameworkFailure, Op: op, Err: err}
}

// AccountKey is one account reference of a built instruction.
type AccountKey struct {
	PublicKey  solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a constructed, unsigned program instruction.
type Instruction struct {
	ProgramID solana.PublicKey
	Keys      []AccountKey
	Data      []byte
}

// WireAccountKey is the JSON form of AccountKey.
type WireAccountKey struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// WireInstruction is the JSON form of Instruction, data base64 encoded.
type WireInstruction struct {
	ProgramID string           `json:"programId"`
	Keys      []WireAccountKey `json:"keys"`
	Data      string           `json:"data"`
}

func (ix *Instruction) Wire() WireInstruction {
	keys := make([]WireAccountKey, 0, len(ix.Keys))
	for _, k := range ix.Keys {
		keys = append(keys, WireAccountKey{
			Pubkey:     k.PublicKey.String(),
			IsSigner:   k.IsSigner,
			IsWritable: k.IsWritable,
		})
	}
	return WireInstruction{
		ProgramID: ix.ProgramID.String(),
		Keys:      keys,
		Data:      base64.StdEncoding.EncodeToString(ix.Data),
	}
}

// Solana converts the instruction back into a solana-go instruction so it
// can be placed in a transaction.
func (ix *Instruction) Solana() solana.Instruction {
	metas := make(solana.AccountMetaSlice, 0, len(ix.Keys))
	for _, k := range ix.Keys {
		metas = append(metas, solana.NewAccountMeta(k.PublicKey, k.IsWritable, k.IsSigner))
	}
	return solana.NewInstruction(ix.ProgramID, metas, ix.Data)
}

func fromSolana(raw solana.Instruction, schema InstructionSchema) (*Instruction, error) {
	if raw == nil {
		return nil, errors.New("encoder returned no instruction")
	}

	data, err := raw.Data()
	if err != nil {
		return nil, fmt.Errorf("instruction data: %w", err)
	}

	metas := raw.Accounts()
	if len(metas) != len(schema.Accounts) {
		return nil, fmt.Errorf("%s: got %d accounts, schema declares %d", schema.Name, len(metas), len(schema.Accounts))
	}

	keys := make([]AccountKey, 0, len(metas))
	for _, m := range metas {
		keys = append(keys, AccountKey{PublicKey: m.PublicKey, IsSigner: m.IsSigner, IsWritable: m.IsWritable})
	}

	return &Instruction{ProgramID: raw.ProgramID(), Keys: keys, Data: data}, nil
}
