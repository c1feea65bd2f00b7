package chain

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/dexai"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/rpc"
)

// TokenAccountSize is the length of an SPL token account without extensions.
const TokenAccountSize = 165

// ErrNotTokenAccount is returned when account data cannot be read as an SPL
// token account.
var ErrNotTokenAccount = errors.New("not a token account")

// AccountReader is the part of the rpc client the chain package needs.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, address solana.PublicKey) (*rpc.AccountInfo, error)
	GetMultipleAccounts(ctx context.Context, addresses ...solana.PublicKey) ([]*rpc.AccountInfo, error)
}

// TokenAccountVerifier resolves token accounts over RPC for the builder's
// existence check.
type TokenAccountVerifier struct {
	reader AccountReader
	logger *logrus.Logger
}

var _ dexai.AccountVerifier = (*TokenAccountVerifier)(nil)

func NewTokenAccountVerifier(reader AccountReader, logger *logrus.Logger) *TokenAccountVerifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &TokenAccountVerifier{reader: reader, logger: logger}
}

// LookupTokenAccount returns nil, nil when nothing usable as a token account
// lives at address.
func (v *TokenAccountVerifier) LookupTokenAccount(ctx context.Context, address solana.PublicKey) (*dexai.TokenAccount, error) {
	info, err := v.reader.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	acc, err := DecodeTokenAccount(info)
	if errors.Is(err, ErrNotTokenAccount) {
		v.logger.WithFields(logrus.Fields{
			"address": address.String(),
			"owner":   info.Owner.String(),
			"size":    len(info.Data),
		}).Debug("account exists but is not a token account")
		return nil, nil
	}
	return acc, err
}

// DecodeTokenAccount reads an SPL token account (classic or Token-2022; the
// extension tail is ignored).
func DecodeTokenAccount(info *rpc.AccountInfo) (*dexai.TokenAccount, error) {
	if len(info.Data) < TokenAccountSize {
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrNotTokenAccount, info.Address, len(info.Data))
	}

	var acc token.Account
	if err := bin.NewBinDecoder(info.Data[:TokenAccountSize]).Decode(&acc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotTokenAccount, info.Address, err)
	}

	return &dexai.TokenAccount{
		Address: info.Address,
		Program: info.Owner,
		Mint:    acc.Mint,
		Owner:   acc.Owner,
		Amount:  acc.Amount,
	}, nil
}
