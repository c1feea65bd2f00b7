// Package chaintest provides in-memory chain fixtures for tests.
package chaintest

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/rpc"
)

// TokenAccountData lays out an initialized SPL token account with no
// delegate, not native and no close authority.
func TokenAccountData(mint, owner solana.PublicKey, amount uint64) []byte {
	data := make([]byte, 165)
	copy(data[0:32], mint[:])
	copy(data[32:64], owner[:])
	binary.LittleEndian.PutUint64(data[64:72], amount)
	// delegate COption (4+32) stays zero
	data[108] = 1 // state: initialized
	// isNative COption (4+8), delegatedAmount, closeAuthority COption stay zero
	return data
}

// Ledger is a fake AccountReader backed by a map.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*rpc.AccountInfo

	Err   error
	Calls atomic.Int32
}

func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[solana.PublicKey]*rpc.AccountInfo)}
}

func (l *Ledger) Put(address, owner solana.PublicKey, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[address] = &rpc.AccountInfo{Address: address, Owner: owner, Lamports: 1, Data: data}
}

// PutTokenAccount stores a token account owned by the classic token program.
func (l *Ledger) PutTokenAccount(address, mint, authority solana.PublicKey, amount uint64) {
	l.Put(address, solana.TokenProgramID, TokenAccountData(mint, authority, amount))
}

func (l *Ledger) Delete(address solana.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, address)
}

func (l *Ledger) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*rpc.AccountInfo, error) {
	l.Calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[address], nil
}

func (l *Ledger) GetMultipleAccounts(ctx context.Context, addresses ...solana.PublicKey) ([]*rpc.AccountInfo, error) {
	l.Calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*rpc.AccountInfo, len(addresses))
	for i, a := range addresses {
		out[i] = l.accounts[a]
	}
	return out, nil
}
