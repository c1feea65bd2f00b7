package dexai

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// PoolDiscriminator is sha256("account:Pool")[:8].
var PoolDiscriminator = [8]byte{0xf1, 0x9a, 0x6d, 0x04, 0x11, 0xb1, 0x6d, 0xbc}

// PoolAccountSize is the discriminator plus five keys and the u16 fee.
const PoolAccountSize = 8 + 5*32 + 2

var ErrNotPoolAccount = errors.New("account is not a dex-ai pool")

// PoolAccount is the on-chain state of a liquidity pool.
type PoolAccount struct {
	Authority solana.PublicKey `json:"authority"`
	MintA     solana.PublicKey `json:"mintA"`
	MintB     solana.PublicKey `json:"mintB"`
	VaultA    solana.PublicKey `json:"vaultA"`
	VaultB    solana.PublicKey `json:"vaultB"`
	FeeBps    uint16           `json:"feeBps"`
}

// DecodePoolAccount decodes raw account data, checking the discriminator.
func DecodePoolAccount(data []byte) (*PoolAccount, error) {
	if len(data) < PoolAccountSize {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrNotPoolAccount, len(data), PoolAccountSize)
	}
	if !bytes.Equal(data[:8], PoolDiscriminator[:]) {
		return nil, fmt.Errorf("%w: discriminator %x", ErrNotPoolAccount, data[:8])
	}

	var pool PoolAccount
	if err := pool.UnmarshalWithDecoder(bin.NewBorshDecoder(data[8:])); err != nil {
		return nil, fmt.Errorf("decode pool: %w", err)
	}
	return &pool, nil
}

func (p *PoolAccount) UnmarshalWithDecoder(dec *bin.Decoder) error {
	for _, dst := range []*solana.PublicKey{&p.Authority, &p.MintA, &p.MintB, &p.VaultA, &p.VaultB} {
		raw, err := dec.ReadNBytes(solana.PublicKeyLength)
		if err != nil {
			return err
		}
		*dst = solana.PublicKeyFromBytes(raw)
	}

	fee, err := dec.ReadUint16(binary.LittleEndian)
	if err != nil {
		return err
	}
	p.FeeBps = fee
	return nil
}

func (p PoolAccount) MarshalWithEncoder(enc *bin.Encoder) error {
	for _, pk := range []solana.PublicKey{p.Authority, p.MintA, p.MintB, p.VaultA, p.VaultB} {
		if err := enc.WriteBytes(pk[:], false); err != nil {
			return err
		}
	}
	return enc.WriteUint16(p.FeeBps, binary.LittleEndian)
}

// Encode returns the account data including the discriminator.
func (p PoolAccount) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(PoolDiscriminator[:], false); err != nil {
		return nil, err
	}
	if err := p.MarshalWithEncoder(enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Direction reports whether a swap paying in sourceMint runs a→b. The program
// itself treats any source mint other than mintA as b→a; here an unknown mint
// is an error so callers do not quote against the wrong side.
func (p *PoolAccount) Direction(sourceMint solana.PublicKey) (aToB bool, err error) {
	switch {
	case sourceMint.Equals(p.MintA):
		return true, nil
	case sourceMint.Equals(p.MintB):
		return false, nil
	}
	return false, fmt.Errorf("mint %s is not traded by this pool", sourceMint)
}
