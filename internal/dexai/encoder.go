package dexai

import (
	"bytes"
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// InstructionEncoder turns a program schema, named accounts and arguments
// into a chain instruction. It is the only place the chain SDK's instruction
// types are produced.
type InstructionEncoder interface {
	BuildInstruction(
		ctx context.Context,
		programID solana.PublicKey,
		schema InstructionSchema,
		accounts map[string]solana.PublicKey,
		args bin.BinaryMarshaler,
	) (solana.Instruction, error)
}

// AnchorEncoder encodes instructions the way Anchor programs expect them:
// an 8-byte discriminator followed by the Borsh-encoded arguments.
type AnchorEncoder struct{}

func NewAnchorEncoder() *AnchorEncoder {
	return &AnchorEncoder{}
}

func (AnchorEncoder) BuildInstruction(
	ctx context.Context,
	programID solana.PublicKey,
	schema InstructionSchema,
	accounts map[string]solana.PublicKey,
	args bin.BinaryMarshaler,
) (solana.Instruction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metas := make(solana.AccountMetaSlice, 0, len(schema.Accounts))
	for _, spec := range schema.Accounts {
		pk, ok := accounts[spec.Name]
		if !ok {
			return nil, fmt.Errorf("%s: account %q not supplied", schema.Name, spec.Name)
		}
		metas = append(metas, solana.NewAccountMeta(pk, spec.Writable, spec.Signer))
	}

	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(schema.Discriminator[:], false); err != nil {
		return nil, fmt.Errorf("%s: write discriminator: %w", schema.Name, err)
	}
	if args != nil {
		if err := args.MarshalWithEncoder(enc); err != nil {
			return nil, fmt.Errorf("%s: encode args: %w", schema.Name, err)
		}
	}

	return solana.NewInstruction(programID, metas, buf.Bytes()), nil
}
