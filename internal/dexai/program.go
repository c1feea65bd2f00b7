package dexai

import (
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
)

// Request field names, as they appear on the wire.
const (
	FieldProgramID       = "programId"
	FieldPool            = "pool"
	FieldUser            = "user"
	FieldUserSource      = "userSource"
	FieldUserDestination = "userDestination"
	FieldVaultA          = "vaultA"
	FieldVaultB          = "vaultB"
	FieldTokenProgram    = "tokenProgram"
	FieldAmountIn        = "amountIn"
	FieldMinAmountOut    = "minAmountOut"
)

// IdentityFields lists the account fields in validation order.
var IdentityFields = []string{
	FieldProgramID,
	FieldPool,
	FieldUser,
	FieldUserSource,
	FieldUserDestination,
	FieldVaultA,
	FieldVaultB,
	FieldTokenProgram,
}

// TokenAccountFields are the accounts eligible for the on-chain existence check.
var TokenAccountFields = []string{
	FieldUserSource,
	FieldUserDestination,
	FieldVaultA,
	FieldVaultB,
}

// SwapDiscriminator is sha256("global:swap")[:8].
var SwapDiscriminator = [8]byte{0xf8, 0xc6, 0x9e, 0x91, 0xe1, 0x75, 0x87, 0xc8}

// AccountSpec is one entry of an instruction's declared account list.
type AccountSpec struct {
	Name     string
	Signer   bool
	Writable bool
}

// InstructionSchema describes an instruction the way the program declares it.
type InstructionSchema struct {
	Name          string
	Discriminator [8]byte
	Accounts      []AccountSpec
}

// SwapSchema is the account layout of the swap instruction. The program reads
// accounts by position; this order must not change.
var SwapSchema = InstructionSchema{
	Name:          "swap",
	Discriminator: SwapDiscriminator,
	Accounts: []AccountSpec{
		{Name: FieldUser, Signer: true, Writable: true},
		{Name: FieldUserSource, Writable: true},
		{Name: FieldUserDestination, Writable: true},
		{Name: FieldPool, Writable: true},
		{Name: FieldVaultA, Writable: true},
		{Name: FieldVaultB, Writable: true},
		{Name: FieldTokenProgram},
	},
}

// SwapArgs are the Borsh-encoded arguments of the swap instruction.
type SwapArgs struct {
	AmountIn     uint64
	MinAmountOut uint64
}

// SwapArgsSize is the encoded size of SwapArgs.
const SwapArgsSize = 8 + 8

func (a SwapArgs) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint64(a.AmountIn, binary.LittleEndian); err != nil {
		return err
	}
	return encoder.WriteUint64(a.MinAmountOut, binary.LittleEndian)
}
