package rpc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Context is the slot context attached to account reads.
type Context struct {
	Slot uint64 `json:"slot"`
}

// AccountInfo is a decoded account read.
type AccountInfo struct {
	Address    solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Executable bool
	Data       []byte
	Slot       uint64
}

type rawAccountValue struct {
	Data       []string `json:"data"` // [payload, encoding]
	Executable bool     `json:"executable"`
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
}

func (v *rawAccountValue) decode(address solana.PublicKey, slot uint64) (*AccountInfo, error) {
	owner, err := solana.PublicKeyFromBase58(v.Owner)
	if err != nil {
		return nil, fmt.Errorf("account %s: owner %q: %w", address, v.Owner, err)
	}

	var data []byte
	if len(v.Data) > 0 {
		if len(v.Data) > 1 && v.Data[1] != "base64" {
			return nil, fmt.Errorf("account %s: unexpected data encoding %q", address, v.Data[1])
		}
		data, err = base64.StdEncoding.DecodeString(v.Data[0])
		if err != nil {
			return nil, fmt.Errorf("account %s: data: %w", address, err)
		}
	}

	return &AccountInfo{
		Address:    address,
		Owner:      owner,
		Lamports:   v.Lamports,
		Executable: v.Executable,
		Data:       data,
		Slot:       slot,
	}, nil
}
