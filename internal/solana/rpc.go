package solana

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// SystemProgramID is the native system program.
const SystemProgramID = "11111111111111111111111111111111"

// Confirmation levels reported by getSignatureStatuses.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Ledger fetches transactions for payment verification.
type Ledger interface {
	// GetParsedTransaction returns nil, nil when the transaction is unknown.
	GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error)
}

// ParsedTransaction is a transaction fetched with jsonParsed encoding.
type ParsedTransaction struct {
	Signature          string
	Slot               int64
	BlockTime          *int64 // Unix seconds
	Err                interface{}
	ConfirmationStatus string

	Instructions      []Instruction
	InnerInstructions []Instruction // flattened, in order
}

// Instruction is a parsed instruction. Program and Type are empty when the
// RPC node could not parse it.
type Instruction struct {
	Program     string
	ProgramID   string
	Type        string
	Source      string
	Destination string
	Lamports    uint64
}

// IsTransferTo reports whether ins is a native SOL transfer to recipient.
func (ins Instruction) IsTransferTo(recipient string) bool {
	return ins.Program == "system" && ins.Type == "transfer" && ins.Destination == recipient
}

// LamportsToSOL converts lamports to an exact SOL amount.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Shift(-9)
}
