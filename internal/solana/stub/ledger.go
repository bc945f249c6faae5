package stub

import (
	"context"
	"sync"

	"solana-meme-radar/internal/solana"
)

// Ledger implements solana.Ledger for testing.
type Ledger struct {
	mu           sync.Mutex
	Transactions map[string]*solana.ParsedTransaction
	Err          error
	Calls        int
}

var _ solana.Ledger = (*Ledger)(nil)

// NewLedger creates an empty stub ledger.
func NewLedger() *Ledger {
	return &Ledger{Transactions: make(map[string]*solana.ParsedTransaction)}
}

// Put registers a transaction under its signature.
func (l *Ledger) Put(tx *solana.ParsedTransaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Transactions[tx.Signature] = tx
}

// GetParsedTransaction returns the registered transaction or nil.
func (l *Ledger) GetParsedTransaction(_ context.Context, signature string) (*solana.ParsedTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls++
	if l.Err != nil {
		return nil, l.Err
	}
	tx, ok := l.Transactions[signature]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

// CallCount returns how many lookups were made.
func (l *Ledger) CallCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Calls
}
