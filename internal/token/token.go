// Package token provides an in-process fungible token ledger used for the
// vault's underlying asset and its share token.
package token

import "sync"

type Error int

const (
	ErrInsufficientBalance Error = iota + 1
	ErrSupplyOverflow
	ErrInvalidAmount
)

func (e Error) Error() string {
	switch e {
	case ErrInsufficientBalance:
		return "insufficient token balance"
	case ErrSupplyOverflow:
		return "token supply overflow"
	case ErrInvalidAmount:
		return "invalid token amount"
	default:
		return "unknown token error"
	}
}

// Token is the read/transfer surface the vault engine needs from any asset.
type Token interface {
	Symbol() string
	Decimals() uint32
	Balance(addr string) uint64
	Transfer(from, to string, amount uint64) error
}

// Minter extends Token with supply-changing operations. Only the vault's own
// share token is minted or burned by the engine.
type Minter interface {
	Token
	Mint(to string, amount uint64) error
	Burn(from string, amount uint64) error
	TotalSupply() uint64
}

// Ledger is a thread-safe in-memory Token/Minter implementation.
type Ledger struct {
	mu          sync.Mutex
	symbol      string
	decimals    uint32
	balances    map[string]uint64
	totalSupply uint64
}

func NewLedger(symbol string, decimals uint32) *Ledger {
	return &Ledger{
		symbol:   symbol,
		decimals: decimals,
		balances: make(map[string]uint64),
	}
}

func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) Decimals() uint32 { return l.decimals }

func (l *Ledger) Balance(addr string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

func (l *Ledger) TotalSupply() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalSupply
}

func (l *Ledger) Transfer(from, to string, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return ErrInsufficientBalance
	}
	if l.balances[to]+amount < l.balances[to] {
		return ErrSupplyOverflow
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *Ledger) Mint(to string, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.totalSupply+amount < l.totalSupply {
		return ErrSupplyOverflow
	}
	l.totalSupply += amount
	l.balances[to] += amount
	return nil
}

func (l *Ledger) Burn(from string, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return ErrInsufficientBalance
	}
	l.balances[from] -= amount
	l.totalSupply -= amount
	return nil
}
