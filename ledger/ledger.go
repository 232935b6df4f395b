// Package ledger is an in-memory asset and item ledger for local networks and
// tests. It holds native balances, fungible tokens with allowances and
// non-fungible collections, and journals every mutation so callers can roll
// back a failed operation.
package ledger

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-faster/errors"

	"github.com/cloudx-io/escrowauction/core"
)

var (
	ErrUnknownAsset        = errors.New("unknown asset")
	ErrUnknownCollection   = errors.New("unknown collection")
	ErrInsufficientBalance = errors.Wrap(core.ErrAssetTransferFailure, "insufficient balance")
	ErrInsufficientAllow   = errors.Wrap(core.ErrAssetTransferFailure, "insufficient allowance")
	ErrUnknownItem         = errors.Wrap(core.ErrItemTransferFailure, "unknown item")
	ErrNotItemOwner        = errors.Wrap(core.ErrItemTransferFailure, "from is not the item owner")
	ErrNotItemApproved     = errors.Wrap(core.ErrItemTransferFailure, "operator not approved")
)

// ReceiveHook runs after account receives asset. Returning an error rejects
// the transfer. Hooks may call back into anything, including the ledger.
type ReceiveHook func(ctx context.Context, asset, from common.Address, amount *big.Int) error

type token struct {
	name       string
	symbol     string
	decimals   uint8
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

type collection struct {
	name      string
	symbol    string
	nextID    int64
	owners    map[string]common.Address
	approvals map[string]common.Address
	operators map[common.Address]map[common.Address]bool
}

// Ledger implements core.AssetLedger, core.ItemRegistry and core.Journal.
type Ledger struct {
	mu          sync.Mutex
	deployer    common.Address
	nonce       uint64
	native      map[common.Address]*big.Int
	tokens      map[common.Address]*token
	collections map[common.Address]*collection
	hooks       map[common.Address]ReceiveHook

	undo []func()
	open int
}

// New returns an empty ledger. Deployed token and collection addresses are
// derived from deployer.
func New(deployer common.Address) *Ledger {
	return &Ledger{
		deployer:    deployer,
		native:      make(map[common.Address]*big.Int),
		tokens:      make(map[common.Address]*token),
		collections: make(map[common.Address]*collection),
		hooks:       make(map[common.Address]ReceiveHook),
	}
}

func (l *Ledger) nextAddress() common.Address {
	addr := crypto.CreateAddress(l.deployer, l.nonce)
	l.nonce++
	return addr
}

// DeployToken registers a fungible token and returns its address.
func (l *Ledger) DeployToken(name, symbol string, decimals uint8) common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr := l.nextAddress()
	l.tokens[addr] = &token{
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
	return addr
}

// DeployCollection registers a non-fungible collection and returns its address.
func (l *Ledger) DeployCollection(name, symbol string) common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr := l.nextAddress()
	l.collections[addr] = &collection{
		name:      name,
		symbol:    symbol,
		nextID:    1,
		owners:    make(map[string]common.Address),
		approvals: make(map[string]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
	}
	return addr
}

// SetReceiveHook installs hook for account. A nil hook removes it.
func (l *Ledger) SetReceiveHook(account common.Address, hook ReceiveHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, account)
		return
	}
	l.hooks[account] = hook
}

// Snapshot opens a journal scope and returns its id.
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open++
	return len(l.undo)
}

// RevertToSnapshot undoes every mutation made since id and closes the scope.
func (l *Ledger) RevertToSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.undo) - 1; i >= id; i-- {
		l.undo[i]()
	}
	if id < len(l.undo) {
		l.undo = l.undo[:id]
	}
	l.closeScope()
}

// Commit closes the scope opened by id, keeping its mutations.
func (l *Ledger) Commit(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeScope()
}

func (l *Ledger) closeScope() {
	if l.open > 0 {
		l.open--
	}
	if l.open == 0 {
		l.undo = l.undo[:0]
	}
}

func (l *Ledger) record(fn func()) {
	if l.open > 0 {
		l.undo = append(l.undo, fn)
	}
}

// setAmount replaces m[k] and journals the previous value. Callers hold mu.
func (l *Ledger) setAmount(m map[common.Address]*big.Int, k common.Address, v *big.Int) {
	prev, had := m[k]
	m[k] = v
	l.record(func() {
		if had {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

func amountOf(m map[common.Address]*big.Int, k common.Address) *big.Int {
	if v, ok := m[k]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}
