package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-faster/errors"

	"github.com/cloudx-io/escrowauction/core"
)

func (l *Ledger) balances(asset common.Address) (map[common.Address]*big.Int, error) {
	if asset == core.NativeAsset {
		return l.native, nil
	}
	t, ok := l.tokens[asset]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAsset, "%s", asset.Hex())
	}
	return t.balances, nil
}

// Decimals returns the precision of asset.
func (l *Ledger) Decimals(asset common.Address) (uint8, error) {
	if asset == core.NativeAsset {
		return core.NativeDecimals, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tokens[asset]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownAsset, "%s", asset.Hex())
	}
	return t.decimals, nil
}

// Symbol returns the ticker of asset.
func (l *Ledger) Symbol(asset common.Address) string {
	if asset == core.NativeAsset {
		return "ETH"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.tokens[asset]; ok {
		return t.symbol
	}
	return ""
}

// BalanceOf returns the balance of account in asset, zero for unknown assets.
func (l *Ledger) BalanceOf(asset, account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, err := l.balances(asset)
	if err != nil {
		return new(big.Int)
	}
	return amountOf(m, account)
}

// Allowance returns how much spender may pull from owner.
func (l *Ledger) Allowance(asset, owner, spender common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tokens[asset]
	if !ok {
		return new(big.Int)
	}
	return amountOf(t.allowances[owner], spender)
}

// Mint credits amount of asset to account.
func (l *Ledger) Mint(asset, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("mint amount must be non-negative")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m, err := l.balances(asset)
	if err != nil {
		return err
	}
	l.setAmount(m, to, new(big.Int).Add(amountOf(m, to), amount))
	return nil
}

// Approve sets the allowance of spender over owner's tokens.
func (l *Ledger) Approve(asset, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("allowance must be non-negative")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tokens[asset]
	if !ok {
		return errors.Wrapf(ErrUnknownAsset, "%s", asset.Hex())
	}
	allowed, ok := t.allowances[owner]
	if !ok {
		allowed = make(map[common.Address]*big.Int)
		t.allowances[owner] = allowed
	}
	l.setAmount(allowed, spender, new(big.Int).Set(amount))
	return nil
}

// Transfer moves amount of asset from one account to another, then runs the
// recipient's hook outside the lock.
func (l *Ledger) Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	err := l.move(asset, from, to, amount)
	hook := l.hooks[to]
	l.mu.Unlock()
	if err != nil {
		return err
	}
	return runHook(ctx, hook, asset, from, amount)
}

// TransferFrom moves amount of a token from one account to another on behalf
// of spender, consuming allowance.
func (l *Ledger) TransferFrom(ctx context.Context, asset, spender, from, to common.Address, amount *big.Int) error {
	if asset == core.NativeAsset {
		return errors.Wrap(core.ErrAssetTransferFailure, "native currency has no allowances")
	}
	l.mu.Lock()
	t, ok := l.tokens[asset]
	if !ok {
		l.mu.Unlock()
		return errors.Wrapf(ErrUnknownAsset, "%s", asset.Hex())
	}
	allowed := amountOf(t.allowances[from], spender)
	if allowed.Cmp(amount) < 0 {
		l.mu.Unlock()
		return errors.Wrapf(ErrInsufficientAllow, "allowance %s, need %s", allowed, amount)
	}
	if err := l.move(asset, from, to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	l.setAmount(t.allowances[from], spender, allowed.Sub(allowed, amount))
	hook := l.hooks[to]
	l.mu.Unlock()
	return runHook(ctx, hook, asset, from, amount)
}

// move is the balance update shared by Transfer and TransferFrom. Callers hold mu.
func (l *Ledger) move(asset, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.Wrap(core.ErrAssetTransferFailure, "negative amount")
	}
	m, err := l.balances(asset)
	if err != nil {
		return err
	}
	have := amountOf(m, from)
	if have.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "%s holds %s, need %s", from.Hex(), have, amount)
	}
	if from == to {
		return nil
	}
	l.setAmount(m, from, have.Sub(have, amount))
	l.setAmount(m, to, new(big.Int).Add(amountOf(m, to), amount))
	return nil
}

func runHook(ctx context.Context, hook ReceiveHook, asset, from common.Address, amount *big.Int) error {
	if hook == nil {
		return nil
	}
	if err := hook(ctx, asset, from, new(big.Int).Set(amount)); err != nil {
		if errors.Is(err, core.ErrAssetTransferFailure) {
			return err
		}
		return errors.Wrap(core.ErrAssetTransferFailure, "recipient rejected transfer: "+err.Error())
	}
	return nil
}
