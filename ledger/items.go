package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-faster/errors"

	"github.com/cloudx-io/escrowauction/core"
)

// MintItem creates the next token id in collection for to.
func (l *Ledger) MintItem(col, to common.Address) (core.ItemRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.collections[col]
	if !ok {
		return core.ItemRef{}, errors.Wrapf(ErrUnknownCollection, "%s", col.Hex())
	}
	item := core.ItemRef{Collection: col, TokenID: big.NewInt(c.nextID)}
	c.nextID++
	l.setOwner(c, item.Key(), to)
	return item, nil
}

// ApproveItem lets spender transfer a single item. Only the owner may approve.
func (l *Ledger) ApproveItem(owner common.Address, item core.ItemRef, spender common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, holder, err := l.lookupItem(item)
	if err != nil {
		return err
	}
	if holder != owner {
		return errors.Wrapf(ErrNotItemOwner, "%s", item.Key())
	}
	key := item.Key()
	prev, had := c.approvals[key]
	c.approvals[key] = spender
	l.record(func() {
		if had {
			c.approvals[key] = prev
		} else {
			delete(c.approvals, key)
		}
	})
	return nil
}

// SetApprovalForAll lets operator transfer every item owner holds in col.
func (l *Ledger) SetApprovalForAll(col, owner, operator common.Address, approved bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.collections[col]
	if !ok {
		return errors.Wrapf(ErrUnknownCollection, "%s", col.Hex())
	}
	ops, ok := c.operators[owner]
	if !ok {
		ops = make(map[common.Address]bool)
		c.operators[owner] = ops
	}
	prev := ops[operator]
	ops[operator] = approved
	l.record(func() { ops[operator] = prev })
	return nil
}

// OwnerOf returns the current holder of item.
func (l *Ledger) OwnerOf(item core.ItemRef) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, holder, err := l.lookupItem(item)
	return holder, err
}

// IsApprovedOrOwner reports whether operator may move item.
func (l *Ledger) IsApprovedOrOwner(item core.ItemRef, operator common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, holder, err := l.lookupItem(item)
	if err != nil {
		return false, err
	}
	return l.mayMove(c, item.Key(), holder, operator), nil
}

// TransferItem moves item from its owner to to. The single-item approval is
// cleared on every transfer.
func (l *Ledger) TransferItem(_ context.Context, operator, from, to common.Address, item core.ItemRef) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, holder, err := l.lookupItem(item)
	if err != nil {
		return err
	}
	if holder != from {
		return errors.Wrapf(ErrNotItemOwner, "%s held by %s", item.Key(), holder.Hex())
	}
	key := item.Key()
	if !l.mayMove(c, key, holder, operator) {
		return errors.Wrapf(ErrNotItemApproved, "%s for %s", operator.Hex(), key)
	}
	if approved, ok := c.approvals[key]; ok {
		delete(c.approvals, key)
		l.record(func() { c.approvals[key] = approved })
	}
	l.setOwner(c, key, to)
	return nil
}

func (l *Ledger) lookupItem(item core.ItemRef) (*collection, common.Address, error) {
	c, ok := l.collections[item.Collection]
	if !ok {
		return nil, common.Address{}, errors.Wrapf(ErrUnknownItem, "collection %s", item.Collection.Hex())
	}
	holder, ok := c.owners[item.Key()]
	if !ok {
		return nil, common.Address{}, errors.Wrapf(ErrUnknownItem, "%s", item.Key())
	}
	return c, holder, nil
}

func (l *Ledger) mayMove(c *collection, key string, holder, operator common.Address) bool {
	if operator == holder {
		return true
	}
	if approved, ok := c.approvals[key]; ok && approved == operator {
		return true
	}
	return c.operators[holder][operator]
}

func (l *Ledger) setOwner(c *collection, key string, to common.Address) {
	prev, had := c.owners[key]
	c.owners[key] = to
	l.record(func() {
		if had {
			c.owners[key] = prev
		} else {
			delete(c.owners, key)
		}
	})
}
