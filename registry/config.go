package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/cloudx-io/escrowauction/core"
)

func (r *Registry) requireOwner(caller common.Address) error {
	if caller != r.owner {
		return errors.Wrapf(core.ErrUnauthorized, "%s is not the registry owner", caller.Hex())
	}
	return nil
}

func (r *Registry) requireUpgrader(caller common.Address) error {
	if caller != r.upgrader {
		return errors.Wrapf(core.ErrUnauthorized, "%s is not the upgrade authority", caller.Hex())
	}
	return nil
}

// SetPriceFeed binds feed to (id, asset). A nil feed removes the binding.
func (r *Registry) SetPriceFeed(ctx context.Context, caller, id, asset common.Address, feed core.PriceFeed) error {
	_, leave := r.enter(ctx)
	defer leave()

	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if _, err := r.lookup(id); err != nil {
		return err
	}
	key := feedKey{auction: id, asset: asset}
	if feed == nil {
		delete(r.feeds, key)
	} else {
		r.feeds[key] = feed
	}
	r.configChanged(id, "price_feed", fmt.Sprintf("%s bound=%t", asset.Hex(), feed != nil))
	return nil
}

// SetFeeConfig sets the settlement fee of id. bps above 10000 is rejected.
func (r *Registry) SetFeeConfig(ctx context.Context, caller, id, recipient common.Address, bps uint16) error {
	_, leave := r.enter(ctx)
	defer leave()

	if err := r.requireOwner(caller); err != nil {
		return err
	}
	a, err := r.lookup(id)
	if err != nil {
		return err
	}
	if err := a.SetFeeConfig(core.FeeConfig{Recipient: recipient, Bps: bps}); err != nil {
		return err
	}
	r.configChanged(id, "fee", fmt.Sprintf("%s %dbps", recipient.Hex(), bps))
	return nil
}

// FeeConfig returns the fee policy of id.
func (r *Registry) FeeConfig(id common.Address) (core.FeeConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.lookup(id)
	if err != nil {
		return core.FeeConfig{}, err
	}
	return a.FeeConfig(), nil
}

// SetRelayConfig sets who may submit cross-chain bid requests for id.
func (r *Registry) SetRelayConfig(ctx context.Context, caller, id, sender common.Address, enabled bool) error {
	_, leave := r.enter(ctx)
	defer leave()

	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if _, err := r.lookup(id); err != nil {
		return err
	}
	r.relays[id] = core.RelayConfig{AllowedSender: sender, Enabled: enabled}
	r.configChanged(id, "relay", fmt.Sprintf("%s enabled=%t", sender.Hex(), enabled))
	return nil
}

// RelayConfig returns the relay policy of id. Unknown auctions report the
// disabled default.
func (r *Registry) RelayConfig(ctx context.Context, id common.Address) core.RelayConfig {
	_, leave := r.enter(ctx)
	defer leave()
	return r.relays[id]
}

// RegisterLogic publishes logic in the catalogue under its version. Either
// authority may register.
func (r *Registry) RegisterLogic(ctx context.Context, caller common.Address, logic core.Logic) error {
	_, leave := r.enter(ctx)
	defer leave()

	if caller != r.owner && caller != r.upgrader {
		return errors.Wrapf(core.ErrUnauthorized, "%s may not register logic", caller.Hex())
	}
	if logic == nil || logic.Version() == "" {
		return errors.Wrap(core.ErrUnknownLogic, "logic has no version")
	}
	r.logics[logic.Version()] = logic
	r.logger.Info("logic registered", zap.String("version", logic.Version()))
	return nil
}

// UpgradeLogic repoints id to the catalogued version ref. The record is not
// touched.
func (r *Registry) UpgradeLogic(ctx context.Context, caller, id common.Address, ref string) error {
	_, leave := r.enter(ctx)
	defer leave()

	if err := r.requireUpgrader(caller); err != nil {
		return err
	}
	a, err := r.lookup(id)
	if err != nil {
		return err
	}
	logic, ok := r.logics[ref]
	if !ok {
		return errors.Wrapf(core.ErrUnknownLogic, "%q", ref)
	}
	from := a.Upgrade(logic)
	upgradesTotal.With(map[string]string{"version": ref}).Inc()
	r.logger.Info("auction upgraded", zap.Stringer("auction", id), zap.String("from", from), zap.String("to", ref))
	r.emit(core.LogicUpgraded{Auction: id, From: from, To: ref})
	return nil
}

// Logics lists catalogued versions in sorted order.
func (r *Registry) Logics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := make([]string, 0, len(r.logics))
	for v := range r.logics {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// TransferOwnership hands the configuration authority to newOwner.
func (r *Registry) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	_, leave := r.enter(ctx)
	defer leave()

	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return errors.Wrap(core.ErrUnauthorized, "new owner is the zero address")
	}
	r.logger.Info("ownership transferred", zap.Stringer("from", r.owner), zap.Stringer("to", newOwner))
	r.owner = newOwner
	return nil
}

// Deployment summarizes the registry for deployment tooling.
type Deployment struct {
	Registry common.Address   `json:"registry"`
	Owner    common.Address   `json:"owner"`
	Upgrader common.Address   `json:"upgrader"`
	Logics   []string         `json:"logics"`
	Auctions []common.Address `json:"auctions"`
}

// Describe returns the current deployment summary.
func (r *Registry) Describe() Deployment {
	logics := r.Logics()
	auctions := r.Auctions()
	r.mu.Lock()
	defer r.mu.Unlock()
	return Deployment{
		Registry: r.address,
		Owner:    r.owner,
		Upgrader: r.upgrader,
		Logics:   logics,
		Auctions: auctions,
	}
}

func (r *Registry) configChanged(id common.Address, setting, value string) {
	r.logger.Info("auction configured", zap.Stringer("auction", id), zap.String(setting, value))
	r.emit(core.ConfigChanged{Auction: id, Setting: setting, Value: value})
}
