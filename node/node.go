package main

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/cloudx-io/escrowauction/core"
	"github.com/cloudx-io/escrowauction/ledger"
	"github.com/cloudx-io/escrowauction/oracle"
	"github.com/cloudx-io/escrowauction/registry"
	"github.com/cloudx-io/escrowauction/relay"
)

type feedKey struct {
	auction common.Address
	asset   common.Address
}

// Node is a single-process auction network: one ledger, one registry with
// its relay, and a clock that tests and clients can move forward.
type Node struct {
	mu sync.Mutex

	logger     *zap.Logger
	clock      *core.OffsetClock
	ledger     *ledger.Ledger
	registry   *registry.Registry
	relay      *relay.Relay
	transport  *relay.Loopback
	keys       *KeyManager
	signer     ReceiptSigner
	collection common.Address
	maxAge     time.Duration
	feeds      map[feedKey]*oracle.StaticFeed
}

// NewNode deploys the registry and a default item collection.
func NewNode(cfg Config, logger *zap.Logger, keys *KeyManager, base core.Clock) *Node {
	clock := core.NewOffsetClock(base)
	owner := cfg.Registry.Owner

	// The registry takes the owner's first deployment address and the
	// ledger deploys from the second so the two address spaces never meet.
	led := ledger.New(crypto.CreateAddress(owner, 1))
	reg := registry.New(crypto.CreateAddress(owner, 0), owner, cfg.Registry.Upgrader, led,
		registry.WithClock(clock),
		registry.WithLogger(logger.Named("registry")),
	)
	transport := relay.NewLoopback(cfg.Relay.QueueSize)
	rel := relay.New(reg, transport,
		relay.WithClock(clock),
		relay.WithLogger(logger.Named("relay")),
	)

	n := &Node{
		logger:     logger,
		clock:      clock,
		ledger:     led,
		registry:   reg,
		relay:      rel,
		transport:  transport,
		keys:       keys,
		signer:     keys,
		collection: led.DeployCollection("Test NFT", "TNFT"),
		maxAge:     cfg.Oracle.MaxAge,
		feeds:      make(map[feedKey]*oracle.StaticFeed),
	}
	logger.Info("node deployed",
		zap.Stringer("registry", reg.Address()),
		zap.Stringer("owner", owner),
		zap.Stringer("upgrader", cfg.Registry.Upgrader),
		zap.Stringer("collection", n.collection),
	)
	return n
}
