package relay

import (
	"context"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-faster/errors"
	"go.uber.org/multierr"
)

var ErrTransportFull = errors.New("transport queue full")

// Envelope is one relayed message as handed to a transport.
type Envelope struct {
	ID        string `cbor:"1,keyasint"`
	RequestID []byte `cbor:"2,keyasint"`
	Sender    []byte `cbor:"3,keyasint"`
	Payload   []byte `cbor:"4,keyasint"`
	SentAt    int64  `cbor:"5,keyasint"`
}

// Transport carries envelopes to the destination chain. Delivery guarantees
// are up to the implementation.
type Transport interface {
	Send(ctx context.Context, env Envelope) error
}

// Loopback is an in-process transport. Envelopes are CBOR encoded into a
// bounded queue and handed back by Deliver.
type Loopback struct {
	queue chan []byte
}

// NewLoopback returns a loopback holding at most capacity envelopes.
func NewLoopback(capacity int) *Loopback {
	if capacity <= 0 {
		capacity = 1
	}
	return &Loopback{queue: make(chan []byte, capacity)}
}

// Send enqueues env without blocking.
func (l *Loopback) Send(ctx context.Context, env Envelope) error {
	data, err := cbor.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "encode envelope")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.queue <- data:
		return nil
	default:
		return ErrTransportFull
	}
}

// Pending reports how many envelopes are queued.
func (l *Loopback) Pending() int {
	return len(l.queue)
}

// Deliver hands every queued envelope to handle and returns how many were
// handled successfully. Failures do not stop delivery of the rest.
func (l *Loopback) Deliver(ctx context.Context, handle func(context.Context, Envelope) error) (int, error) {
	var (
		delivered int
		errs      error
	)
	for {
		select {
		case <-ctx.Done():
			return delivered, multierr.Append(errs, ctx.Err())
		case data := <-l.queue:
			var env Envelope
			if err := cbor.Unmarshal(data, &env); err != nil {
				errs = multierr.Append(errs, errors.Wrap(err, "decode envelope"))
				continue
			}
			if err := handle(ctx, env); err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "envelope %s", env.ID))
				continue
			}
			delivered++
		default:
			return delivered, errs
		}
	}
}
