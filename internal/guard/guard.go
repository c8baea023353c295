// Package guard vetoes ownership changes of locked assets.
//
// A [Guard] is registered as a transfer hook on the ownership registry.
// Every transfer, settlement or burn asks it first; while the asset has a
// lock in force the change fails with errors.ErrAssetLocked and nothing is
// modified. Once a change goes through, the guard consumes the asset's
// per-asset lock grant, since it was issued by the previous owner.
package guard

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/lockreg/internal/approval"
	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/errors"
	"github.com/Iron-Ham/lockreg/internal/event"
	"github.com/Iron-Ham/lockreg/internal/ledger"
	"github.com/Iron-Ham/lockreg/internal/logging"
	"github.com/Iron-Ham/lockreg/internal/registry"
)

var _ registry.TransferHook = (*Guard)(nil)

// Guard checks the lock ledger before every ownership change.
type Guard struct {
	ledger    *ledger.Ledger
	approvals *approval.Store
	bus       *event.Bus
	now       func() time.Time
	logger    *logging.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithBus sets the event bus that receives transfer.blocked events.
func WithBus(bus *event.Bus) Option {
	return func(g *Guard) {
		g.bus = bus
	}
}

// WithClock sets the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Guard) {
		g.logger = l
	}
}

// New creates a Guard over l. approvals may be nil, in which case grants
// are not consumed on transfer.
func New(l *ledger.Ledger, approvals *approval.Store, opts ...Option) *Guard {
	g := &Guard{
		ledger:    l,
		approvals: approvals,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.OrNop(g.logger).WithComponent("guard")
	return g
}

// CheckTransferAllowed returns an error matching errors.ErrAssetLocked iff
// id has a lock in force.
func (g *Guard) CheckTransferAllowed(id asset.ID) error {
	_, err := g.check(id)
	return err
}

// check reads the lock record of id once and returns it with the veto.
func (g *Guard) check(id asset.ID) (ledger.Record, error) {
	rec, locked := g.ledger.RecordOf(id)
	if !locked {
		return ledger.Record{}, nil
	}
	return rec, errors.NewLockError(
		fmt.Sprintf("locked by %s until %s", rec.Locker, rec.Expiry.Format(time.RFC3339)),
		errors.ErrAssetLocked,
	).WithOp("transfer").WithAsset(string(id))
}

// BeforeTransfer vetoes the change while id is locked.
func (g *Guard) BeforeTransfer(id asset.ID, from, to asset.Address) error {
	rec, err := g.check(id)
	if err == nil {
		return nil
	}

	g.bus.Publish(event.NewTransferBlockedEvent(g.now(), from, to, id, rec.Locker))
	g.logger.WithAsset(string(id)).Warn("transfer blocked by lock",
		"from", string(from), "to", to.String(), "locker", string(rec.Locker))
	return err
}

// AfterTransfer consumes the per-asset lock grant of id.
func (g *Guard) AfterTransfer(id asset.ID, _, _ asset.Address) {
	if g.approvals != nil {
		g.approvals.Clear(id)
	}
}
