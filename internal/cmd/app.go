package cmd

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/lockreg/internal/approval"
	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/certificate"
	"github.com/Iron-Ham/lockreg/internal/config"
	"github.com/Iron-Ham/lockreg/internal/errors"
	"github.com/Iron-Ham/lockreg/internal/event"
	"github.com/Iron-Ham/lockreg/internal/guard"
	"github.com/Iron-Ham/lockreg/internal/ledger"
	"github.com/Iron-Ham/lockreg/internal/logging"
	"github.com/Iron-Ham/lockreg/internal/registry"
	"github.com/Iron-Ham/lockreg/internal/serial"
	"github.com/Iron-Ham/lockreg/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is one loaded copy of the registry, held for the duration of a command.
type app struct {
	cfg     *config.Config
	session *store.Session
	logger  *logging.Logger
	bus     *event.Bus
	journal *event.Journal
	// seq of the last journal entry written before this invocation
	journalStart uint64

	registry     *registry.Memory
	approvals    *approval.Store
	ledger       *ledger.Ledger
	certificates *certificate.Manager
	guard        *guard.Guard
}

// openApp loads configuration, locks the state directory and rebuilds every
// component from the last snapshot.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dir := cfg.Store.ResolveStoreDir()
	session, err := store.Open(dir, func() {
		fmt.Fprintf(os.Stderr, "Waiting for another lockreg process to release %s...\n", dir)
	})
	if err != nil {
		return nil, err
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		if l, err := logging.NewLogger(session.Dir(), cfg.Logging.Level); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create logger: %v\n", err)
		} else {
			logger = l
		}
	}

	a := &app{cfg: cfg, session: session, logger: logger, bus: event.NewBus()}
	a.wire()

	if err := a.restore(); err != nil {
		_ = a.close()
		return nil, err
	}

	journal, err := event.OpenJournal(store.JournalPath(session.Dir()))
	if err != nil {
		_ = a.close()
		return nil, err
	}
	if entries := journal.Entries(); len(entries) > 0 {
		a.journalStart = entries[len(entries)-1].Seq
	}
	logger.Debug("journal opened", "entries", journal.Len(), "last_seq", a.journalStart)
	journal.Attach(a.bus)
	a.journal = journal
	return a, nil
}

func (a *app) wire() {
	keys := serial.New()

	a.registry = registry.NewMemory(
		registry.WithSerializer(keys),
		registry.WithBus(a.bus),
		registry.WithClock(now),
		registry.WithLogger(a.logger),
	)
	a.approvals = approval.NewStore(a.registry,
		approval.WithBus(a.bus),
		approval.WithClock(now),
		approval.WithLogger(a.logger),
	)
	a.certificates = certificate.NewManager(a.registry,
		certificate.Policy{Enabled: a.cfg.Certificates.Enabled, Classes: a.cfg.Certificates.Classes},
		certificate.WithBus(a.bus),
		certificate.WithClock(now),
		certificate.WithLogger(a.logger),
	)
	a.ledger = ledger.New(a.registry, a.approvals,
		ledger.WithSerializer(keys),
		ledger.WithBus(a.bus),
		ledger.WithClock(now),
		ledger.WithLogger(a.logger),
		ledger.WithCompanion(a.certificates),
		ledger.WithMaxLockDuration(a.cfg.Ledger.MaxLockDuration),
	)
	a.guard = guard.New(a.ledger, a.approvals,
		guard.WithBus(a.bus),
		guard.WithClock(now),
		guard.WithLogger(a.logger),
	)
	a.registry.AddHook(a.guard)
}

func (a *app) restore() error {
	state, err := a.session.Load()
	if errors.Is(err, store.ErrNoState) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := a.registry.Restore(state.Registry); err != nil {
		return errors.Wrap(err, "restore registry")
	}
	if err := a.ledger.Restore(state.Locks); err != nil {
		return errors.Wrap(err, "restore locks")
	}
	a.approvals.Restore(state.Approvals)
	a.certificates.Restore(state.Certificates)
	return nil
}

// save writes the current state back to the directory.
func (a *app) save() error {
	state := &store.State{
		SavedAt:      now().UTC(),
		Registry:     a.registry.Snapshot(),
		Locks:        a.ledger.Snapshot(),
		Approvals:    a.approvals.Snapshot(),
		Certificates: a.certificates.Snapshot(),
	}
	if err := a.session.Save(state); err != nil {
		return err
	}
	if err := a.journal.Err(); err != nil {
		return errors.Wrap(err, "event journal")
	}
	return nil
}

func (a *app) close() error {
	if a.journal != nil {
		a.journal.Detach()
	}
	a.logger.Debug("session closed", "events_published", a.bus.PublishedCount())
	_ = a.logger.Close()
	return a.session.Close()
}

// withApp runs fn against a freshly loaded registry. When mutate is set the
// state is saved afterwards whether or not fn failed.
func withApp(mutate bool, fn func(a *app) error) (err error) {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); err == nil {
			err = cerr
		}
	}()

	opErr := fn(a)
	if opErr != nil {
		logFailure(a.logger, opErr)
	}
	for _, e := range a.journal.Since(a.journalStart) {
		a.logger.Debug("event recorded", "seq", e.Seq, "type", e.Type, "id", e.ID)
	}
	if mutate {
		if err := a.save(); err != nil {
			return errors.Join(opErr, errors.Wrap(err, "save state"))
		}
	}
	return opErr
}

// logFailure records a failed operation. Rejections carrying a public kind
// are logged as warnings; anything else is an error.
func logFailure(l *logging.Logger, err error) {
	args := []any{"error", err.Error(), "user_facing", errors.IsUserFacing(err)}
	if kind := errors.Kind(err); kind != nil {
		args = append(args, "kind", kind.Error())
	}
	if errors.GetSeverity(err) >= errors.SeverityError {
		l.Error("operation failed", args...)
		return
	}
	l.Warn("operation rejected", args...)
}

// identity returns the --as identity, or an error naming the command if unset.
func identity(cmd *cobra.Command) (asset.Address, error) {
	as := asset.Address(viper.GetString("as"))
	if as.IsZero() {
		return asset.Zero, fmt.Errorf("%s requires an identity: pass --as or set LOCKREG_AS", cmd.Name())
	}
	return as, nil
}
