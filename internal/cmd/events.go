package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Iron-Ham/lockreg/internal/config"
	"github.com/Iron-Ham/lockreg/internal/event"
	"github.com/Iron-Ham/lockreg/internal/store"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// followDebounce batches the write events of one append.
const followDebounce = 50 * time.Millisecond

// RegisterEventsCmd adds the events command to parent.
func RegisterEventsCmd(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the event journal",
		Long: `Print entries of the append-only event journal (events.jsonl) in
sequence order. With --follow, keep running and print new entries as other
lockreg invocations append them.`,
		Args: cobra.NoArgs,
		RunE: runEvents,
	}
	cmd.Flags().Uint64("since", 0, "only print entries with a greater sequence number")
	cmd.Flags().StringSlice("type", nil, "only print these event types (repeatable)")
	cmd.Flags().Bool("json", false, "print raw JSON lines")
	cmd.Flags().BoolP("follow", "f", false, "wait for and print new entries")
	parent.AddCommand(cmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	since, _ := cmd.Flags().GetUint64("since")
	types, _ := cmd.Flags().GetStringSlice("type")
	asJSON, _ := cmd.Flags().GetBool("json")
	follow, _ := cmd.Flags().GetBool("follow")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	dir := cfg.Store.ResolveStoreDir()
	path := store.JournalPath(dir)

	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	out := cmd.OutOrStdout()
	st := newStyles(cfg.Output.Color, out)
	emit := func(e event.Entry) {
		if len(wanted) > 0 && !wanted[e.Type] {
			return
		}
		printEntry(out, st, e, asJSON)
	}

	entries, err := event.ReadFile(path)
	if err != nil {
		return err
	}
	last := since
	for _, e := range entries {
		if e.Seq > last {
			emit(e)
			last = e.Seq
		}
	}
	if !follow {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return followJournal(ctx, path, last, emit)
}

func printEntry(w io.Writer, st *styles, e event.Entry, asJSON bool) {
	if asJSON {
		line, err := json.Marshal(e)
		if err != nil {
			return
		}
		fmt.Fprintln(w, string(line))
		return
	}

	typ := fmt.Sprintf("%-22s", e.Type)
	switch e.Type {
	case event.TypeLocked:
		typ = st.render(st.locked, typ)
	case event.TypeUnlocked, event.TypeLockExpired:
		typ = st.render(st.free, typ)
	case event.TypeTransferBlocked:
		typ = st.render(st.warning, typ)
	}
	fmt.Fprintf(w, "%6d  %s  %s %s\n", e.Seq, st.render(st.muted, e.Time.Format(time.RFC3339)), typ, string(e.Data))
}

// followJournal watches the journal's directory and emits every entry with a
// sequence number above after until ctx is done.
func followJournal(ctx context.Context, path string, after uint64, emit func(event.Entry)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// The journal may not exist yet, so watch its directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	last := after
	catchUp := func() bool {
		entries, err := event.ReadFile(path)
		if err != nil {
			// A partially written line; retry after the next write
			return false
		}
		for _, e := range entries {
			if e.Seq > last {
				emit(e)
				last = e.Seq
			}
		}
		return true
	}
	// Entries appended between the first read and Add
	catchUp()

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer
	defer debounceTimer.Stop()

	name := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounceTimer.Reset(followDebounce)

		case <-debounceTimer.C:
			if !catchUp() {
				debounceTimer.Reset(followDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch journal: %w", err)
		}
	}
}
