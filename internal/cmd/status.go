package cmd

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/audit"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

// RegisterQueryCmds adds the read-only commands to parent.
func RegisterQueryCmds(parent *cobra.Command) {
	parent.AddCommand(newStatusCmd())
	parent.AddCommand(newLocksCmd())
	parent.AddCommand(newCanLockCmd())
	parent.AddCommand(newAuditCmd())
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [asset-id...]",
		Short: "Show assets, locks and approvals",
		Long: `Display every asset (or only the given ones) with its owner, active lock,
lock approval and bound certificate, followed by blanket lock operators.`,
		RunE: runStatus,
	}
	cmd.Flags().String("owner", "", "only show assets of this owner")
	return cmd
}

func newLocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locks",
		Short: "List locks and bound certificates in force",
		Args:  cobra.NoArgs,
		RunE:  runLocks,
	}
}

func newCanLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "can-lock <asset-id> <address>",
		Short: "Report whether an address may lock an asset",
		Args:  cobra.ExactArgs(2),
		RunE:  runCanLock,
	}
}

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Replay the event journal and compare it with saved state",
		Long: `Rebuild lock and approval state from events.jsonl alone and compare it
with the saved snapshot. Any difference is listed and the command fails.`,
		Args: cobra.NoArgs,
		RunE: runAudit,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ownerFilter, _ := cmd.Flags().GetString("owner")

	return withApp(false, func(a *app) error {
		out := cmd.OutOrStdout()
		st := newStyles(a.cfg.Output.Color, out)

		var ids []asset.ID
		switch {
		case len(args) > 0:
			for _, arg := range args {
				id := asset.ID(arg)
				if _, err := a.registry.OwnerOf(id); err != nil {
					return err
				}
				ids = append(ids, id)
			}
		case ownerFilter != "":
			ids = a.registry.AssetsOf(asset.Address(ownerFilter))
		default:
			ids = a.registry.Assets()
		}

		if len(ids) == 0 {
			fmt.Fprintln(out, st.render(st.muted, "No assets"))
			return nil
		}

		fmt.Fprintln(out, st.render(st.title, fmt.Sprintf("Assets (%d)", len(ids))))
		t := newTable(st, "ASSET", "OWNER", "LOCKED BY", "EXPIRES", "LOCK APPROVAL", "CERTIFICATE")

		for _, id := range ids {
			owner, _ := a.registry.OwnerOf(id)
			locker, expires := st.render(st.free, "-"), "-"
			if rec, ok := a.ledger.RecordOf(id); ok {
				locker = st.render(st.locked, rec.Locker.String())
				expires = rec.Expiry.Format(time.RFC3339)
			}
			approved := "-"
			if d, err := a.ledger.GetApproved(id); err == nil && !d.IsZero() {
				approved = d.String()
			}
			cert := "-"
			if c, ok := a.certificates.CertificateOf(id); ok {
				cert = c.ID
			}
			t.Row(string(id), owner.String(), locker, expires, approved, cert)
		}
		fmt.Fprintln(out, t.String())

		var operators []string
		for _, b := range a.approvals.Snapshot().Blanket {
			if ownerFilter != "" && string(b.Owner) != ownerFilter {
				continue
			}
			operators = append(operators, fmt.Sprintf("  %s -> %s", b.Owner, b.Operator))
		}
		if len(operators) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, st.render(st.title, "Lock operators"))
			for _, line := range operators {
				fmt.Fprintln(out, line)
			}
		}
		return nil
	})
}

// newTable returns a bordered table styled like the status listing.
func newTable(st *styles, headers ...string) *table.Table {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow && st.enabled {
				return st.header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	if st.enabled {
		t = t.BorderStyle(st.border)
	}
	return t
}

func runLocks(cmd *cobra.Command, args []string) error {
	return withApp(false, func(a *app) error {
		out := cmd.OutOrStdout()
		st := newStyles(a.cfg.Output.Color, out)

		locks := a.ledger.Active()
		if len(locks) == 0 {
			fmt.Fprintln(out, st.render(st.muted, "No active locks"))
		} else {
			fmt.Fprintln(out, st.render(st.title, fmt.Sprintf("Active locks (%d)", len(locks))))
			t := newTable(st, "ASSET", "LOCKER", "OWNER", "LOCKED AT", "EXPIRES")
			for _, l := range locks {
				t.Row(string(l.AssetID), st.render(st.locked, l.Locker.String()), l.Owner.String(),
					l.LockedAt.Format(time.RFC3339), l.Expiry.Format(time.RFC3339))
			}
			fmt.Fprintln(out, t.String())
		}

		certs := a.certificates.Certificates()
		if len(certs) == 0 {
			return nil
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, st.render(st.title, fmt.Sprintf("Bound certificates (%d)", len(certs))))
		t := newTable(st, "CERTIFICATE", "ASSET", "HOLDER", "LOCKER", "EXPIRES")
		for _, c := range certs {
			t.Row(c.ID, string(c.AssetID), c.Holder.String(), c.Locker.String(), c.Expiry.Format(time.RFC3339))
		}
		fmt.Fprintln(out, t.String())
		return nil
	})
}

func runCanLock(cmd *cobra.Command, args []string) error {
	id, who := asset.ID(args[0]), asset.Address(args[1])

	return withApp(false, func(a *app) error {
		if !a.registry.Exists(id) {
			_, err := a.registry.OwnerOf(id)
			return err
		}
		switch {
		case a.ledger.IsLocked(id):
			locker, _ := a.ledger.LockerOf(id)
			fmt.Fprintf(cmd.OutOrStdout(), "no: %s is locked by %s\n", id, locker)
		case a.approvals.IsApprovedToLock(who, id):
			fmt.Fprintf(cmd.OutOrStdout(), "yes: %s may lock %s\n", who, id)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "no: %s is not approved to lock %s\n", who, id)
		}
		return nil
	})
}

func runAudit(cmd *cobra.Command, args []string) error {
	return withApp(false, func(a *app) error {
		out := cmd.OutOrStdout()
		st := newStyles(a.cfg.Output.Color, out)

		entries := a.journal.Entries()
		state, err := audit.Rebuild(entries)
		if err != nil {
			return fmt.Errorf("replay journal: %w", err)
		}

		mismatches := state.Compare(a.ledger, now())
		if len(mismatches) == 0 {
			fmt.Fprintln(out, st.render(st.free, fmt.Sprintf("Journal consistent: %d event(s), %d asset(s), %d active lock(s)",
				len(entries), len(state.Owners), len(state.ActiveAt(now())))))
			return nil
		}

		fmt.Fprintln(out, st.render(st.failure, fmt.Sprintf("%d mismatch(es) between journal and saved state:", len(mismatches))))
		for _, m := range mismatches {
			fmt.Fprintf(out, "  %s\n", m)
		}
		return fmt.Errorf("audit found %d mismatch(es)", len(mismatches))
	})
}
