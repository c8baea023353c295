package cmd

import (
	"fmt"

	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/spf13/cobra"
)

// RegisterApprovalCmds adds the lock approval commands to parent.
func RegisterApprovalCmds(parent *cobra.Command) {
	parent.AddCommand(newApproveCmd())
	parent.AddCommand(newApproveAllCmd())
}

func newApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <asset-id> [delegate]",
		Short: "Allow an identity to lock one asset",
		Long: `Grant a delegate the right to lock one asset. The --as identity must be
the owner or one of the owner's blanket lock operators. At most one
delegate exists per asset; a new grant replaces the old one.

The grant is single use. It is consumed by the next lock, and dropped
when the lock is released or the asset changes hands.

Use --clear instead of a delegate to remove the current grant.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runApprove,
	}
	cmd.Flags().Bool("clear", false, "remove the current grant")
	return cmd
}

func newApproveAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve-all <operator>",
		Short: "Allow an operator to lock every asset of --as",
		Long: `Grant or revoke an operator the right to lock every asset the --as
identity owns, now or later. Blanket grants are never consumed.`,
		Args: cobra.ExactArgs(1),
		RunE: runApproveAll,
	}
	cmd.Flags().Bool("revoke", false, "revoke the grant instead of giving it")
	return cmd
}

func runApprove(cmd *cobra.Command, args []string) error {
	caller, err := identity(cmd)
	if err != nil {
		return err
	}
	clearGrant, _ := cmd.Flags().GetBool("clear")
	switch {
	case clearGrant && len(args) == 2:
		return fmt.Errorf("--clear cannot be combined with a delegate")
	case !clearGrant && len(args) == 1:
		return fmt.Errorf("approve requires a delegate or --clear")
	}

	id := asset.ID(args[0])
	delegate := asset.Zero
	if len(args) == 2 {
		delegate = asset.Address(args[1])
	}

	return withApp(true, func(a *app) error {
		if err := a.ledger.Approve(caller, id, delegate); err != nil {
			return err
		}
		if delegate.IsZero() {
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared lock approval for %s\n", id)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Approved %s to lock %s\n", delegate, id)
		}
		return nil
	})
}

func runApproveAll(cmd *cobra.Command, args []string) error {
	owner, err := identity(cmd)
	if err != nil {
		return err
	}
	revoke, _ := cmd.Flags().GetBool("revoke")
	operator := asset.Address(args[0])

	return withApp(true, func(a *app) error {
		if err := a.ledger.SetBlanketApproval(owner, operator, !revoke); err != nil {
			return err
		}
		if revoke {
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s as lock operator for %s\n", operator, owner)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Approved %s as lock operator for %s\n", operator, owner)
		}
		return nil
	})
}
