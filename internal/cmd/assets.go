package cmd

import (
	"fmt"

	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/spf13/cobra"
)

// RegisterAssetCmds adds the ownership registry commands to parent.
func RegisterAssetCmds(parent *cobra.Command) {
	parent.AddCommand(newMintCmd())
	parent.AddCommand(newTransferCmd())
	parent.AddCommand(newBurnCmd())
	parent.AddCommand(newApproveTransferCmd())
	parent.AddCommand(newTransferOperatorCmd())
	parent.AddCommand(newCanTransferCmd())
}

func newMintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint <asset-id>",
		Short: "Create an asset in the ownership registry",
		Long: `Create an asset owned by --to (or by --as when --to is omitted).

The metadata URI and class are copied onto bound certificates; the class
also decides whether certificates.classes covers the asset.`,
		Args: cobra.ExactArgs(1),
		RunE: runMint,
	}
	cmd.Flags().String("to", "", "owner of the new asset (default is --as)")
	cmd.Flags().String("uri", "", "metadata URI")
	cmd.Flags().String("class", "", "asset class")
	return cmd
}

func newTransferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer <asset-id> <to>",
		Short: "Transfer an asset to another identity",
		Long: `Transfer an asset. The --as identity must be the owner, the address
approved to transfer the asset, or one of the owner's transfer operators.
Locked assets cannot be transferred.`,
		Args: cobra.ExactArgs(2),
		RunE: runTransfer,
	}
	cmd.Flags().String("from", "", "current owner (default is the recorded owner)")
	return cmd
}

func newBurnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "burn <asset-id>",
		Short: "Destroy an asset",
		Long:  `Destroy an asset. Authorization matches transfer; locked assets cannot be burned.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runBurn,
	}
}

func newApproveTransferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve-transfer <asset-id> <address>",
		Short: "Approve an address to transfer an asset",
		Long: `Approve an address to transfer one asset on the owner's behalf. The
approval is cleared by the next transfer. This is unrelated to lock
approvals granted with 'lockreg approve'.`,
		Args: cobra.ExactArgs(2),
		RunE: runApproveTransfer,
	}
}

func newTransferOperatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer-operator <operator>",
		Short: "Allow an operator to transfer every asset of --as",
		Long: `Grant or revoke an operator the right to transfer or burn every asset
the --as identity owns. Locks still block the operator.`,
		Args: cobra.ExactArgs(1),
		RunE: runTransferOperator,
	}
	cmd.Flags().Bool("revoke", false, "revoke the grant instead of giving it")
	return cmd
}

func newCanTransferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "can-transfer <asset-id> <address>",
		Short: "Report whether an address may transfer an asset now",
		Args:  cobra.ExactArgs(2),
		RunE:  runCanTransfer,
	}
}

func runMint(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	uri, _ := cmd.Flags().GetString("uri")
	class, _ := cmd.Flags().GetString("class")

	owner := asset.Address(to)
	if owner.IsZero() {
		var err error
		if owner, err = identity(cmd); err != nil {
			return err
		}
	}

	id := asset.ID(args[0])
	return withApp(true, func(a *app) error {
		if err := a.registry.Mint(owner, id, asset.Metadata{URI: uri, Class: class}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Minted %s to %s\n", id, owner)
		return nil
	})
}

func runTransfer(cmd *cobra.Command, args []string) error {
	caller, err := identity(cmd)
	if err != nil {
		return err
	}
	fromFlag, _ := cmd.Flags().GetString("from")
	id, to := asset.ID(args[0]), asset.Address(args[1])

	return withApp(true, func(a *app) error {
		from := asset.Address(fromFlag)
		if from.IsZero() {
			owner, err := a.registry.OwnerOf(id)
			if err != nil {
				return err
			}
			from = owner
		}
		if err := a.registry.Transfer(caller, from, to, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Transferred %s from %s to %s\n", id, from, to)
		return nil
	})
}

func runBurn(cmd *cobra.Command, args []string) error {
	caller, err := identity(cmd)
	if err != nil {
		return err
	}
	id := asset.ID(args[0])

	return withApp(true, func(a *app) error {
		if err := a.registry.Burn(caller, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Burned %s\n", id)
		return nil
	})
}

func runApproveTransfer(cmd *cobra.Command, args []string) error {
	caller, err := identity(cmd)
	if err != nil {
		return err
	}
	id, approved := asset.ID(args[0]), asset.Address(args[1])

	return withApp(true, func(a *app) error {
		if err := a.registry.ApproveTransfer(caller, id, approved); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Approved %s to transfer %s\n", approved, id)
		return nil
	})
}

func runTransferOperator(cmd *cobra.Command, args []string) error {
	owner, err := identity(cmd)
	if err != nil {
		return err
	}
	revoke, _ := cmd.Flags().GetBool("revoke")
	operator := asset.Address(args[0])

	return withApp(true, func(a *app) error {
		if err := a.registry.SetTransferOperator(owner, operator, !revoke); err != nil {
			return err
		}
		verb := "Approved"
		if revoke {
			verb = "Revoked"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s as transfer operator for %s\n", verb, operator, owner)
		return nil
	})
}

func runCanTransfer(cmd *cobra.Command, args []string) error {
	id, who := asset.ID(args[0]), asset.Address(args[1])

	return withApp(false, func(a *app) error {
		owner, err := a.registry.OwnerOf(id)
		if err != nil {
			return err
		}
		approved, err := a.registry.TransferApprovalOf(id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case a.guard.CheckTransferAllowed(id) != nil:
			locker, _ := a.ledger.LockerOf(id)
			fmt.Fprintf(out, "no: %s is locked by %s\n", id, locker)
		case who == owner || who == approved || a.registry.IsTransferOperator(owner, who):
			fmt.Fprintf(out, "yes: %s may transfer %s\n", who, id)
		default:
			fmt.Fprintf(out, "no: %s is not approved to transfer %s\n", who, id)
		}
		return nil
	})
}
