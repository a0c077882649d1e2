package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kelotduongvidainhat/ams/internal/ledger"
	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

var (
	assetName  string
	assetType  string
	assetOwner string
)

// assetsCmd groups ledger asset commands
var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Inspect and register ledger assets",
}

var assetsRegisterCmd = &cobra.Command{
	Use:   "register <id>",
	Short: "Register a new asset on the ledger",
	Long: `Register a new asset with its initial owner.

Examples:
  amsctl assets register asset102 --owner Brad --name "Oil painting" --type art`,
	Args: cobra.ExactArgs(1),
	RunE: runAssetsRegister,
}

var assetsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an asset's ledger record",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetsShow,
}

var assetsHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show every ownership change of an asset",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetsHistory,
}

var assetsLockCmd = &cobra.Command{
	Use:   "lock <id>",
	Short: "Freeze an asset so it cannot be transferred",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setAssetLocked(cmd, args[0], true) },
}

var assetsUnlockCmd = &cobra.Command{
	Use:   "unlock <id>",
	Short: "Release a locked asset",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setAssetLocked(cmd, args[0], false) },
}

func init() {
	assetsRegisterCmd.Flags().StringVar(&assetOwner, "owner", "", "Initial owner (required)")
	assetsRegisterCmd.Flags().StringVar(&assetName, "name", "", "Display name")
	assetsRegisterCmd.Flags().StringVar(&assetType, "type", "", "Asset type")
	assetsRegisterCmd.MarkFlagRequired("owner") //nolint:errcheck // flag is defined above

	assetsCmd.AddCommand(assetsRegisterCmd)
	assetsCmd.AddCommand(assetsShowCmd)
	assetsCmd.AddCommand(assetsHistoryCmd)
	assetsCmd.AddCommand(assetsLockCmd)
	assetsCmd.AddCommand(assetsUnlockCmd)
}

func runAssetsRegister(cmd *cobra.Command, args []string) error {
	st, err := openStores(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	err = st.ledger.RegisterAsset(cmd.Context(), ledger.Asset{
		ID: args[0], Name: assetName, Type: assetType, Owner: assetOwner,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registered %s owned by %s\n", args[0], assetOwner)
	return nil
}

func runAssetsShow(cmd *cobra.Command, args []string) error {
	st, err := openStores(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := st.ledger.GetAsset(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", a.ID)
	fmt.Fprintf(tw, "Name\t%s\n", a.Name)
	fmt.Fprintf(tw, "Type\t%s\n", a.Type)
	fmt.Fprintf(tw, "Owner\t%s\n", a.Owner)
	fmt.Fprintf(tw, "Locked\t%t\n", a.Locked)
	fmt.Fprintf(tw, "Updated\t%s\n", a.UpdatedAt.Format(time.RFC3339))
	return tw.Flush()
}

func runAssetsHistory(cmd *cobra.Command, args []string) error {
	st, err := openStores(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	history, err := st.ledger.History(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORDED\tFROM\tTO\tTX\tTRANSFER")
	for _, h := range history {
		from := h.FromOwner
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			h.RecordedAt.Format(time.RFC3339), from, h.ToOwner, h.TxID, h.TransferID)
	}
	return tw.Flush()
}

// setAssetLocked goes through the engine so the change is serialised with
// in-flight transfers of the same asset.
func setAssetLocked(cmd *cobra.Command, assetID string, locked bool) error {
	st, err := openStores(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := st.engine()
	if err != nil {
		return err
	}
	operator := transfer.Actor{ID: "amsctl", Admin: true}
	if _, err := engine.SetAssetLocked(cmd.Context(), assetID, operator, locked); err != nil {
		return err
	}
	state := "unlocked"
	if locked {
		state = "locked"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", assetID, state)
	return nil
}
