package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

var (
	transfersStatus string
	transfersAsset  string
	transfersParty  string
	transfersLimit  int
)

// transfersCmd groups transfer commands
var transfersCmd = &cobra.Command{
	Use:   "transfers",
	Short: "Inspect transfers and run maintenance",
}

var transfersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List transfers, newest first",
	Long: `List transfers from the local store.

Examples:
  amsctl transfers list
  amsctl transfers list --status PENDING
  amsctl transfers list --asset asset101 --party Brad`,
	RunE: runTransfersList,
}

var transfersExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire pending transfers past their deadline",
	RunE:  runTransfersExpire,
}

func init() {
	transfersListCmd.Flags().StringVar(&transfersStatus, "status", "", "Filter by status (PENDING, EXECUTED, REJECTED, EXPIRED)")
	transfersListCmd.Flags().StringVar(&transfersAsset, "asset", "", "Filter by asset ID")
	transfersListCmd.Flags().StringVar(&transfersParty, "party", "", "Filter by initiator, current or new owner")
	transfersListCmd.Flags().IntVar(&transfersLimit, "limit", 50, "Maximum rows")

	transfersCmd.AddCommand(transfersListCmd)
	transfersCmd.AddCommand(transfersExpireCmd)
}

func runTransfersList(cmd *cobra.Command, _ []string) error {
	f := transfer.Filter{AssetID: transfersAsset, Party: transfersParty, Limit: transfersLimit}
	if transfersStatus != "" {
		status, err := transfer.ParseStatus(transfersStatus)
		if err != nil {
			return err
		}
		f.Status = status
	}

	st, err := openStores(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := transfer.NewQueryService(transfer.NewSQLiteRepository(st.db)).ListTransfers(cmd.Context(), f)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tASSET\tFROM\tTO\tSTATUS\tSIGNERS\tLEDGER TX")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%v\t%s\n",
			t.CreatedAt.Format(time.RFC3339), t.AssetID, t.CurrentOwner, t.NewOwner, t.Status,
			transfer.NewApprovalSet(t.Approvals).Signers(), t.LedgerTxID)
	}
	return tw.Flush()
}

func runTransfersExpire(cmd *cobra.Command, _ []string) error {
	st, err := openStores(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := st.engine()
	if err != nil {
		return err
	}
	n, err := engine.ExpireStale(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "expired %d transfers\n", n)
	return nil
}
