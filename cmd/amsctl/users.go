package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kelotduongvidainhat/ams/internal/auth"
)

// usersCmd groups account commands
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List, lock and unlock user accounts",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	RunE:  runUsersList,
}

var usersLockCmd = &cobra.Command{
	Use:   "lock <username>",
	Short: "Lock an account so it cannot log in",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setUserActive(cmd, args[0], false) },
}

var usersUnlockCmd = &cobra.Command{
	Use:   "unlock <username>",
	Short: "Unlock a locked account",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setUserActive(cmd, args[0], true) },
}

func init() {
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersLockCmd)
	usersCmd.AddCommand(usersUnlockCmd)
}

func runUsersList(cmd *cobra.Command, _ []string) error {
	st, err := openStores(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := auth.NewUserRepository(st.db.DB).List(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tROLE\tACTIVE\tID")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", u.Username, u.Role, u.IsActive, u.ID)
	}
	return tw.Flush()
}

func setUserActive(cmd *cobra.Command, username string, active bool) error {
	st, err := openStores(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	repo := auth.NewUserRepository(st.db.DB)
	u, err := repo.GetByUsername(cmd.Context(), username)
	if err != nil {
		return err
	}
	if err := repo.SetActive(cmd.Context(), u.ID, active); err != nil {
		return err
	}
	state := "locked"
	if active {
		state = "unlocked"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", username, state)
	return nil
}
