package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kelotduongvidainhat/ams/internal/auth"
	"github.com/kelotduongvidainhat/ams/internal/ledger"
)

// seedCmd creates the configured accounts and assets
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create configured users and register configured assets",
	Long: `Create the seed.users accounts (only when no users exist yet) and
register every seed.assets entry that is not already on the ledger.`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	st, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	accounts := make([]auth.SeedAccount, 0, len(appConfig.Seed.Users))
	for _, u := range appConfig.Seed.Users {
		accounts = append(accounts, auth.SeedAccount{Username: u.Username, Password: u.Password, Role: auth.Role(u.Role)})
	}
	created, generated, err := auth.SeedUsers(ctx, auth.NewUserRepository(st.db.DB), accounts, appLog)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "users: created %d\n", created)
	if generated != "" {
		fmt.Fprintf(out, "generated admin password: %s\n", generated)
	}

	registered := 0
	for _, a := range appConfig.Seed.Assets {
		err := st.ledger.RegisterAsset(ctx, ledger.Asset{ID: a.ID, Name: a.Name, Type: a.Type, Owner: a.Owner})
		if errors.Is(err, ledger.ErrAssetExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("registering %s: %w", a.ID, err)
		}
		registered++
	}
	fmt.Fprintf(out, "assets: registered %d\n", registered)
	return nil
}
