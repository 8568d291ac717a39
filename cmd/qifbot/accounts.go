package main

import (
	"fmt"
	"log/slog"

	"github.com/qifbot/qifbot/internal/cli"
	"github.com/qifbot/qifbot/internal/importer"
	"github.com/qifbot/qifbot/internal/storage"
	"github.com/qifbot/qifbot/internal/user"
	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage a user's expense accounts",
	}

	cmd.PersistentFlags().Int64P("user", "u", 0, "User id owning the accounts")

	cmd.AddCommand(accountsImportCmd())
	cmd.AddCommand(accountsListCmd())

	return cmd
}

func accountsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <accounts.csv>",
		Short: "Replace a user's accounts with a GnuCash account export",
		Long: `Import a GnuCash account CSV export, replacing the user's stored
account list. Only EXPENSE accounts are kept; splits can only ever be
categorized against expense accounts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := importer.ReadAccountsFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to import accounts: %w", err)
			}

			userID, _ := cmd.Flags().GetInt64("user")
			return withRecord(cmd, userID, func(rec *user.Record) error {
				rec.SetAccounts(accounts)
				slog.Info("Imported expense accounts", "user", userID, "count", len(accounts))
				return nil
			})
		},
	}
}

func accountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List a user's expense accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			return withRecord(cmd, userID, func(rec *user.Record) error {
				accounts := rec.ExpenseAccounts()
				if len(accounts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No expense accounts yet."))
					return nil
				}
				for _, account := range accounts {
					fmt.Fprintln(cmd.OutOrStdout(), account)
				}
				return nil
			})
		},
	}
}

// withRecord loads the user's record, runs fn against it and flushes the
// result back to storage.
func withRecord(cmd *cobra.Command, userID int64, fn func(*user.Record) error) error {
	ctx := cmd.Context()

	dbPath, err := databasePath()
	if err != nil {
		return err
	}
	kv, err := storage.NewSQLiteKV(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	rec, err := user.Load(ctx, kv, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if err := fn(rec); err != nil {
		return err
	}
	return rec.Flush(ctx, kv)
}
