package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/qifbot/qifbot/internal/category"
	"github.com/qifbot/qifbot/internal/cli"
	"github.com/qifbot/qifbot/internal/importer"
	"github.com/qifbot/qifbot/internal/qif"
	"github.com/qifbot/qifbot/internal/receipt"
	"github.com/qifbot/qifbot/internal/storage"
	"github.com/qifbot/qifbot/internal/user"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <receipt.json>",
		Short: "Convert a receipt export to a QIF transaction",
		Long: `Convert a JSON receipt export into a QIF transaction.

Each line item needs an expense category. On a terminal, unknown items are
prompted for interactively and the answers are remembered for next time;
without a terminal, only items with a learned category are converted and
anything unknown fails the run.`,
		Args: cobra.ExactArgs(1),
		RunE: runConvert,
	}

	cmd.Flags().Int64P("user", "u", 0, "User id owning the category history")
	cmd.Flags().String("accounts", "", "GnuCash account CSV to import before converting")
	cmd.Flags().StringP("memo", "m", "New", "Transaction memo")
	cmd.Flags().String("account", "Wallet", "QIF account name")
	cmd.Flags().String("account-type", "Cash", "QIF account type (Cash, Bank, CCard, Invst, Oth A, Oth L)")
	cmd.Flags().StringP("output", "o", "", "Write the QIF document to a file instead of stdout")

	_ = viper.BindPFlag("convert.user", cmd.Flags().Lookup("user"))
	_ = viper.BindPFlag("convert.memo", cmd.Flags().Lookup("memo"))
	_ = viper.BindPFlag("convert.account", cmd.Flags().Lookup("account"))
	_ = viper.BindPFlag("convert.account_type", cmd.Flags().Lookup("account-type"))

	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	accountType, err := qif.ParseAccountType(viper.GetString("convert.account_type"))
	if err != nil {
		return err
	}
	account := qif.Account{
		Name: viper.GetString("convert.account"),
		Type: accountType,
	}

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

	userID := viper.GetInt64("convert.user")
	rec, err := user.Load(ctx, kv, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	if csvPath, _ := cmd.Flags().GetString("accounts"); csvPath != "" {
		accounts, readErr := importer.ReadAccountsFile(csvPath)
		if readErr != nil {
			return fmt.Errorf("failed to import accounts: %w", readErr)
		}
		rec.SetAccounts(accounts)
		slog.Info("Imported expense accounts", "count", len(accounts))
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read receipt: %w", err)
	}
	rcpt, err := receipt.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse receipt %s: %w", args[0], err)
	}

	var categorizer category.Categorizer
	if isatty.IsTerminal(os.Stdin.Fd()) {
		categorizer = cli.NewPrompter(os.Stdin, os.Stderr, rec.Categories, rec.ExpenseAccounts())
	} else {
		categorizer = category.NewAutomatic(rec.Categories)
	}

	txn := &qif.Transaction{
		Date: rcpt.Date,
		Memo: viper.GetString("convert.memo"),
	}
	var unknown []string
	for _, item := range rcpt.Items {
		cat, resolveErr := categorizer.Resolve(ctx, item.Name)
		if resolveErr != nil {
			return fmt.Errorf("failed to categorize %q: %w", item.Name, resolveErr)
		}
		if cat == "" {
			unknown = append(unknown, item.Name)
			continue
		}
		if assignErr := rec.Categories.Assign(item.Name, cat); assignErr != nil {
			return fmt.Errorf("failed to record category for %q: %w", item.Name, assignErr)
		}
		txn.Splits = append(txn.Splits, qif.Split{
			Memo:     item.Name,
			Category: cat,
			Amount:   item.Sum,
		})
	}
	if len(unknown) > 0 {
		return fmt.Errorf("no category known for: %s", strings.Join(unknown, ", "))
	}

	doc, err := qif.Document(account, txn, rcpt.TotalSum)
	if err != nil {
		return fmt.Errorf("failed to render QIF: %w", err)
	}

	if err := rec.Flush(ctx, kv); err != nil {
		return fmt.Errorf("failed to save category history: %w", err)
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := os.WriteFile(output, []byte(doc), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		slog.Info("Wrote QIF document", "path", output, "items", len(txn.Splits))
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), doc)
	return nil
}
