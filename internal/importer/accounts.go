// Package importer reads chart-of-accounts exports used to seed a user's
// account set.
package importer

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
)

// gnucashAccount is one row of a GnuCash account CSV export.
type gnucashAccount struct {
	Type     string `csv:"Type"`
	FullName string `csv:"Full Account Name"`
}

// accountTypeExpense marks the rows usable as transaction categories.
const accountTypeExpense = "EXPENSE"

// ReadAccounts parses a GnuCash CSV account export. Only EXPENSE accounts
// are returned, since only they make sense as purchase categories.
func ReadAccounts(r io.Reader) ([]string, error) {
	var rows []gnucashAccount
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse accounts csv: %w", err)
	}

	var accounts []string
	for _, row := range rows {
		if row.Type == accountTypeExpense && row.FullName != "" {
			accounts = append(accounts, row.FullName)
		}
	}
	return accounts, nil
}

// ReadAccountsFile parses the GnuCash CSV account export at path.
func ReadAccountsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open accounts file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadAccounts(f)
}
