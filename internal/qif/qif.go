// Package qif renders categorized purchases in the Quicken Interchange
// Format understood by desktop accounting tools.
package qif

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the QIF account class the transaction is written against.
type AccountType string

// Account types accepted by the importers we target.
const (
	Cash  AccountType = "Cash"
	Bank  AccountType = "Bank"
	CCard AccountType = "CCard"
	Invst AccountType = "Invst"
	OthA  AccountType = "Oth A"
	OthL  AccountType = "Oth L"
)

// ParseAccountType maps a CLI-supplied name onto an AccountType.
func ParseAccountType(name string) (AccountType, error) {
	switch strings.ToLower(name) {
	case "cash":
		return Cash, nil
	case "bank":
		return Bank, nil
	case "ccard", "creditcard":
		return CCard, nil
	case "invst", "investment":
		return Invst, nil
	case "oth a", "asset":
		return OthA, nil
	case "oth l", "liability":
		return OthL, nil
	default:
		return "", fmt.Errorf("unknown account type %q", name)
	}
}

// Account is the destination ledger account.
type Account struct {
	Name string
	Type AccountType
}

// Render writes the !Account header block.
func (a Account) Render() string {
	var b strings.Builder
	b.WriteString("!Account\n")
	fmt.Fprintf(&b, "N%s\n", a.Name)
	fmt.Fprintf(&b, "T%s\n", a.Type)
	b.WriteString("^\n")
	return b.String()
}

// Split is one categorized line of a transaction. Amount is in minor
// currency units as parsed from the receipt; purchases are rendered as
// negative amounts.
type Split struct {
	Memo     string
	Category string
	Amount   int64
}

// Transaction is a dated, memo-ed set of splits against one account.
type Transaction struct {
	Date   time.Time
	Memo   string
	Splits []Split
}

// Sum returns the signed total of all splits in minor units.
func (t *Transaction) Sum() int64 {
	var sum int64
	for _, s := range t.Splits {
		sum -= s.Amount
	}
	return sum
}

// minorUnits converts an amount in minor units to its decimal rendering.
func minorUnits(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}

// Render writes the transaction block for the given account.
func (t *Transaction) Render(account Account) (string, error) {
	if len(t.Splits) == 0 {
		return "", fmt.Errorf("transaction has no splits")
	}
	for _, s := range t.Splits {
		if s.Category == "" {
			return "", fmt.Errorf("split %q has no category", s.Memo)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "!Type:%s\n", account.Type)
	fmt.Fprintf(&b, "D%s\n", t.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "T%s\n", minorUnits(t.Sum()))
	if t.Memo != "" {
		fmt.Fprintf(&b, "M%s\n", t.Memo)
	}
	for _, s := range t.Splits {
		fmt.Fprintf(&b, "S%s\n", s.Category)
		fmt.Fprintf(&b, "E%s\n", s.Memo)
		fmt.Fprintf(&b, "$%s\n", minorUnits(-s.Amount))
	}
	b.WriteString("^\n")
	return b.String(), nil
}

// Document renders the account header followed by the transaction, with
// the transaction total cross-checked against the expected receipt total.
func Document(account Account, t *Transaction, expectedTotal int64) (string, error) {
	if got := t.Sum(); got != -expectedTotal {
		return "", fmt.Errorf("total sum is wrong: expected %s, got %s",
			minorUnits(-expectedTotal), minorUnits(got))
	}

	body, err := t.Render(account)
	if err != nil {
		return "", err
	}
	return account.Render() + body, nil
}
