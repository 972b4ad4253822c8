// Package ledger implements double-entry bookkeeping over the
// ledger_entries collection.
//
// Post is the only writer: every posting is a set of at least two lines that
// balance to zero, written atomically so a partial posting can never be
// observed.
package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"

	// Standard accounts used by the payment posting helper.
	AccountCash    = "cash"
	AccountRevenue = "membership_revenue"
)

var (
	ErrUnbalanced = errors.New("ledger: debits and credits do not balance")
	ErrTooFew     = errors.New("ledger: a posting needs at least two lines")
)

// balanceEpsilon absorbs float representation noise when comparing the
// debit and credit totals of a posting.
const balanceEpsilon = 0.005

// Line is one side of a posting.
type Line struct {
	Account   string
	Direction string
	Amount    float64
	Memo      string
}

// Post writes a balanced set of lines as one posting and returns the
// generated posting ID. The write is transactional: either every line lands
// or none do.
func Post(app core.App, clubID, paymentID string, lines []Line) (string, error) {
	if len(lines) < 2 {
		return "", ErrTooFew
	}

	var debits, credits float64
	for _, l := range lines {
		if l.Amount <= 0 {
			return "", fmt.Errorf("ledger: line amount must be positive, got %v for %q", l.Amount, l.Account)
		}
		switch l.Direction {
		case DirectionDebit:
			debits += l.Amount
		case DirectionCredit:
			credits += l.Amount
		default:
			return "", fmt.Errorf("ledger: unknown direction %q", l.Direction)
		}
	}
	if math.Abs(debits-credits) > balanceEpsilon {
		return "", fmt.Errorf("%w: debit %v vs credit %v", ErrUnbalanced, debits, credits)
	}

	col, err := app.FindCollectionByNameOrId("ledger_entries")
	if err != nil {
		return "", fmt.Errorf("ledger: find collection: %w", err)
	}

	postingID := uuid.NewString()
	err = app.RunInTransaction(func(txApp core.App) error {
		for _, l := range lines {
			rec := core.NewRecord(col)
			rec.Set("club", clubID)
			rec.Set("posting_id", postingID)
			rec.Set("account", l.Account)
			rec.Set("direction", l.Direction)
			rec.Set("amount", l.Amount)
			rec.Set("memo", l.Memo)
			rec.Set("payment", paymentID)
			if err := txApp.Save(rec); err != nil {
				return fmt.Errorf("ledger: save line %q: %w", l.Account, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return postingID, nil
}

// PostPayment records the standard cash-in posting for a completed payment:
// debit cash, credit membership revenue.
func PostPayment(app core.App, payment *core.Record) (string, error) {
	amount := payment.GetFloat("amount")
	memo := fmt.Sprintf("payment %s (%s)", payment.Id, payment.GetString("method"))
	return Post(app, payment.GetString("club"), payment.Id, []Line{
		{Account: AccountCash, Direction: DirectionDebit, Amount: amount, Memo: memo},
		{Account: AccountRevenue, Direction: DirectionCredit, Amount: amount, Memo: memo},
	})
}

// Posted reports whether a ledger posting already exists for the payment.
// Used by the payment hook to keep postings idempotent across updates.
func Posted(app core.App, paymentID string) (bool, error) {
	records, err := app.FindRecordsByFilter(
		"ledger_entries",
		"payment = {:payment}",
		"", 1, 0,
		dbx.Params{"payment": paymentID},
	)
	if err != nil {
		return false, fmt.Errorf("ledger: lookup posting for %s: %w", paymentID, err)
	}
	return len(records) > 0, nil
}
