package ledger_test

import (
	"errors"
	"testing"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"

	"github.com/fitstack/gymos/internal/ledger"

	// trigger init() registrations
	_ "github.com/fitstack/gymos/internal/migrations"
)

func newApp(t *testing.T) *tests.TestApp {
	t.Helper()
	app, err := tests.NewTestApp()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(app.Cleanup)
	return app
}

func seedPayment(t *testing.T, app core.App, amount float64, status string) *core.Record {
	t.Helper()

	usersCol, err := app.FindCollectionByNameOrId("users")
	if err != nil {
		t.Fatal(err)
	}
	member := core.NewRecord(usersCol)
	member.Set("email", "payer@test.com")
	member.Set("role", "member")
	member.Set("status", "active")
	member.SetPassword("1234567890")
	if err := app.Save(member); err != nil {
		t.Fatal(err)
	}

	payCol, err := app.FindCollectionByNameOrId("payments")
	if err != nil {
		t.Fatal(err)
	}
	payment := core.NewRecord(payCol)
	payment.Set("member", member.Id)
	payment.Set("amount", amount)
	payment.Set("method", "cash")
	payment.Set("status", status)
	if err := app.Save(payment); err != nil {
		t.Fatal(err)
	}
	return payment
}

func entriesByPosting(t *testing.T, app core.App, postingID string) []*core.Record {
	t.Helper()
	records, err := app.FindRecordsByFilter(
		"ledger_entries",
		"posting_id = {:posting}",
		"", 0, 0,
		dbx.Params{"posting": postingID},
	)
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestPost_BalancedLines(t *testing.T) {
	app := newApp(t)

	postingID, err := ledger.Post(app, "", "", []ledger.Line{
		{Account: ledger.AccountCash, Direction: ledger.DirectionDebit, Amount: 49.99, Memo: "renewal"},
		{Account: ledger.AccountRevenue, Direction: ledger.DirectionCredit, Amount: 49.99, Memo: "renewal"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if postingID == "" {
		t.Fatal("expected non-empty posting id")
	}

	entries := entriesByPosting(t, app, postingID)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	var debits, credits float64
	for _, e := range entries {
		switch e.GetString("direction") {
		case ledger.DirectionDebit:
			debits += e.GetFloat("amount")
		case ledger.DirectionCredit:
			credits += e.GetFloat("amount")
		}
	}
	if debits != credits {
		t.Errorf("posting does not balance: debit %v, credit %v", debits, credits)
	}
}

func TestPost_Rejections(t *testing.T) {
	app := newApp(t)

	_, err := ledger.Post(app, "", "", []ledger.Line{
		{Account: ledger.AccountCash, Direction: ledger.DirectionDebit, Amount: 10},
	})
	if !errors.Is(err, ledger.ErrTooFew) {
		t.Errorf("single line err = %v, want ErrTooFew", err)
	}

	_, err = ledger.Post(app, "", "", []ledger.Line{
		{Account: ledger.AccountCash, Direction: ledger.DirectionDebit, Amount: 10},
		{Account: ledger.AccountRevenue, Direction: ledger.DirectionCredit, Amount: 9},
	})
	if !errors.Is(err, ledger.ErrUnbalanced) {
		t.Errorf("unbalanced err = %v, want ErrUnbalanced", err)
	}

	_, err = ledger.Post(app, "", "", []ledger.Line{
		{Account: ledger.AccountCash, Direction: ledger.DirectionDebit, Amount: -5},
		{Account: ledger.AccountRevenue, Direction: ledger.DirectionCredit, Amount: -5},
	})
	if err == nil {
		t.Error("negative amount should be rejected")
	}

	_, err = ledger.Post(app, "", "", []ledger.Line{
		{Account: ledger.AccountCash, Direction: "sideways", Amount: 5},
		{Account: ledger.AccountRevenue, Direction: ledger.DirectionCredit, Amount: 5},
	})
	if err == nil {
		t.Error("unknown direction should be rejected")
	}

	// Nothing may have been written by any rejected posting.
	total, err := app.CountRecords("ledger_entries")
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("ledger_entries rows = %d, want 0", total)
	}
}

func TestPostPayment(t *testing.T) {
	app := newApp(t)
	payment := seedPayment(t, app, 75, "completed")

	posted, err := ledger.Posted(app, payment.Id)
	if err != nil {
		t.Fatal(err)
	}
	if posted {
		t.Fatal("Posted should be false before any posting")
	}

	postingID, err := ledger.PostPayment(app, payment)
	if err != nil {
		t.Fatal(err)
	}

	entries := entriesByPosting(t, app, postingID)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.GetFloat("amount") != 75 {
			t.Errorf("amount = %v, want 75", e.GetFloat("amount"))
		}
		if e.GetString("payment") != payment.Id {
			t.Errorf("payment ref = %q, want %q", e.GetString("payment"), payment.Id)
		}
	}

	posted, err = ledger.Posted(app, payment.Id)
	if err != nil {
		t.Fatal(err)
	}
	if !posted {
		t.Error("Posted should be true after PostPayment")
	}
}
