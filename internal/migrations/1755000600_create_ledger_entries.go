package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Create the ledger_entries collection. Rows are only ever written by
// ledger.Post, which guarantees every posting_id balances to zero.
func init() {
	m.Register(func(app core.App) error {
		clubs, err := app.FindCollectionByNameOrId("clubs")
		if err != nil {
			return err
		}
		payments, err := app.FindCollectionByNameOrId("payments")
		if err != nil {
			return err
		}

		col := core.NewBaseCollection("ledger_entries")

		col.Fields.Add(&core.RelationField{Name: "club", CollectionId: clubs.Id, MaxSelect: 1})
		col.Fields.Add(&core.TextField{Name: "posting_id", Required: true})
		col.Fields.Add(&core.TextField{Name: "account", Required: true})
		col.Fields.Add(&core.SelectField{
			Name:      "direction",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"debit", "credit"},
		})
		col.Fields.Add(&core.NumberField{Name: "amount", Required: true})
		col.Fields.Add(&core.TextField{Name: "memo"})
		col.Fields.Add(&core.RelationField{Name: "payment", CollectionId: payments.Id, MaxSelect: 1})
		col.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})

		listRule := "@request.auth.role = 'admin'"
		col.ListRule = &listRule
		col.ViewRule = &listRule
		// Backend-only writes.
		col.CreateRule = nil
		col.UpdateRule = nil
		col.DeleteRule = nil

		col.Indexes = []string{
			"CREATE INDEX idx_ledger_posting ON ledger_entries (posting_id)",
			"CREATE INDEX idx_ledger_payment ON ledger_entries (payment)",
		}

		return app.Save(col)
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("ledger_entries")
		if err != nil {
			return nil
		}
		return app.Delete(col)
	})
}
