package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Create the payments collection. Receipt numbers are unique once issued;
// the partial index lets pending payments exist without one.
func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}
		clubs, err := app.FindCollectionByNameOrId("clubs")
		if err != nil {
			return err
		}
		memberships, err := app.FindCollectionByNameOrId("memberships")
		if err != nil {
			return err
		}

		col := core.NewBaseCollection("payments")

		col.Fields.Add(&core.RelationField{Name: "club", CollectionId: clubs.Id, MaxSelect: 1})
		col.Fields.Add(&core.RelationField{Name: "member", Required: true, CollectionId: users.Id, MaxSelect: 1})
		col.Fields.Add(&core.RelationField{Name: "membership", CollectionId: memberships.Id, MaxSelect: 1})
		col.Fields.Add(&core.NumberField{Name: "amount", Required: true})
		col.Fields.Add(&core.SelectField{
			Name:      "method",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"cash", "card", "transfer"},
		})
		col.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"pending", "completed", "refunded"},
		})
		col.Fields.Add(&core.TextField{Name: "receipt_no"})
		col.Fields.Add(&core.DateField{Name: "paid_at"})
		col.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		col.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})

		listRule := "member = @request.auth.id || @request.auth.role = 'admin'"
		writeRule := "@request.auth.role = 'admin'"
		col.ListRule = &listRule
		col.ViewRule = &listRule
		col.CreateRule = &writeRule
		col.UpdateRule = &writeRule
		col.DeleteRule = nil

		col.Indexes = []string{
			"CREATE UNIQUE INDEX idx_payments_receipt ON payments (receipt_no) WHERE receipt_no != ''",
			"CREATE INDEX idx_payments_member ON payments (member)",
			"CREATE INDEX idx_payments_status ON payments (status)",
		}

		return app.Save(col)
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("payments")
		if err != nil {
			return nil
		}
		return app.Delete(col)
	})
}
