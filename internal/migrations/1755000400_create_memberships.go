package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Create the memberships collection — one member's subscription to a
// package.
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
		packages, err := app.FindCollectionByNameOrId("membership_packages")
		if err != nil {
			return err
		}

		col := core.NewBaseCollection("memberships")

		col.Fields.Add(&core.RelationField{Name: "club", CollectionId: clubs.Id, MaxSelect: 1})
		col.Fields.Add(&core.RelationField{Name: "member", Required: true, CollectionId: users.Id, MaxSelect: 1})
		col.Fields.Add(&core.RelationField{Name: "package", Required: true, CollectionId: packages.Id, MaxSelect: 1})
		col.Fields.Add(&core.DateField{Name: "start_date", Required: true})
		col.Fields.Add(&core.DateField{Name: "end_date", Required: true})
		col.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"active", "expired", "cancelled"},
		})
		col.Fields.Add(&core.NumberField{Name: "sessions_remaining", OnlyInt: true})
		col.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		col.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})

		listRule := "member = @request.auth.id || @request.auth.role = 'admin' || @request.auth.role = 'trainer'"
		writeRule := "@request.auth.role = 'admin'"
		col.ListRule = &listRule
		col.ViewRule = &listRule
		col.CreateRule = &writeRule
		col.UpdateRule = &writeRule
		col.DeleteRule = nil

		col.Indexes = []string{
			"CREATE INDEX idx_memberships_member ON memberships (member)",
			"CREATE INDEX idx_memberships_status_end ON memberships (status, end_date)",
		}

		return app.Save(col)
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("memberships")
		if err != nil {
			return nil
		}
		return app.Delete(col)
	})
}
