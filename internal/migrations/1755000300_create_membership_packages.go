package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Create the membership_packages collection — the sellable plans.
func init() {
	m.Register(func(app core.App) error {
		clubs, err := app.FindCollectionByNameOrId("clubs")
		if err != nil {
			return err
		}

		col := core.NewBaseCollection("membership_packages")

		col.Fields.Add(&core.RelationField{Name: "club", CollectionId: clubs.Id, MaxSelect: 1})
		col.Fields.Add(&core.TextField{Name: "name", Required: true})
		col.Fields.Add(&core.TextField{Name: "description"})
		col.Fields.Add(&core.NumberField{Name: "price", Required: true})
		col.Fields.Add(&core.NumberField{Name: "duration_days", Required: true, OnlyInt: true})
		col.Fields.Add(&core.NumberField{Name: "sessions_included", OnlyInt: true})
		col.Fields.Add(&core.BoolField{Name: "active"})
		col.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		col.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})

		listRule := "@request.auth.id != ''"
		writeRule := "@request.auth.role = 'admin'"
		col.ListRule = &listRule
		col.ViewRule = &listRule
		col.CreateRule = &writeRule
		col.UpdateRule = &writeRule
		col.DeleteRule = &writeRule

		return app.Save(col)
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("membership_packages")
		if err != nil {
			return nil
		}
		return app.Delete(col)
	})
}
