package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Create the clubs collection — the tenant root every other record hangs
// off.
func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("clubs")

		col.Fields.Add(&core.TextField{Name: "name", Required: true})
		col.Fields.Add(&core.TextField{Name: "slug", Required: true})
		col.Fields.Add(&core.TextField{Name: "timezone"})
		col.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"active", "inactive"},
		})
		col.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		col.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})

		listRule := "@request.auth.id != ''"
		col.ListRule = &listRule
		col.ViewRule = &listRule
		// Writes: superuser only (nil rule).
		col.CreateRule = nil
		col.UpdateRule = nil
		col.DeleteRule = nil

		col.Indexes = []string{
			"CREATE UNIQUE INDEX idx_clubs_slug ON clubs (slug)",
		}

		return app.Save(col)
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("clubs")
		if err != nil {
			return nil // already gone
		}
		return app.Delete(col)
	})
}
