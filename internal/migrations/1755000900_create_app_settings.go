package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Create the app_settings collection and seed the default groups read by
// internal/settings.
func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("app_settings")

		col.Fields.Add(&core.TextField{Name: "module", Required: true})
		col.Fields.Add(&core.TextField{Name: "key", Required: true})
		col.Fields.Add(&core.JSONField{Name: "value"})
		col.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		col.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})

		rule := "@request.auth.role = 'admin'"
		col.ListRule = &rule
		col.ViewRule = &rule
		col.CreateRule = nil
		col.UpdateRule = &rule
		col.DeleteRule = nil

		col.Indexes = []string{
			"CREATE UNIQUE INDEX idx_app_settings_module_key ON app_settings (module, key)",
		}

		if err := app.Save(col); err != nil {
			return err
		}

		// Seed defaults.
		seeds := []struct {
			module string
			key    string
			value  map[string]any
		}{
			{"checkin", "broadcast", map[string]any{"intervalSeconds": 30}},
			{"membership", "policy", map[string]any{"graceDays": 3}},
		}
		for _, seed := range seeds {
			rec := core.NewRecord(col)
			rec.Set("module", seed.module)
			rec.Set("key", seed.key)
			rec.Set("value", seed.value)
			if err := app.Save(rec); err != nil {
				return err
			}
		}
		return nil
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("app_settings")
		if err != nil {
			return nil
		}
		return app.Delete(col)
	})
}
