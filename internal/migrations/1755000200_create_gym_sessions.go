package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Create the gym_sessions collection — the check-in/check-out visit record
// owned by the realtime tracker.
//
// The partial unique index on (member) WHERE check_out_time = '' is the
// storage-level guard behind the "at most one open session per member"
// invariant: two racing check-ins cannot both commit.
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

		col := core.NewBaseCollection("gym_sessions")

		col.Fields.Add(&core.RelationField{Name: "club", CollectionId: clubs.Id, MaxSelect: 1})
		col.Fields.Add(&core.RelationField{Name: "member", Required: true, CollectionId: users.Id, MaxSelect: 1})
		col.Fields.Add(&core.DateField{Name: "check_in_time", Required: true})
		col.Fields.Add(&core.DateField{Name: "check_out_time"})
		col.Fields.Add(&core.NumberField{Name: "duration_minutes", OnlyInt: true})
		col.Fields.Add(&core.TextField{Name: "notes"})
		col.Fields.Add(&core.TextField{Name: "checked_in_by"})
		col.Fields.Add(&core.TextField{Name: "checked_out_by"})
		col.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		col.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})

		// Members see their own visits; staff see everything.
		listRule := "member = @request.auth.id || @request.auth.role = 'admin' || @request.auth.role = 'trainer'"
		col.ListRule = &listRule
		col.ViewRule = &listRule
		// All writes go through the tracker on the backend.
		col.CreateRule = nil
		col.UpdateRule = nil
		col.DeleteRule = nil

		col.Indexes = []string{
			"CREATE UNIQUE INDEX idx_gym_sessions_active_member ON gym_sessions (member) WHERE check_out_time = ''",
			"CREATE INDEX idx_gym_sessions_member ON gym_sessions (member)",
			"CREATE INDEX idx_gym_sessions_check_in ON gym_sessions (check_in_time)",
		}

		return app.Save(col)
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("gym_sessions")
		if err != nil {
			return nil
		}
		return app.Delete(col)
	})
}
