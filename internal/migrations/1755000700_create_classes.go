package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Create the classes and class_bookings collections. Capacity is enforced
// by the booking hook; the unique (class, member) index prevents duplicate
// bookings.
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

		classes := core.NewBaseCollection("classes")
		classes.Fields.Add(&core.RelationField{Name: "club", CollectionId: clubs.Id, MaxSelect: 1})
		classes.Fields.Add(&core.TextField{Name: "title", Required: true})
		classes.Fields.Add(&core.TextField{Name: "description"})
		classes.Fields.Add(&core.RelationField{Name: "trainer", CollectionId: users.Id, MaxSelect: 1})
		classes.Fields.Add(&core.DateField{Name: "starts_at", Required: true})
		classes.Fields.Add(&core.DateField{Name: "ends_at", Required: true})
		classes.Fields.Add(&core.NumberField{Name: "capacity", OnlyInt: true})
		classes.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"scheduled", "cancelled", "completed"},
		})
		classes.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		classes.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})

		classListRule := "@request.auth.id != ''"
		classWriteRule := "@request.auth.role = 'admin' || @request.auth.role = 'trainer'"
		classes.ListRule = &classListRule
		classes.ViewRule = &classListRule
		classes.CreateRule = &classWriteRule
		classes.UpdateRule = &classWriteRule
		classes.DeleteRule = &classWriteRule

		classes.Indexes = []string{
			"CREATE INDEX idx_classes_starts ON classes (starts_at)",
		}

		if err := app.Save(classes); err != nil {
			return err
		}

		bookings := core.NewBaseCollection("class_bookings")
		bookings.Fields.Add(&core.RelationField{Name: "class", Required: true, CollectionId: classes.Id, MaxSelect: 1, CascadeDelete: true})
		bookings.Fields.Add(&core.RelationField{Name: "member", Required: true, CollectionId: users.Id, MaxSelect: 1})
		bookings.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"booked", "cancelled", "attended"},
		})
		bookings.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		bookings.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})

		bookingListRule := "member = @request.auth.id || @request.auth.role = 'admin' || @request.auth.role = 'trainer'"
		bookingCreateRule := "member = @request.auth.id || @request.auth.role = 'admin'"
		bookings.ListRule = &bookingListRule
		bookings.ViewRule = &bookingListRule
		bookings.CreateRule = &bookingCreateRule
		bookings.UpdateRule = &bookingCreateRule
		bookings.DeleteRule = nil

		bookings.Indexes = []string{
			"CREATE UNIQUE INDEX idx_bookings_class_member ON class_bookings (class, member)",
		}

		return app.Save(bookings)
	}, func(app core.App) error {
		for _, name := range []string{"class_bookings", "classes"} {
			col, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(col); err != nil {
				return err
			}
		}
		return nil
	})
}
