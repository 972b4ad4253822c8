package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Extend the built-in users auth collection with the gym profile fields:
// role, status, phone, and the club the user belongs to.
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

		users.Fields.Add(&core.SelectField{
			Name:      "role",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"admin", "trainer", "member"},
		})
		users.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"active", "inactive", "suspended"},
		})
		users.Fields.Add(&core.TextField{Name: "phone"})
		users.Fields.Add(&core.RelationField{
			Name:         "club",
			CollectionId: clubs.Id,
			MaxSelect:    1,
		})

		return app.Save(users)
	}, func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return nil
		}
		for _, name := range []string{"role", "status", "phone", "club"} {
			if f := users.Fields.GetByName(name); f != nil {
				users.Fields.RemoveByName(name)
			}
		}
		return app.Save(users)
	})
}
