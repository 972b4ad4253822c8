package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Create the CMS collections: banners, offers, faqs, pro_tips. They share
// the club/published/sort_order trio plus per-collection content fields.
func init() {
	m.Register(func(app core.App) error {
		clubs, err := app.FindCollectionByNameOrId("clubs")
		if err != nil {
			return err
		}

		contentFields := map[string][]core.Field{
			"banners": {
				&core.TextField{Name: "title", Required: true},
				&core.TextField{Name: "image_url"},
				&core.TextField{Name: "link_url"},
			},
			"offers": {
				&core.TextField{Name: "title", Required: true},
				&core.TextField{Name: "body"},
				&core.DateField{Name: "valid_until"},
			},
			"faqs": {
				&core.TextField{Name: "question", Required: true},
				&core.TextField{Name: "answer", Required: true},
			},
			"pro_tips": {
				&core.TextField{Name: "title", Required: true},
				&core.TextField{Name: "body", Required: true},
			},
		}

		listRule := "@request.auth.id != ''"
		writeRule := "@request.auth.role = 'admin'"

		for name, fields := range contentFields {
			col := core.NewBaseCollection(name)
			col.Fields.Add(&core.RelationField{Name: "club", CollectionId: clubs.Id, MaxSelect: 1})
			col.Fields.Add(fields...)
			col.Fields.Add(&core.BoolField{Name: "published"})
			col.Fields.Add(&core.NumberField{Name: "sort_order", OnlyInt: true})
			col.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
			col.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})

			col.ListRule = &listRule
			col.ViewRule = &listRule
			col.CreateRule = &writeRule
			col.UpdateRule = &writeRule
			col.DeleteRule = &writeRule

			if err := app.Save(col); err != nil {
				return err
			}
		}
		return nil
	}, func(app core.App) error {
		for _, name := range []string{"banners", "offers", "faqs", "pro_tips"} {
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
