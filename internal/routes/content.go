package routes

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

// contentCollections is the allowlist of CMS collections exposed through
// the published-content listing.
var contentCollections = map[string]bool{
	"banners":  true,
	"offers":   true,
	"faqs":     true,
	"pro_tips": true,
}

// registerContentRoutes registers the ordered published-content listings.
//
//	GET /api/ext/content/{collection}
func registerContentRoutes(g *router.RouterGroup[*core.RequestEvent]) {
	c := g.Group("/content")
	c.GET("/{collection}", handleContentList)
}

func handleContentList(e *core.RequestEvent) error {
	name := e.Request.PathValue("collection")
	if !contentCollections[name] {
		return apis.NewNotFoundError("unknown content collection", nil)
	}

	records, err := e.App.FindRecordsByFilter(
		name,
		"published = true",
		"+sort_order,-created",
		0, 0,
	)
	if err != nil {
		return e.JSON(http.StatusInternalServerError, map[string]any{"message": "content query failed"})
	}

	items := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.PublicExport())
	}

	return e.JSON(http.StatusOK, map[string]any{
		"collection": name,
		"total":      len(items),
		"items":      items,
	})
}
