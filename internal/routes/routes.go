// Package routes registers all custom API routes for gymos.
//
// Route groups:
//   - /api/ext/checkin     — realtime check-in WebSocket + session REST
//   - /api/ext/reports     — attendance and revenue aggregates
//   - /api/ext/memberships — membership renewal
//   - /api/ext/content     — published content listings
//
// Plain CRUD rides on PocketBase's built-in record API, scoped by the
// collection access rules defined in internal/migrations.
package routes

import (
	"github.com/hibiken/asynq"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/fitstack/gymos/internal/checkin"
)

var asynqClient *asynq.Client

// SetAsynqClient injects the shared Asynq client used for enqueuing tasks.
func SetAsynqClient(c *asynq.Client) {
	asynqClient = c
}

var (
	checkinTracker  *checkin.Tracker
	checkinHub      *checkin.Hub
	checkinRegistry *checkin.Registry
)

// SetCheckin injects the realtime check-in core (constructed in main).
func SetCheckin(t *checkin.Tracker, h *checkin.Hub, r *checkin.Registry) {
	checkinTracker = t
	checkinHub = h
	checkinRegistry = r
}

// Register mounts all custom route groups on the PocketBase router.
func Register(se *core.ServeEvent) {
	g := se.Router.Group("/api/ext")
	g.Bind(apis.RequireAuth())

	registerCheckinRoutes(g)
	registerReportRoutes(g)
	registerMembershipRoutes(g)
	registerContentRoutes(g)
}

// isSuperuser reports whether the authenticated record is a PocketBase
// superuser.
func isSuperuser(auth *core.Record) bool {
	return auth != nil && auth.Collection().Name == core.CollectionNameSuperusers
}

// isStaff reports whether the authenticated record may see staff surfaces
// (superusers, admins, trainers).
func isStaff(auth *core.Record) bool {
	if auth == nil {
		return false
	}
	if isSuperuser(auth) {
		return true
	}
	role := auth.GetString("role")
	return role == "admin" || role == "trainer"
}

// isAdmin reports whether the authenticated record may perform privileged
// operations (superusers and admin-role users).
func isAdmin(auth *core.Record) bool {
	return isSuperuser(auth) || (auth != nil && auth.GetString("role") == "admin")
}
