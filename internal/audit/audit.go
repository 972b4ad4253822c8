// Package audit provides a unified helper for writing operation audit
// records.
//
// All backend writes go through Write(); access rules on the audit_logs
// collection prevent any client-side mutations.
package audit

import (
	"log"

	"github.com/pocketbase/pocketbase/core"
)

const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var validStatuses = map[string]bool{
	StatusPending: true,
	StatusSuccess: true,
	StatusFailed:  true,
}

// Entry holds all fields for a single audit record.
type Entry struct {
	// UserID is the record ID of the actor ("system" for background jobs).
	UserID string
	// UserEmail is the actor's email for display purposes.
	UserEmail string
	// Club is the tenant the operation happened in, when known.
	Club string
	// Action is a dot-namespaced verb, e.g. "checkin.force_checkout",
	// "membership.renew".
	Action string
	// ResourceType is the category of the affected resource, e.g.
	// "gym_session", "membership", "payment".
	ResourceType string
	// ResourceID is the record ID of the affected resource.
	ResourceID string
	// ResourceName is the human-readable label of the affected resource.
	ResourceName string
	// Status must be one of StatusPending, StatusSuccess, or StatusFailed.
	Status string
	// IP is the client's source IP; empty for worker-originated operations.
	IP string
	// Detail holds optional structured context (reason, task ID, amounts).
	Detail map[string]any
}

// Write persists one audit record. Errors are logged and swallowed — an
// audit failure must never break the calling operation.
func Write(app core.App, entry Entry) {
	if !validStatuses[entry.Status] {
		log.Printf("audit.Write: invalid status %q for action %q — skipping", entry.Status, entry.Action)
		return
	}

	col, err := app.FindCollectionByNameOrId("audit_logs")
	if err != nil {
		log.Printf("audit.Write: collection not found: %v", err)
		return
	}

	rec := core.NewRecord(col)
	rec.Set("user_id", entry.UserID)
	rec.Set("user_email", entry.UserEmail)
	rec.Set("club", entry.Club)
	rec.Set("action", entry.Action)
	rec.Set("resource_type", entry.ResourceType)
	rec.Set("resource_id", entry.ResourceID)
	rec.Set("resource_name", entry.ResourceName)
	rec.Set("status", entry.Status)
	rec.Set("ip", entry.IP)
	if entry.Detail != nil {
		rec.Set("detail", entry.Detail)
	}

	if err := app.Save(rec); err != nil {
		log.Printf("audit.Write: save failed: %v", err)
	}
}
