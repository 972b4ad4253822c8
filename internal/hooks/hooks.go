// Package hooks registers PocketBase event hooks for gymos business rules —
// the validations that cannot be expressed in collection access rules.
package hooks

import (
	"fmt"
	"log"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/fitstack/gymos/internal/audit"
	"github.com/fitstack/gymos/internal/ledger"
)

// Register binds all custom event hooks to the PocketBase app.
func Register(app core.App) {
	registerSessionHooks(app)
	registerPaymentHooks(app)
	registerBookingHooks(app)
	registerMembershipHooks(app)
	registerUserHooks(app)
}

// registerSessionHooks guards gym_sessions invariants for every writer,
// including the tracker itself: the check-in timestamp is immutable, and a
// check-out timestamp can be set exactly once and never cleared or moved.
func registerSessionHooks(app core.App) {
	app.OnRecordUpdate("gym_sessions").BindFunc(func(e *core.RecordEvent) error {
		original := e.Record.Original()

		if !e.Record.GetDateTime("check_in_time").Time().Equal(original.GetDateTime("check_in_time").Time()) {
			return fmt.Errorf("gym_sessions: check_in_time is immutable")
		}

		prevOut := original.GetDateTime("check_out_time")
		if !prevOut.IsZero() && !e.Record.GetDateTime("check_out_time").Time().Equal(prevOut.Time()) {
			return fmt.Errorf("gym_sessions: check_out_time cannot be changed once set")
		}

		return e.Next()
	})
}

// registerPaymentHooks posts completed payments to the ledger. The posting
// is idempotent: a payment that already has ledger lines is skipped, so a
// pending→completed update cannot double-book.
func registerPaymentHooks(app core.App) {
	postIfCompleted := func(e *core.RecordEvent) error {
		if e.Record.GetString("status") == "completed" {
			posted, err := ledger.Posted(e.App, e.Record.Id)
			if err != nil {
				log.Printf("[payments] posting lookup failed for %s: %v", e.Record.Id, err)
				return e.Next()
			}
			if !posted {
				if _, err := ledger.PostPayment(e.App, e.Record); err != nil {
					// The payment itself is already saved; a failed posting is
					// logged and audited, never bubbled up to the client.
					log.Printf("[payments] ledger posting failed for %s: %v", e.Record.Id, err)
					audit.Write(e.App, audit.Entry{
						UserID: "system", Club: e.Record.GetString("club"),
						Action: "ledger.post", ResourceType: "payment",
						ResourceID: e.Record.Id,
						Status:     audit.StatusFailed,
						Detail:     map[string]any{"error": err.Error()},
					})
				}
			}
		}
		return e.Next()
	}

	app.OnRecordAfterCreateSuccess("payments").BindFunc(postIfCompleted)
	app.OnRecordAfterUpdateSuccess("payments").BindFunc(postIfCompleted)
}

// registerBookingHooks enforces class capacity and member-only bookings at
// request level (capacity cannot be expressed in access rules).
func registerBookingHooks(app core.App) {
	app.OnRecordCreateRequest("class_bookings").BindFunc(func(e *core.RecordRequestEvent) error {
		member, err := e.App.FindRecordById("users", e.Record.GetString("member"))
		if err != nil || member.GetString("role") != "member" {
			return apis.NewBadRequestError("bookings can only be made for member accounts", nil)
		}

		classID := e.Record.GetString("class")
		class, err := e.App.FindRecordById("classes", classID)
		if err != nil {
			return apis.NewBadRequestError("class not found", nil)
		}

		capacity := class.GetInt("capacity")
		booked, err := e.App.CountRecords("class_bookings", dbx.NewExp(
			"class = {:class} AND status != 'cancelled'",
			dbx.Params{"class": classID},
		))
		if err != nil {
			return fmt.Errorf("class_bookings: count for %s: %w", classID, err)
		}
		if capacity > 0 && int(booked) >= capacity {
			return apis.NewBadRequestError(
				fmt.Sprintf("class is full (%d/%d)", booked, capacity), nil)
		}

		return e.Next()
	})
}

// registerMembershipHooks validates membership date ranges on create and
// update requests.
func registerMembershipHooks(app core.App) {
	validateDates := func(e *core.RecordRequestEvent) error {
		start := e.Record.GetDateTime("start_date")
		end := e.Record.GetDateTime("end_date")
		if start.IsZero() || end.IsZero() {
			return apis.NewBadRequestError("start_date and end_date are required", nil)
		}
		if !end.Time().After(start.Time()) {
			return apis.NewBadRequestError("end_date must be after start_date", nil)
		}
		return e.Next()
	}

	app.OnRecordCreateRequest("memberships").BindFunc(validateDates)
	app.OnRecordUpdateRequest("memberships").BindFunc(validateDates)
}

// registerUserHooks prevents role escalation: only superusers may change a
// user's role, and changes are audited.
func registerUserHooks(app core.App) {
	app.OnRecordUpdateRequest("users").BindFunc(func(e *core.RecordRequestEvent) error {
		prevRole := e.Record.Original().GetString("role")
		newRole := e.Record.GetString("role")
		if prevRole == newRole {
			return e.Next()
		}

		if e.Auth == nil || e.Auth.Collection().Name != core.CollectionNameSuperusers {
			return apis.NewForbiddenError("only superusers can change user roles", nil)
		}

		err := e.Next()
		if err == nil {
			audit.Write(e.App, audit.Entry{
				UserID: e.Auth.Id, UserEmail: e.Auth.GetString("email"),
				Club:   e.Record.GetString("club"),
				Action: "user.role_change", ResourceType: "user",
				ResourceID: e.Record.Id, ResourceName: e.Record.GetString("email"),
				Status: audit.StatusSuccess,
				IP:     e.RealIP(),
				Detail: map[string]any{"from": prevRole, "to": newRole},
			})
		}
		return err
	})
}
