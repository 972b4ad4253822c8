package audit_test

import (
	"testing"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tests"

	"github.com/fitstack/gymos/internal/audit"

	// trigger init() registrations
	_ "github.com/fitstack/gymos/internal/migrations"
)

func newApp(t *testing.T) *tests.TestApp {
	t.Helper()
	app, err := tests.NewTestApp()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(app.Cleanup)
	return app
}

func TestWrite(t *testing.T) {
	app := newApp(t)

	audit.Write(app, audit.Entry{
		UserID: "u1", UserEmail: "u1@test.com",
		Action: "checkin.open", ResourceType: "gym_session",
		ResourceID: "s1",
		Status:     audit.StatusSuccess,
		IP:         "10.0.0.1",
		Detail:     map[string]any{"member": "m1"},
	})

	rec, err := app.FindFirstRecordByFilter(
		"audit_logs",
		"user_id = {:user}",
		dbx.Params{"user": "u1"},
	)
	if err != nil {
		t.Fatal(err)
	}
	if rec.GetString("action") != "checkin.open" {
		t.Errorf("action = %q", rec.GetString("action"))
	}
	if rec.GetString("status") != audit.StatusSuccess {
		t.Errorf("status = %q", rec.GetString("status"))
	}
	if rec.GetString("ip") != "10.0.0.1" {
		t.Errorf("ip = %q", rec.GetString("ip"))
	}
}

func TestWrite_InvalidStatusSkipped(t *testing.T) {
	app := newApp(t)

	audit.Write(app, audit.Entry{
		UserID: "u2",
		Action: "checkin.open",
		Status: "exploded",
	})

	total, err := app.CountRecords("audit_logs")
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("audit_logs rows = %d, want 0", total)
	}
}
