package settings_test

import (
	"testing"

	"github.com/pocketbase/pocketbase/tests"

	"github.com/fitstack/gymos/internal/settings"

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

func TestGetGroup_Seeded(t *testing.T) {
	app := newApp(t)

	group, err := settings.GetGroup(app, "checkin", "broadcast", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if got := settings.Int(group, "intervalSeconds", 0); got != 30 {
		t.Errorf("seeded intervalSeconds = %d, want 30", got)
	}

	group, err = settings.GetGroup(app, "membership", "policy", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if got := settings.Int(group, "graceDays", 0); got != 3 {
		t.Errorf("seeded graceDays = %d, want 3", got)
	}
}

func TestGetGroup_MissingReturnsFallback(t *testing.T) {
	app := newApp(t)

	fallback := map[string]any{"enabled": true}
	group, err := settings.GetGroup(app, "nosuch", "group", fallback)
	if err == nil {
		t.Error("expected error for missing group")
	}
	if group == nil {
		t.Fatal("group must never be nil")
	}
	if !settings.Bool(group, "enabled", false) {
		t.Error("fallback map should be returned on miss")
	}
}

func TestSetGroup_UpsertAndRoundTrip(t *testing.T) {
	app := newApp(t)

	if err := settings.SetGroup(app, "checkin", "broadcast", map[string]any{"intervalSeconds": 10}); err != nil {
		t.Fatal(err)
	}
	group, err := settings.GetGroup(app, "checkin", "broadcast", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if got := settings.Int(group, "intervalSeconds", 0); got != 10 {
		t.Errorf("updated intervalSeconds = %d, want 10", got)
	}

	// Fresh (module, key) pair creates a new row.
	if err := settings.SetGroup(app, "billing", "tax", map[string]any{"rate": "0.19", "label": "VAT"}); err != nil {
		t.Fatal(err)
	}
	group, err = settings.GetGroup(app, "billing", "tax", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if got := settings.String(group, "label", ""); got != "VAT" {
		t.Errorf("label = %q, want VAT", got)
	}
}

func TestTypedReaders(t *testing.T) {
	group := map[string]any{
		"float":   float64(7),
		"string":  "8",
		"badInt":  "not a number",
		"name":    "front desk",
		"flag":    true,
		"nilVal":  nil,
		"wrongTy": []int{1},
	}

	if got := settings.Int(group, "float", 0); got != 7 {
		t.Errorf("Int(float64) = %d, want 7", got)
	}
	if got := settings.Int(group, "string", 0); got != 8 {
		t.Errorf("Int(numeric string) = %d, want 8", got)
	}
	if got := settings.Int(group, "badInt", 42); got != 42 {
		t.Errorf("Int(bad string) = %d, want fallback 42", got)
	}
	if got := settings.Int(group, "missing", 42); got != 42 {
		t.Errorf("Int(missing) = %d, want fallback 42", got)
	}
	if got := settings.Int(group, "nilVal", 42); got != 42 {
		t.Errorf("Int(nil) = %d, want fallback 42", got)
	}

	if got := settings.String(group, "name", ""); got != "front desk" {
		t.Errorf("String = %q", got)
	}
	if got := settings.String(group, "wrongTy", "dflt"); got != "dflt" {
		t.Errorf("String(wrong type) = %q, want fallback", got)
	}

	if !settings.Bool(group, "flag", false) {
		t.Error("Bool(true) should be true")
	}
	if settings.Bool(group, "missing", false) {
		t.Error("Bool(missing) should use fallback")
	}
}
