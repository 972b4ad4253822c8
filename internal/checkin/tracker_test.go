package checkin

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/pocketbase/pocketbase/tools/types"

	// trigger init() registrations
	_ "github.com/fitstack/gymos/internal/migrations"
)

// recorder captures dispatched events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []recorded
}

type recorded struct {
	ev    Event
	rooms []string
}

func (r *recorder) Broadcast(ev Event, rooms ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{ev: ev, rooms: rooms})
}

func (r *recorder) byName(name string) []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recorded
	for _, rec := range r.events {
		if rec.ev.Name == name {
			out = append(out, rec)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func newTrackerEnv(t *testing.T) (*tests.TestApp, *Tracker, *recorder) {
	t.Helper()
	app, err := tests.NewTestApp()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(app.Cleanup)

	rec := &recorder{}
	return app, NewTracker(app, rec), rec
}

func seedUser(t *testing.T, app core.App, email, role, status string) *core.Record {
	t.Helper()
	col, err := app.FindCollectionByNameOrId("users")
	if err != nil {
		t.Fatal(err)
	}
	u := core.NewRecord(col)
	u.Set("email", email)
	u.Set("name", strings.Split(email, "@")[0])
	u.Set("role", role)
	u.Set("status", status)
	u.SetPassword("1234567890")
	if err := app.Save(u); err != nil {
		t.Fatal(err)
	}
	return u
}

func seedMember(t *testing.T, app core.App, email string) *core.Record {
	t.Helper()
	return seedUser(t, app, email, "member", "active")
}

// backdate moves a session's check-in timestamp into the past, bypassing the
// tracker, to exercise duration math.
func backdate(t *testing.T, app core.App, session *core.Record, by time.Duration) {
	t.Helper()
	past, err := types.ParseDateTime(time.Now().UTC().Add(-by))
	if err != nil {
		t.Fatal(err)
	}
	session.Set("check_in_time", past)
	if err := app.Save(session); err != nil {
		t.Fatal(err)
	}
}

func TestCheckIn(t *testing.T) {
	app, tracker, rec := newTrackerEnv(t)
	member := seedMember(t, app, "alice@test.com")
	operator := seedUser(t, app, "desk@test.com", "admin", "active")

	session, err := tracker.CheckIn(member.Id, operator.Id, "morning visit")
	if err != nil {
		t.Fatal(err)
	}

	if session.GetString("member") != member.Id {
		t.Errorf("member = %q, want %q", session.GetString("member"), member.Id)
	}
	if session.GetDateTime("check_in_time").IsZero() {
		t.Error("check_in_time should be set")
	}
	if !session.GetDateTime("check_out_time").IsZero() {
		t.Error("check_out_time should be zero on an open session")
	}
	if session.GetString("notes") != "morning visit" {
		t.Errorf("notes = %q", session.GetString("notes"))
	}
	if session.GetString("checked_in_by") != operator.Id {
		t.Errorf("checked_in_by = %q, want %q", session.GetString("checked_in_by"), operator.Id)
	}

	updates := rec.byName(EventSessionUpdate)
	if len(updates) != 1 {
		t.Fatalf("session-update events = %d, want 1", len(updates))
	}
	wantRooms := []string{RoomAdmin, RoomTrainer, MemberRoom(member.Id)}
	if fmt.Sprint(updates[0].rooms) != fmt.Sprint(wantRooms) {
		t.Errorf("rooms = %v, want %v", updates[0].rooms, wantRooms)
	}
	payload, ok := updates[0].ev.Data.(SessionUpdate)
	if !ok {
		t.Fatalf("unexpected payload type %T", updates[0].ev.Data)
	}
	if payload.Type != "checkin" {
		t.Errorf("payload type = %q, want checkin", payload.Type)
	}
	if payload.Session["checkOutTime"] != nil {
		t.Errorf("open session checkOutTime = %v, want nil", payload.Session["checkOutTime"])
	}

	active := rec.byName(EventActiveSessions)
	if len(active) != 1 {
		t.Fatalf("active-sessions-update events = %d, want 1", len(active))
	}
	if fmt.Sprint(active[0].rooms) != fmt.Sprint([]string{RoomAdmin}) {
		t.Errorf("active set went to %v, want admin room only", active[0].rooms)
	}
	snapshot := active[0].ev.Data.(ActiveSessions)
	if snapshot.Count != 1 {
		t.Errorf("snapshot count = %d, want 1", snapshot.Count)
	}
}

func TestCheckIn_DefaultsOperatorToMember(t *testing.T) {
	app, tracker, _ := newTrackerEnv(t)
	member := seedMember(t, app, "self@test.com")

	session, err := tracker.CheckIn(member.Id, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if session.GetString("checked_in_by") != member.Id {
		t.Errorf("checked_in_by = %q, want member id", session.GetString("checked_in_by"))
	}
}

func TestCheckIn_MemberNotEligible(t *testing.T) {
	app, tracker, rec := newTrackerEnv(t)
	inactive := seedUser(t, app, "gone@test.com", "member", "inactive")
	trainer := seedUser(t, app, "coach@test.com", "trainer", "active")

	cases := []struct {
		name     string
		memberID string
	}{
		{"unknown id", "zzzzzzzzzzzzzzz"},
		{"inactive member", inactive.Id},
		{"non-member role", trainer.Id},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := tracker.CheckIn(c.memberID, "", ""); !errors.Is(err, ErrMemberNotFound) {
				t.Errorf("err = %v, want ErrMemberNotFound", err)
			}
		})
	}
	if len(rec.events) != 0 {
		t.Errorf("rejected check-ins must not broadcast, got %d events", len(rec.events))
	}
}

func TestCheckIn_DuplicateRejected(t *testing.T) {
	app, tracker, _ := newTrackerEnv(t)
	member := seedMember(t, app, "dup@test.com")

	if _, err := tracker.CheckIn(member.Id, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.CheckIn(member.Id, "", ""); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second check-in err = %v, want ErrAlreadyActive", err)
	}

	// A closed session frees the member for a new one.
	open, err := tracker.ListActive()
	if err != nil || len(open) != 1 {
		t.Fatalf("ListActive = %d sessions, err %v", len(open), err)
	}
	if _, err := tracker.CheckOut(open[0].Id, member.Id, "leaving"); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.CheckIn(member.Id, "", ""); err != nil {
		t.Fatalf("check-in after checkout: %v", err)
	}
}

func TestCheckOut(t *testing.T) {
	app, tracker, rec := newTrackerEnv(t)
	member := seedMember(t, app, "bob@test.com")

	session, err := tracker.CheckIn(member.Id, "", "")
	if err != nil {
		t.Fatal(err)
	}
	backdate(t, app, session, 27*time.Minute+30*time.Second)
	rec.reset()

	closed, err := tracker.CheckOut(session.Id, member.Id, "done")
	if err != nil {
		t.Fatal(err)
	}

	if closed.GetDateTime("check_out_time").IsZero() {
		t.Error("check_out_time should be set")
	}
	if got := closed.GetInt("duration_minutes"); got != 28 {
		t.Errorf("duration_minutes = %d, want 28 (half rounds away from zero)", got)
	}
	if got := closed.GetString("notes"); got != "| Check-out: done" {
		t.Errorf("notes = %q, want %q", got, "| Check-out: done")
	}
	if closed.GetString("checked_out_by") != member.Id {
		t.Errorf("checked_out_by = %q", closed.GetString("checked_out_by"))
	}

	updates := rec.byName(EventSessionUpdate)
	if len(updates) != 1 {
		t.Fatalf("session-update events = %d, want 1", len(updates))
	}
	payload := updates[0].ev.Data.(SessionUpdate)
	if payload.Type != "checkout" {
		t.Errorf("payload type = %q, want checkout", payload.Type)
	}
	if payload.Session["checkOutTime"] == nil {
		t.Error("closed session checkOutTime should be set")
	}
	if len(rec.byName(EventActiveSessions)) != 1 {
		t.Error("checkout should rebroadcast the active set")
	}
}

func TestCheckOut_AppendsToExistingNotes(t *testing.T) {
	app, tracker, _ := newTrackerEnv(t)
	member := seedMember(t, app, "carol@test.com")

	session, err := tracker.CheckIn(member.Id, "", "arrived early")
	if err != nil {
		t.Fatal(err)
	}
	closed, err := tracker.CheckOut(session.Id, member.Id, "left on time")
	if err != nil {
		t.Fatal(err)
	}
	want := "arrived early | Check-out: left on time"
	if got := closed.GetString("notes"); got != want {
		t.Errorf("notes = %q, want %q", got, want)
	}
}

func TestCheckOut_Preconditions(t *testing.T) {
	app, tracker, _ := newTrackerEnv(t)
	member := seedMember(t, app, "dave@test.com")

	if _, err := tracker.CheckOut("zzzzzzzzzzzzzzz", member.Id, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session err = %v, want ErrSessionNotFound", err)
	}

	session, err := tracker.CheckIn(member.Id, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.CheckOut(session.Id, member.Id, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.CheckOut(session.Id, member.Id, ""); !errors.Is(err, ErrAlreadyCheckedOut) {
		t.Errorf("double checkout err = %v, want ErrAlreadyCheckedOut", err)
	}
}

func TestForceCheckOut(t *testing.T) {
	app, tracker, _ := newTrackerEnv(t)
	member := seedMember(t, app, "eve@test.com")
	admin := seedUser(t, app, "boss@test.com", "admin", "active")
	trainer := seedUser(t, app, "pt@test.com", "trainer", "active")

	session, err := tracker.CheckIn(member.Id, "", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tracker.ForceCheckOut(session.Id, trainer.Id, "closing"); !errors.Is(err, ErrOperatorNotAdmin) {
		t.Errorf("trainer force checkout err = %v, want ErrOperatorNotAdmin", err)
	}
	if _, err := tracker.ForceCheckOut(session.Id, "zzzzzzzzzzzzzzz", "closing"); !errors.Is(err, ErrOperatorNotAdmin) {
		t.Errorf("unknown operator err = %v, want ErrOperatorNotAdmin", err)
	}

	closed, err := tracker.ForceCheckOut(session.Id, admin.Id, "closing time")
	if err != nil {
		t.Fatal(err)
	}
	if got := closed.GetString("notes"); got != "| Force check-out: closing time" {
		t.Errorf("notes = %q", got)
	}
	if closed.GetString("checked_out_by") != admin.Id {
		t.Errorf("checked_out_by = %q, want admin id", closed.GetString("checked_out_by"))
	}
}

func TestForceCheckOut_SystemOperator(t *testing.T) {
	app, tracker, _ := newTrackerEnv(t)
	member := seedMember(t, app, "stale@test.com")

	session, err := tracker.CheckIn(member.Id, "", "")
	if err != nil {
		t.Fatal(err)
	}
	closed, err := tracker.ForceCheckOut(session.Id, SystemOperator, "auto-closed after 12h")
	if err != nil {
		t.Fatal(err)
	}
	if closed.GetString("checked_out_by") != SystemOperator {
		t.Errorf("checked_out_by = %q, want %q", closed.GetString("checked_out_by"), SystemOperator)
	}
}

func TestUpdateDuration(t *testing.T) {
	app, tracker, rec := newTrackerEnv(t)
	member := seedMember(t, app, "frank@test.com")

	session, err := tracker.CheckIn(member.Id, "", "")
	if err != nil {
		t.Fatal(err)
	}
	backdate(t, app, session, 45*time.Minute)
	rec.reset()

	minutes, err := tracker.UpdateDuration(session.Id)
	if err != nil {
		t.Fatal(err)
	}
	if minutes != 45 {
		t.Errorf("minutes = %d, want 45", minutes)
	}

	events := rec.byName(EventDurationUpdate)
	if len(events) != 1 {
		t.Fatalf("duration-update events = %d, want 1", len(events))
	}
	wantRooms := []string{RoomAdmin, MemberRoom(member.Id)}
	if fmt.Sprint(events[0].rooms) != fmt.Sprint(wantRooms) {
		t.Errorf("rooms = %v, want %v", events[0].rooms, wantRooms)
	}
	payload := events[0].ev.Data.(DurationUpdate)
	if payload.SessionID != session.Id || payload.Duration != 45 {
		t.Errorf("payload = %+v", payload)
	}

	// Persisted duration stays untouched while the session is open.
	fresh, err := app.FindRecordById("gym_sessions", session.Id)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.GetInt("duration_minutes") != 0 {
		t.Errorf("persisted duration = %d, want 0", fresh.GetInt("duration_minutes"))
	}
}

func TestUpdateDuration_ClosedSessionNoOp(t *testing.T) {
	app, tracker, rec := newTrackerEnv(t)
	member := seedMember(t, app, "grace@test.com")

	session, err := tracker.CheckIn(member.Id, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.CheckOut(session.Id, member.Id, ""); err != nil {
		t.Fatal(err)
	}
	rec.reset()

	minutes, err := tracker.UpdateDuration(session.Id)
	if err != nil {
		t.Fatal(err)
	}
	if minutes != 0 {
		t.Errorf("minutes = %d, want 0", minutes)
	}
	if len(rec.events) != 0 {
		t.Errorf("closed session must not dispatch, got %d events", len(rec.events))
	}
}

func TestUpdateDuration_UnknownSession(t *testing.T) {
	_, tracker, _ := newTrackerEnv(t)
	if _, err := tracker.UpdateDuration("zzzzzzzzzzzzzzz"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestActiveSnapshot(t *testing.T) {
	app, tracker, _ := newTrackerEnv(t)
	first := seedMember(t, app, "first@test.com")
	second := seedMember(t, app, "second@test.com")

	s1, err := tracker.CheckIn(first.Id, "", "")
	if err != nil {
		t.Fatal(err)
	}
	backdate(t, app, s1, time.Hour)
	if _, err := tracker.CheckIn(second.Id, "", ""); err != nil {
		t.Fatal(err)
	}

	snapshot, err := tracker.ActiveSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.Count != 2 || len(snapshot.Sessions) != 2 {
		t.Fatalf("snapshot = %d/%d sessions, want 2", snapshot.Count, len(snapshot.Sessions))
	}
	// Most recent check-in first.
	if snapshot.Sessions[0]["memberId"] != second.Id {
		t.Errorf("first snapshot entry member = %v, want most recent", snapshot.Sessions[0]["memberId"])
	}
	if snapshot.Sessions[0]["memberName"] != "second" {
		t.Errorf("memberName = %v, want expanded user name", snapshot.Sessions[0]["memberName"])
	}
}

func TestBroadcastActiveSetFailureLogged(t *testing.T) {
	app, tracker, rec := newTrackerEnv(t)

	col, err := app.FindCollectionByNameOrId("gym_sessions")
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Delete(col); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	tracker.broadcastActiveSet()

	if !strings.Contains(buf.String(), "active set broadcast failed") {
		t.Errorf("broadcast failure not logged, log output: %q", buf.String())
	}
	if len(rec.byName(EventActiveSessions)) != 0 {
		t.Error("failed recompute must not dispatch a snapshot")
	}
}

func TestRoundMinutes(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{29 * time.Second, 0},
		{31 * time.Second, 1},
		{27*time.Minute + 30*time.Second, 28},
		{27*time.Minute + 29*time.Second, 27},
		{90 * time.Minute, 90},
	}
	for _, c := range cases {
		if got := roundMinutes(c.d); got != c.want {
			t.Errorf("roundMinutes(%v) = %d, want %d", c.d, got, c.want)
		}
	}
}

func TestIsPrecondition(t *testing.T) {
	for _, err := range []error{ErrMemberNotFound, ErrAlreadyActive, ErrSessionNotFound, ErrAlreadyCheckedOut, ErrOperatorNotAdmin} {
		if !IsPrecondition(err) {
			t.Errorf("IsPrecondition(%v) = false, want true", err)
		}
	}
	if IsPrecondition(errors.New("boom")) {
		t.Error("IsPrecondition should be false for arbitrary errors")
	}
}
