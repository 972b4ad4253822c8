// Package checkin implements the realtime gym check-in subsystem: the
// connection registry, role-derived broadcast rooms, the session tracker
// state machine, and the periodic active-set broadcaster.
//
// A gym session moves NoActiveSession → Active (check-in) → NoActiveSession
// (check-out). The gym_sessions collection is the source of truth; a partial
// unique index guarantees at most one open session per member even when two
// check-in commands race.
package checkin

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// SystemOperator is the pseudo-operator used by background jobs that close
// sessions without a human actor (e.g. the stale-session auto-closer).
const SystemOperator = "system"

// Precondition errors. Their text is the stable, user-visible message sent
// back on the originating connection; infrastructure failures are mapped to
// generic messages at the command boundary instead.
var (
	ErrMemberNotFound    = errors.New("Member not found or inactive")
	ErrAlreadyActive     = errors.New("Member already has an active session")
	ErrSessionNotFound   = errors.New("Session not found")
	ErrAlreadyCheckedOut = errors.New("Session already checked out")
	ErrOperatorNotAdmin  = errors.New("Force check-out requires an admin operator")
)

// IsPrecondition reports whether err is one of the tracker's precondition
// errors (safe to show to the client verbatim).
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrAlreadyCheckedOut) ||
		errors.Is(err, ErrOperatorNotAdmin)
}

// Tracker owns the check-in/check-out state machine. All persistence goes
// through the gym_sessions collection; all fan-out goes through the attached
// Dispatcher.
type Tracker struct {
	app      core.App
	dispatch Dispatcher
}

// NewTracker returns a Tracker bound to app and dispatching events via d.
// A nil d falls back to a logging dispatcher.
func NewTracker(app core.App, d Dispatcher) *Tracker {
	if d == nil {
		d = logDispatcher{}
	}
	return &Tracker{app: app, dispatch: d}
}

// CheckIn opens a new session for memberID.
//
// Preconditions: the user must exist, have the member role, and be active;
// the member must not already have an open session. The duplicate-session
// check is additionally enforced by a partial unique index on gym_sessions,
// so a read-then-write race between two concurrent check-ins is rejected by
// the store and surfaced as ErrAlreadyActive.
func (t *Tracker) CheckIn(memberID, operatorID, notes string) (*core.Record, error) {
	member, err := t.app.FindRecordById("users", memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("checkin: find member %s: %w", memberID, err)
	}
	if member.GetString("role") != "member" || member.GetString("status") != "active" {
		return nil, ErrMemberNotFound
	}

	// Friendly pre-check; the index below is the real guard.
	_, err = t.app.FindFirstRecordByFilter(
		"gym_sessions",
		"member = {:member} && check_out_time = ''",
		dbx.Params{"member": memberID},
	)
	if err == nil {
		return nil, ErrAlreadyActive
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkin: active lookup for %s: %w", memberID, err)
	}

	col, err := t.app.FindCollectionByNameOrId("gym_sessions")
	if err != nil {
		return nil, fmt.Errorf("checkin: gym_sessions collection: %w", err)
	}

	if operatorID == "" {
		operatorID = memberID
	}

	rec := core.NewRecord(col)
	rec.Set("club", member.GetString("club"))
	rec.Set("member", memberID)
	rec.Set("check_in_time", types.NowDateTime())
	rec.Set("notes", notes)
	rec.Set("checked_in_by", operatorID)

	if err := t.app.Save(rec); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyActive
		}
		return nil, fmt.Errorf("checkin: save session: %w", err)
	}

	session := t.serialize(rec)
	t.dispatch.Broadcast(
		Event{Name: EventSessionUpdate, Data: SessionUpdate{
			Type:    "checkin",
			Session: session,
			Message: fmt.Sprintf("%s checked in", displayName(member)),
		}},
		RoomAdmin, RoomTrainer, MemberRoom(memberID),
	)
	t.broadcastActiveSet()

	return rec, nil
}

// CheckOut closes the session. The check-out timestamp is set exactly once;
// duration is computed and frozen at this point, and notes are appended
// pipe-delimited, never overwritten.
func (t *Tracker) CheckOut(sessionID, operatorID, notes string) (*core.Record, error) {
	return t.close(sessionID, operatorID, "Check-out: "+notes)
}

// ForceCheckOut is CheckOut restricted to admin-role operators (or the
// system pseudo-operator used by background jobs), with the supplied reason
// recorded in the session notes.
func (t *Tracker) ForceCheckOut(sessionID, operatorID, reason string) (*core.Record, error) {
	if operatorID != SystemOperator {
		op, err := t.app.FindRecordById("users", operatorID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrOperatorNotAdmin
			}
			return nil, fmt.Errorf("checkin: find operator %s: %w", operatorID, err)
		}
		if op.GetString("role") != "admin" {
			return nil, ErrOperatorNotAdmin
		}
	}
	return t.close(sessionID, operatorID, "Force check-out: "+reason)
}

// close performs the shared check-out transition.
func (t *Tracker) close(sessionID, operatorID, noteEntry string) (*core.Record, error) {
	rec, err := t.app.FindRecordById("gym_sessions", sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("checkin: find session %s: %w", sessionID, err)
	}
	if !rec.GetDateTime("check_out_time").IsZero() {
		return nil, ErrAlreadyCheckedOut
	}

	now := types.NowDateTime()
	rec.Set("check_out_time", now)
	rec.Set("duration_minutes", roundMinutes(now.Time().Sub(rec.GetDateTime("check_in_time").Time())))
	rec.Set("notes", appendNote(rec.GetString("notes"), noteEntry))
	rec.Set("checked_out_by", operatorID)

	if err := t.app.Save(rec); err != nil {
		return nil, fmt.Errorf("checkin: save checkout: %w", err)
	}

	memberID := rec.GetString("member")
	t.dispatch.Broadcast(
		Event{Name: EventSessionUpdate, Data: SessionUpdate{
			Type:    "checkout",
			Session: t.serialize(rec),
			Message: fmt.Sprintf("Session closed after %d min", rec.GetInt("duration_minutes")),
		}},
		RoomAdmin, RoomTrainer, MemberRoom(memberID),
	)
	t.broadcastActiveSet()

	return rec, nil
}

// UpdateDuration computes the live elapsed minutes of a still-open session
// without mutating persisted state and emits a duration-update event to the
// admin room and the member's room. For an already-closed session it is a
// silent no-op returning 0.
func (t *Tracker) UpdateDuration(sessionID string) (int, error) {
	rec, err := t.app.FindRecordById("gym_sessions", sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("checkin: find session %s: %w", sessionID, err)
	}
	if !rec.GetDateTime("check_out_time").IsZero() {
		return 0, nil
	}

	minutes := roundMinutes(time.Since(rec.GetDateTime("check_in_time").Time()))
	t.dispatch.Broadcast(
		Event{Name: EventDurationUpdate, Data: DurationUpdate{
			SessionID: rec.Id,
			Duration:  minutes,
		}},
		RoomAdmin, MemberRoom(rec.GetString("member")),
	)
	return minutes, nil
}

// ListActive returns all open sessions, most recent check-in first.
func (t *Tracker) ListActive() ([]*core.Record, error) {
	return t.app.FindRecordsByFilter(
		"gym_sessions",
		"check_out_time = ''",
		"-check_in_time",
		0, 0,
	)
}

// ActiveSnapshot builds the wire payload for an active-sessions-update
// event.
func (t *Tracker) ActiveSnapshot() (ActiveSessions, error) {
	records, err := t.ListActive()
	if err != nil {
		return ActiveSessions{}, fmt.Errorf("checkin: list active: %w", err)
	}
	sessions := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, t.serialize(rec))
	}
	return ActiveSessions{Count: len(sessions), Sessions: sessions}, nil
}

// BroadcastActiveSessions recomputes the active set and broadcasts it to the
// admin room. Failures are returned for the caller to log; the broadcast
// itself is best-effort.
func (t *Tracker) BroadcastActiveSessions() error {
	snapshot, err := t.ActiveSnapshot()
	if err != nil {
		return err
	}
	t.dispatch.Broadcast(Event{Name: EventActiveSessions, Data: snapshot}, RoomAdmin)
	return nil
}

// broadcastActiveSet refreshes the admin room's active set after a state
// transition. The transition has already committed at this point, so a
// failed recompute is logged rather than bubbled up.
func (t *Tracker) broadcastActiveSet() {
	if err := t.BroadcastActiveSessions(); err != nil {
		log.Printf("[checkin] active set broadcast failed: %v", err)
	}
}

// serialize flattens a session record into the wire shape. The member
// relation is expanded for display; duration on an open session is the live
// value computed from now, never persisted.
func (t *Tracker) serialize(rec *core.Record) map[string]any {
	duration := rec.GetInt("duration_minutes")
	checkOut := rec.GetDateTime("check_out_time")
	if checkOut.IsZero() {
		duration = roundMinutes(time.Since(rec.GetDateTime("check_in_time").Time()))
	}

	memberName := ""
	if errs := t.app.ExpandRecord(rec, []string{"member"}, nil); len(errs) == 0 {
		if member := rec.ExpandedOne("member"); member != nil {
			memberName = displayName(member)
		}
	}

	out := map[string]any{
		"id":              rec.Id,
		"memberId":        rec.GetString("member"),
		"memberName":      memberName,
		"checkInTime":     rec.GetDateTime("check_in_time").String(),
		"durationMinutes": duration,
		"notes":           rec.GetString("notes"),
		"checkedInBy":     rec.GetString("checked_in_by"),
		"checkedOutBy":    rec.GetString("checked_out_by"),
	}
	if checkOut.IsZero() {
		out["checkOutTime"] = nil
	} else {
		out["checkOutTime"] = checkOut.String()
	}
	return out
}

// roundMinutes converts an elapsed duration to whole minutes, rounding half
// away from zero (27m30s → 28).
func roundMinutes(d time.Duration) int {
	return int(math.Round(float64(d.Milliseconds()) / 60000.0))
}

// appendNote appends entry to existing, pipe-delimited, preserving prior
// content.
func appendNote(existing, entry string) string {
	return strings.TrimSpace(existing + " | " + entry)
}

func displayName(user *core.Record) string {
	if name := user.GetString("name"); name != "" {
		return name
	}
	return user.GetString("email")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
