package routes

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/hook"
	"github.com/pocketbase/pocketbase/tools/router"

	"github.com/fitstack/gymos/internal/audit"
	"github.com/fitstack/gymos/internal/checkin"
)

var wsUpgrader = websocket.Upgrader{
	// CheckOrigin allows all origins. Authentication is enforced via JWT
	// (wsTokenAuth + RequireAuth); review before exposing beyond a
	// single-club deployment behind a trusted frontend.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTokenAuth authenticates WebSocket upgrade requests using a "token"
// query parameter. Browsers cannot set custom headers on WS upgrade, so the
// frontend sends the JWT as ?token=.
func wsTokenAuth() *hook.Handler[*core.RequestEvent] {
	return &hook.Handler[*core.RequestEvent]{
		Id: "wsTokenAuth",
		// Must run AFTER loadAuthToken (-1020) but BEFORE RequireAuth (0)
		// from the parent /api/ext group.
		Priority: -1019,
		Func: func(e *core.RequestEvent) error {
			if e.Auth != nil {
				return e.Next()
			}
			tok := e.Request.URL.Query().Get("token")
			if tok == "" {
				return e.Next()
			}
			record, err := e.App.FindAuthRecordByToken(tok, core.TokenTypeAuth)
			if err == nil && record != nil {
				e.Auth = record
			}
			return e.Next()
		},
	}
}

// registerCheckinRoutes registers the realtime check-in WebSocket and its
// REST companions.
//
//	GET  /api/ext/checkin/ws                          — WebSocket command channel
//	GET  /api/ext/checkin/active                      — active-session snapshot (staff)
//	POST /api/ext/checkin/{sessionId}/force-checkout  — privileged close (admin)
func registerCheckinRoutes(g *router.RouterGroup[*core.RequestEvent]) {
	c := g.Group("/checkin")
	c.Bind(wsTokenAuth())

	c.GET("/ws", handleCheckinWS)
	c.GET("/active", handleActiveSessions)
	c.POST("/{sessionId}/force-checkout", handleForceCheckout)
}

// wsCommand is the client → server message shape. Action selects the
// command; the remaining fields are per-action arguments.
type wsCommand struct {
	Action       string `json:"action"`
	UserID       string `json:"userId"`
	Role         string `json:"role"`
	MemberID     string `json:"memberId"`
	SessionID    string `json:"sessionId"`
	Notes        string `json:"notes"`
	CheckedInBy  string `json:"checkedInBy"`
	CheckedOutBy string `json:"checkedOutBy"`
}

func handleCheckinWS(e *core.RequestEvent) error {
	conn, err := wsUpgrader.Upgrade(e.Response, e.Request, nil)
	if err != nil {
		return nil // Upgrade already wrote the response
	}
	defer conn.Close()

	client := checkin.NewClient(conn)
	go client.WritePump()

	defer func() {
		checkinRegistry.Unregister(client.ID)
		checkinHub.Leave(client)
		client.Close()
	}()

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return nil // disconnect or malformed frame; transport owns the close
		}

		switch cmd.Action {
		case "join-room":
			handleJoinRoom(e, client, cmd)
		case "checkin":
			handleWSCheckin(e, client, cmd)
		case "checkout":
			handleWSCheckout(e, client, cmd)
		case "update-duration":
			if _, err := checkinTracker.UpdateDuration(cmd.SessionID); err != nil {
				client.Send(checkin.ClientError(clientMessage(err, "Duration update failed")))
			}
		default:
			client.Send(checkin.ClientError("unknown action"))
		}
	}
}

func handleJoinRoom(e *core.RequestEvent, client *checkin.Client, cmd wsCommand) {
	role, err := checkin.ParseRole(cmd.Role)
	if err != nil {
		client.Send(checkin.ClientError(err.Error()))
		return
	}

	userID := cmd.UserID
	if userID == "" && e.Auth != nil {
		userID = e.Auth.Id
	}
	if userID == "" {
		client.Send(checkin.ClientError("userId is required"))
		return
	}

	room := checkinRegistry.Register(client.ID, userID, role)
	checkinHub.Join(room, client)
}

func handleWSCheckin(e *core.RequestEvent, client *checkin.Client, cmd wsCommand) {
	operator := cmd.CheckedInBy
	if operator == "" && e.Auth != nil && !isSuperuser(e.Auth) {
		operator = e.Auth.Id
	}

	session, err := checkinTracker.CheckIn(cmd.MemberID, operator, cmd.Notes)
	if err != nil {
		client.Send(checkin.ClientError(clientMessage(err, "Check-in failed")))
		return
	}

	audit.Write(e.App, audit.Entry{
		UserID: operator,
		Club:   session.GetString("club"),
		Action: "checkin.open", ResourceType: "gym_session",
		ResourceID: session.Id,
		Status:     audit.StatusSuccess,
		IP:         e.RealIP(),
		Detail:     map[string]any{"member": cmd.MemberID},
	})
}

func handleWSCheckout(e *core.RequestEvent, client *checkin.Client, cmd wsCommand) {
	operator := cmd.CheckedOutBy
	if operator == "" && e.Auth != nil && !isSuperuser(e.Auth) {
		operator = e.Auth.Id
	}

	session, err := checkinTracker.CheckOut(cmd.SessionID, operator, cmd.Notes)
	if err != nil {
		client.Send(checkin.ClientError(clientMessage(err, "Check-out failed")))
		return
	}

	audit.Write(e.App, audit.Entry{
		UserID: operator,
		Club:   session.GetString("club"),
		Action: "checkin.close", ResourceType: "gym_session",
		ResourceID: session.Id,
		Status:     audit.StatusSuccess,
		IP:         e.RealIP(),
		Detail:     map[string]any{"duration_minutes": session.GetInt("duration_minutes")},
	})
}

// clientMessage maps a tracker error to the message sent back to the
// originating connection: precondition errors verbatim, infrastructure
// failures as a stable generic message with the detail logged server-side.
func clientMessage(err error, fallback string) string {
	if checkin.IsPrecondition(err) {
		return err.Error()
	}
	log.Printf("[checkin] %s: %v", fallback, err)
	return fallback
}

func handleActiveSessions(e *core.RequestEvent) error {
	if !isStaff(e.Auth) {
		return apis.NewForbiddenError("staff only", nil)
	}

	snapshot, err := checkinTracker.ActiveSnapshot()
	if err != nil {
		return e.JSON(http.StatusInternalServerError, map[string]any{"message": "failed to load active sessions"})
	}
	return e.JSON(http.StatusOK, snapshot)
}

func handleForceCheckout(e *core.RequestEvent) error {
	if !isAdmin(e.Auth) {
		return apis.NewForbiddenError("admin only", nil)
	}

	sessionID := e.Request.PathValue("sessionId")

	var body struct {
		Reason string `json:"reason"`
	}
	if err := e.BindBody(&body); err != nil || body.Reason == "" {
		return apis.NewBadRequestError("reason required", nil)
	}

	operator := e.Auth.Id
	if isSuperuser(e.Auth) {
		operator = checkin.SystemOperator
	}

	session, err := checkinTracker.ForceCheckOut(sessionID, operator, body.Reason)
	if err != nil {
		if checkin.IsPrecondition(err) {
			return apis.NewBadRequestError(err.Error(), nil)
		}
		return e.JSON(http.StatusInternalServerError, map[string]any{"message": "Check-out failed"})
	}

	audit.Write(e.App, audit.Entry{
		UserID: e.Auth.Id, UserEmail: e.Auth.GetString("email"),
		Club:   session.GetString("club"),
		Action: "checkin.force_checkout", ResourceType: "gym_session",
		ResourceID: session.Id,
		Status:     audit.StatusSuccess,
		IP:         e.RealIP(),
		Detail:     map[string]any{"reason": body.Reason},
	})

	return e.JSON(http.StatusOK, map[string]any{
		"id":               session.Id,
		"check_out_time":   session.GetDateTime("check_out_time").String(),
		"duration_minutes": session.GetInt("duration_minutes"),
	})
}
