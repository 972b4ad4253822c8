package routes

import (
	"log"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/pocketbase/pocketbase/tools/types"

	"github.com/fitstack/gymos/internal/audit"
	"github.com/fitstack/gymos/internal/worker"
)

// registerMembershipRoutes registers the membership lifecycle endpoints
// that go beyond plain CRUD.
//
//	POST /api/ext/memberships/{id}/renew
func registerMembershipRoutes(g *router.RouterGroup[*core.RequestEvent]) {
	m := g.Group("/memberships")
	m.POST("/{id}/renew", handleMembershipRenew)
}

// handleMembershipRenew extends a membership by its package duration,
// creates the matching payment, and — when the payment is taken on the spot
// — enqueues receipt issuance.
func handleMembershipRenew(e *core.RequestEvent) error {
	if !isStaff(e.Auth) {
		return apis.NewForbiddenError("staff only", nil)
	}

	membership, err := e.App.FindRecordById("memberships", e.Request.PathValue("id"))
	if err != nil {
		return apis.NewNotFoundError("membership not found", nil)
	}
	if membership.GetString("status") == "cancelled" {
		return apis.NewBadRequestError("cancelled memberships cannot be renewed", nil)
	}

	pkg, err := e.App.FindRecordById("membership_packages", membership.GetString("package"))
	if err != nil {
		return apis.NewBadRequestError("membership package not found", nil)
	}

	var body struct {
		Method string `json:"method"`
		Paid   bool   `json:"paid"`
	}
	if err := e.BindBody(&body); err != nil {
		return apis.NewBadRequestError("invalid request body", nil)
	}
	if body.Method == "" {
		body.Method = "cash"
	}

	// Renewal extends from the current end date when still in the future,
	// otherwise from today (lapsed memberships don't get back-dated time).
	now := time.Now().UTC()
	base := membership.GetDateTime("end_date").Time()
	if base.Before(now) {
		base = now
	}
	newEnd, err := types.ParseDateTime(base.AddDate(0, 0, pkg.GetInt("duration_days")))
	if err != nil {
		return e.JSON(http.StatusInternalServerError, map[string]any{"message": "renewal failed"})
	}

	membership.Set("end_date", newEnd)
	membership.Set("status", "active")
	if sessions := pkg.GetInt("sessions_included"); sessions > 0 {
		membership.Set("sessions_remaining", membership.GetInt("sessions_remaining")+sessions)
	}

	paymentsCol, err := e.App.FindCollectionByNameOrId("payments")
	if err != nil {
		return e.JSON(http.StatusInternalServerError, map[string]any{"message": "renewal failed"})
	}
	payment := core.NewRecord(paymentsCol)
	payment.Set("club", membership.GetString("club"))
	payment.Set("member", membership.GetString("member"))
	payment.Set("membership", membership.Id)
	payment.Set("amount", pkg.GetFloat("price"))
	payment.Set("method", body.Method)
	if body.Paid {
		payment.Set("status", "completed")
		payment.Set("paid_at", types.NowDateTime())
	} else {
		payment.Set("status", "pending")
	}

	err = e.App.RunInTransaction(func(txApp core.App) error {
		if err := txApp.Save(membership); err != nil {
			return err
		}
		return txApp.Save(payment)
	})
	if err != nil {
		log.Printf("[memberships] renew %s: %v", membership.Id, err)
		return e.JSON(http.StatusInternalServerError, map[string]any{"message": "renewal failed"})
	}

	if body.Paid && asynqClient != nil {
		if task, err := worker.NewPaymentReceiptTask(payment.Id); err == nil {
			if _, err := asynqClient.Enqueue(task); err != nil {
				log.Printf("[memberships] enqueue receipt for %s: %v", payment.Id, err)
			}
		}
	}

	audit.Write(e.App, audit.Entry{
		UserID: e.Auth.Id, UserEmail: e.Auth.GetString("email"),
		Club:   membership.GetString("club"),
		Action: "membership.renew", ResourceType: "membership",
		ResourceID: membership.Id,
		Status:     audit.StatusSuccess,
		IP:         e.RealIP(),
		Detail: map[string]any{
			"package":  pkg.Id,
			"end_date": newEnd.String(),
			"payment":  payment.Id,
			"paid":     body.Paid,
		},
	})

	return e.JSON(http.StatusOK, map[string]any{
		"id":       membership.Id,
		"end_date": newEnd.String(),
		"status":   membership.GetString("status"),
		"payment":  payment.Id,
	})
}
