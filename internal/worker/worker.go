// Package worker manages the embedded Asynq task worker.
//
// The worker runs as a goroutine inside the PocketBase process, connecting
// to Redis for persistent async task processing. A scheduler enqueues the
// recurring maintenance scans.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/oklog/ulid/v2"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"github.com/fitstack/gymos/internal/audit"
	"github.com/fitstack/gymos/internal/checkin"
	"github.com/fitstack/gymos/internal/config"
	"github.com/fitstack/gymos/internal/settings"
)

const (
	// Task type constants
	TaskMembershipExpireScan = "membership:expire-scan"
	TaskSessionAutoclose     = "checkin:autoclose"
	TaskPaymentReceipt       = "payment:receipt"
)

// receiptPayload is the JSON body of a payment:receipt task.
type receiptPayload struct {
	PaymentID string `json:"payment_id"`
}

// NewPaymentReceiptTask builds a receipt-issuance task for one payment.
func NewPaymentReceiptTask(paymentID string) (*asynq.Task, error) {
	body, err := json.Marshal(receiptPayload{PaymentID: paymentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentReceipt, body), nil
}

// Worker manages the Asynq server, scheduler, and a shared client for
// enqueuing tasks.
type Worker struct {
	app       *pocketbase.PocketBase
	tracker   *checkin.Tracker
	cfg       *config.Config
	server    *asynq.Server
	scheduler *asynq.Scheduler
	client    *asynq.Client
}

// New creates a Worker bound to the app. Call Start() once PocketBase is
// serving and Shutdown() on terminate.
func New(app *pocketbase.PocketBase, tracker *checkin.Tracker, cfg *config.Config) *Worker {
	opt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	})

	return &Worker{
		app:       app,
		tracker:   tracker,
		cfg:       cfg,
		server:    srv,
		scheduler: asynq.NewScheduler(opt, nil),
		client:    asynq.NewClient(opt),
	}
}

// Start begins processing tasks and registers the recurring scans.
func (w *Worker) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskMembershipExpireScan, w.handleMembershipExpireScan)
	mux.HandleFunc(TaskSessionAutoclose, w.handleSessionAutoclose)
	mux.HandleFunc(TaskPaymentReceipt, w.handlePaymentReceipt)

	go func() {
		if err := w.server.Run(mux); err != nil {
			log.Printf("[worker] asynq server error: %v", err)
		}
	}()

	if _, err := w.scheduler.Register("@every 24h",
		asynq.NewTask(TaskMembershipExpireScan, nil), asynq.Queue("low")); err != nil {
		log.Printf("[worker] schedule expire-scan: %v", err)
	}
	if _, err := w.scheduler.Register("@every 1h",
		asynq.NewTask(TaskSessionAutoclose, nil), asynq.Queue("low")); err != nil {
		log.Printf("[worker] schedule autoclose: %v", err)
	}
	if err := w.scheduler.Start(); err != nil {
		log.Printf("[worker] asynq scheduler error: %v", err)
	}
}

// Client returns the shared Asynq client for enqueuing tasks.
func (w *Worker) Client() *asynq.Client {
	return w.client
}

// Shutdown gracefully stops the scheduler, server, and client.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
	_ = w.client.Close()
}

func (w *Worker) handleMembershipExpireScan(ctx context.Context, t *asynq.Task) error {
	n, err := runMembershipExpireScan(w.app)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("[worker] expired %d membership(s)", n)
	}
	return nil
}

func (w *Worker) handleSessionAutoclose(ctx context.Context, t *asynq.Task) error {
	n, err := runSessionAutoclose(w.app, w.tracker, w.cfg.AutocloseAfter)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("[worker] auto-closed %d stale session(s)", n)
	}
	return nil
}

func (w *Worker) handlePaymentReceipt(ctx context.Context, t *asynq.Task) error {
	var payload receiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("receipt: bad payload: %w", err)
	}
	return runPaymentReceipt(w.app, payload.PaymentID)
}

// runMembershipExpireScan marks active memberships past their end date
// (plus the configured grace period) as expired. Returns how many were
// flipped.
func runMembershipExpireScan(app core.App) (int, error) {
	policy, _ := settings.GetGroup(app, "membership", "policy", map[string]any{"graceDays": 3})
	graceDays := settings.Int(policy, "graceDays", 3)

	cutoff, err := types.ParseDateTime(time.Now().UTC().AddDate(0, 0, -graceDays))
	if err != nil {
		return 0, fmt.Errorf("expire-scan: cutoff: %w", err)
	}

	records, err := app.FindRecordsByFilter(
		"memberships",
		"status = 'active' && end_date != '' && end_date < {:cutoff}",
		"", 0, 0,
		dbx.Params{"cutoff": cutoff.String()},
	)
	if err != nil {
		return 0, fmt.Errorf("expire-scan: query: %w", err)
	}

	expired := 0
	for _, rec := range records {
		rec.Set("status", "expired")
		if err := app.Save(rec); err != nil {
			log.Printf("[worker] expire membership %s: %v", rec.Id, err)
			continue
		}
		expired++
		audit.Write(app, audit.Entry{
			UserID: "system",
			Club:   rec.GetString("club"),
			Action: "membership.expire", ResourceType: "membership",
			ResourceID: rec.Id,
			Status:     audit.StatusSuccess,
			Detail:     map[string]any{"end_date": rec.GetDateTime("end_date").String(), "grace_days": graceDays},
		})
	}
	return expired, nil
}

// runSessionAutoclose force-checks-out sessions that have been open longer
// than maxOpen. Returns how many were closed.
func runSessionAutoclose(app core.App, tracker *checkin.Tracker, maxOpen time.Duration) (int, error) {
	if maxOpen <= 0 {
		maxOpen = 12 * time.Hour
	}
	cutoff, err := types.ParseDateTime(time.Now().UTC().Add(-maxOpen))
	if err != nil {
		return 0, fmt.Errorf("autoclose: cutoff: %w", err)
	}

	records, err := app.FindRecordsByFilter(
		"gym_sessions",
		"check_out_time = '' && check_in_time < {:cutoff}",
		"", 0, 0,
		dbx.Params{"cutoff": cutoff.String()},
	)
	if err != nil {
		return 0, fmt.Errorf("autoclose: query: %w", err)
	}

	closed := 0
	reason := fmt.Sprintf("auto-closed after %s open", maxOpen)
	for _, rec := range records {
		if _, err := tracker.ForceCheckOut(rec.Id, checkin.SystemOperator, reason); err != nil {
			log.Printf("[worker] autoclose session %s: %v", rec.Id, err)
			continue
		}
		closed++
		audit.Write(app, audit.Entry{
			UserID: "system",
			Club:   rec.GetString("club"),
			Action: "checkin.autoclose", ResourceType: "gym_session",
			ResourceID: rec.Id,
			Status:     audit.StatusSuccess,
			Detail:     map[string]any{"reason": reason},
		})
	}
	return closed, nil
}

// runPaymentReceipt stamps a ULID receipt number on a completed payment that
// is missing one. Already-stamped or non-completed payments are left alone.
func runPaymentReceipt(app core.App, paymentID string) error {
	payment, err := app.FindRecordById("payments", paymentID)
	if err != nil {
		return fmt.Errorf("receipt: find payment %s: %w", paymentID, err)
	}
	if payment.GetString("status") != "completed" || payment.GetString("receipt_no") != "" {
		return nil
	}

	payment.Set("receipt_no", ulid.Make().String())
	if err := app.Save(payment); err != nil {
		return fmt.Errorf("receipt: save payment %s: %w", paymentID, err)
	}

	audit.Write(app, audit.Entry{
		UserID: "system",
		Club:   payment.GetString("club"),
		Action: "payment.receipt", ResourceType: "payment",
		ResourceID: payment.Id, ResourceName: payment.GetString("receipt_no"),
		Status: audit.StatusSuccess,
	})
	return nil
}
