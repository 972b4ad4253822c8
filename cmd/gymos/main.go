package main

import (
	"log"
	"time"

	"github.com/fitstack/gymos/internal/checkin"
	"github.com/fitstack/gymos/internal/config"
	"github.com/fitstack/gymos/internal/hooks"
	"github.com/fitstack/gymos/internal/routes"
	"github.com/fitstack/gymos/internal/settings"
	"github.com/fitstack/gymos/internal/worker"

	// Register custom PocketBase migrations
	_ "github.com/fitstack/gymos/internal/migrations"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

func main() {
	app := pocketbase.New()
	cfg := config.Load()

	// Realtime check-in core: registry + hub owned here, injected into the
	// transport layer and the tracker.
	hub := checkin.NewHub()
	registry := checkin.NewRegistry()
	tracker := checkin.NewTracker(app, hub)
	routes.SetCheckin(tracker, hub, registry)

	// Asynq worker (created once, shared across app lifecycle)
	w := worker.New(app, tracker, cfg)
	routes.SetAsynqClient(w.Client())

	// Register custom routes
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		routes.Register(se)
		return se.Next()
	})

	// Register event hooks
	hooks.Register(app)

	// Start worker and periodic active-set broadcaster once serving.
	var broadcaster *checkin.Broadcaster
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		w.Start()

		interval := cfg.BroadcastInterval
		group, _ := settings.GetGroup(app, "checkin", "broadcast", map[string]any{})
		if secs := settings.Int(group, "intervalSeconds", 0); secs > 0 {
			interval = time.Duration(secs) * time.Second
		}
		broadcaster = checkin.NewBroadcaster(tracker, interval)
		broadcaster.Start()

		return se.Next()
	})

	// Graceful shutdown
	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		if broadcaster != nil {
			broadcaster.Stop()
		}
		w.Shutdown()
		return e.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}
