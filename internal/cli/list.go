package cli

import (
	"context"
	"fmt"

	"github.com/Cobzariu/CarApp/internal/models"
)

func statusMarker(s models.SyncStatus) string {
	switch s {
	case models.ModifiedOffline:
		return "*"
	case models.DeletedOffline:
		return "-"
	default:
		return " "
	}
}

// List prints the visible records, most recently created first.
func (a *App) List(ctx context.Context) error {
	items := a.store.Items()
	if len(items) == 0 {
		printlnFn("No cars.")
		return nil
	}

	for _, car := range items {
		transmission := "manual"
		if car.Automatic {
			transmission = "automatic"
		}
		printlnFn(fmt.Sprintf("%s%s  %s  %d hp  %s  %s  v%d",
			statusMarker(car.Status), car.ID, car.Name, car.Horsepower,
			transmission, car.ReleaseDate, car.Version))
	}
	return nil
}

// Sync replays queued offline mutations and refreshes the view from the
// server. With the server unreachable it reports and leaves the queue alone.
func (a *App) Sync(ctx context.Context) error {
	if !a.monitor.Connected() {
		printlnFn("Server unreachable, queued changes kept for later.")
		return nil
	}
	a.store.ReplayPending(ctx)
	a.store.Load(ctx)
	printlnFn("Sync complete.")
	return nil
}

// Status reports connectivity, in-flight operations and last errors.
func (a *App) Status(ctx context.Context) error {
	mode := "offline"
	if a.monitor.Connected() {
		mode = "online"
	}
	printlnFn("Mode:", mode)

	if a.store.Fetching() {
		printlnFn("Fetching in progress")
	}
	if a.store.Saving() {
		printlnFn("Saving in progress")
	}
	if a.store.Deleting() {
		printlnFn("Deleting in progress")
	}

	fetchErr, saveErr, deleteErr := a.store.Errors()
	if fetchErr != "" {
		printlnFn("Last fetch error:", fetchErr)
	}
	if saveErr != "" {
		printlnFn("Last save error:", saveErr)
	}
	if deleteErr != "" {
		printlnFn("Last delete error:", deleteErr)
	}

	if conflict := a.store.Conflict(); conflict != nil {
		printlnFn(fmt.Sprintf("Version conflict pending on %s (server v%d)", conflict.ID, conflict.Version))
	}
	return nil
}
