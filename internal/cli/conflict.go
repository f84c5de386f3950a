package cli

import (
	"context"
	"fmt"
	"os"
)

// Conflict inspects version conflicts. With a conflict already pending it
// shows the server's copy and offers to dismiss the marker; otherwise it
// asks for an id and compares the local version against the server's.
func (a *App) Conflict(ctx context.Context) error {
	if pending := a.store.Conflict(); pending != nil {
		printlnFn(fmt.Sprintf("Server copy of %s: %s, %d hp, v%d",
			pending.ID, pending.Name, pending.Horsepower, pending.Version))
		dismiss, err := GetBool(a.reader, "Dismiss the conflict marker?", false, os.Stdout)
		if err != nil {
			return err
		}
		if dismiss {
			a.store.ResolveConflict()
			printlnFn("Conflict dismissed. Your pending edit is unchanged.")
		}
		return nil
	}

	if !a.monitor.Connected() {
		printlnFn("Server unreachable, cannot check versions.")
		return nil
	}

	id, err := getSimpleText(a.reader, "Enter car id to check", os.Stdout)
	if err != nil {
		return err
	}
	local, ok := a.store.Get(id)
	if !ok {
		printlnFn("Unknown id:", id)
		return nil
	}

	if err := a.store.CheckConflict(ctx, id, local.Version); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	if conflict := a.store.Conflict(); conflict != nil {
		printlnFn(fmt.Sprintf("Conflict: local v%d, server v%d", local.Version, conflict.Version))
	} else {
		printlnFn("No conflict: versions match.")
	}
	return nil
}
