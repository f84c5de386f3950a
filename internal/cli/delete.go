package cli

import (
	"context"
	"os"
)

// Delete removes a car by id. Offline, the deletion is queued and the
// record disappears from the list right away.
func (a *App) Delete(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter car id to delete", os.Stdout)
	if err != nil {
		return err
	}

	car, ok := a.store.Get(id)
	if !ok {
		printlnFn("Unknown id:", id)
		return nil
	}

	if err := a.store.Delete(ctx, car, a.monitor.Connected()); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Deleted", id)
	return nil
}
