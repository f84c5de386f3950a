package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/Cobzariu/CarApp/internal/models"
)

// Add prompts for the fields of a new car and saves it. When the server
// is unreachable the record is queued offline and shows up in the list
// immediately with a pending marker.
func (a *App) Add(ctx context.Context) error {
	car := &models.Car{}

	name, err := getSimpleText(a.reader, "Enter car name", os.Stdout)
	if err != nil {
		return err
	}
	car.Name = name

	car.Horsepower, err = GetInt(a.reader, "Enter horsepower", 0, os.Stdout)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	car.Automatic, err = GetBool(a.reader, "Automatic transmission?", false, os.Stdout)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	car.ReleaseDate, err = getSimpleText(a.reader, "Enter release date (YYYY-MM-DD, empty to skip)", os.Stdout)
	if err != nil {
		return err
	}

	if err := car.Validate(); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	saved, err := a.store.Save(ctx, car, a.monitor.Connected())
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn(fmt.Sprintf("Saved %s (%s)", saved.ID, saved.Status))
	return nil
}

// Edit re-prompts the fields of an existing car, offering current values
// as defaults, and saves the result.
func (a *App) Edit(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter car id to edit", os.Stdout)
	if err != nil {
		return err
	}

	car, ok := a.store.Get(id)
	if !ok {
		printlnFn("Unknown id:", id)
		return nil
	}

	name, err := getSimpleText(a.reader, fmt.Sprintf("Enter car name [%s]", car.Name), os.Stdout)
	if err != nil {
		return err
	}
	if name != "" {
		car.Name = name
	}

	car.Horsepower, err = GetInt(a.reader, "Enter horsepower", car.Horsepower, os.Stdout)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	car.Automatic, err = GetBool(a.reader, "Automatic transmission?", car.Automatic, os.Stdout)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	if err := car.Validate(); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	saved, err := a.store.Save(ctx, car, a.monitor.Connected())
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn(fmt.Sprintf("Saved %s (%s)", saved.ID, saved.Status))
	return nil
}
