package main

import (
	"context"
	"log"
	"os"

	"github.com/Cobzariu/CarApp/internal/buildinfo"
	"github.com/Cobzariu/CarApp/internal/cli"
	"github.com/Cobzariu/CarApp/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg, nil)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
