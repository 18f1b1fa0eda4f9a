/*
Chewman: a maze chase game running on the engine package
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/chewman/engine"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/game"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application exception: %s\n", err.Error())
		os.Exit(1)
	}
}

func run() error {
	config := engine.DefaultApplicationConfig()
	config.CoreFolders = []string{"resources/loadingScreen"}

	graphics := game.NewGraphicsManager(config.SavePath)
	if err := graphics.Load(); err != nil {
		core.LogWarn("graphics settings reset: %s", err.Error())
	}
	_, quality := graphics.Settings().ToEngineSettings(core.DefaultEngineSettings())

	chewman := game.NewChewman(graphics)
	e, err := engine.New(config, chewman.Game,
		engine.WithSettings(func(settings *core.EngineSettings) {
			*settings, _ = graphics.Settings().ToEngineSettings(*settings)
		}),
		engine.WithMaxMaterialQuality(quality),
	)
	if err != nil {
		return err
	}

	// capture sigterm and other system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil && runErr == nil {
		return err
	}
	return runErr
}
