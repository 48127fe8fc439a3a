package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"

	"github.com/forest-guardian/landcover-classifier/internal/notification"
	"github.com/forest-guardian/landcover-classifier/internal/properties"
	"github.com/forest-guardian/landcover-classifier/internal/sentinel"
	"github.com/forest-guardian/landcover-classifier/internal/ui"
)

func notifyPanic(r any) {
	// 3 levels up is usually the panic source
	pc, file, line, ok := runtime.Caller(3)
	location := "Unknown location"
	if ok {
		location = fmt.Sprintf("%s:%d in %s", file, line, runtime.FuncForPC(pc).Name())
	}
	ui.PrintPanic(r, location)

	message := fmt.Sprintf("Landcover CLI panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, debug.Stack())
	if err := notification.SendDiscordErrorNotification(message); err != nil {
		ui.PrintError(fmt.Sprintf("Failed to send notification: %s", err.Error()))
	}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			notifyPanic(r)
			os.Exit(2)
		}
	}()

	if err := properties.LoadEnv(".env", "../.env"); err != nil {
		ui.PrintWarning("No .env file found, using the environment only.")
	}
	sentinel.RegisterDrivers()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
